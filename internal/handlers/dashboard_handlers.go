package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"bikeshare-dashboard/internal/filter"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/internal/services"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

// HealthCheckFunc reports whether a dependency is usable
type HealthCheckFunc func(ctx context.Context) error

// DashboardHandler serves the dashboard data contract over HTTP
type DashboardHandler struct {
	service  *services.DashboardService
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
	validate *validator.Validate
	checks   map[string]HealthCheckFunc
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service *services.DashboardService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *DashboardHandler {
	return &DashboardHandler{
		service:  service,
		logger:   logger,
		metrics:  metricsCollector,
		validate: newValidator(),
		checks:   make(map[string]HealthCheckFunc),
	}
}

// AddHealthCheck registers a dependency probed by GET /health
func (h *DashboardHandler) AddHealthCheck(name string, check HealthCheckFunc) {
	h.checks[name] = check
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// DashboardParams are the query parameters of GET /api/dashboard.
// An absent season parameter selects the seasons suggested for the range;
// an absent weather parameter selects every weather label. A parameter that
// is present with no values selects nothing. A missing start or end is an
// incomplete date selection and is reported as an invalid range.
type DashboardParams struct {
	Start    string   `validate:"omitempty,datetime=2006-01-02"`
	End      string   `validate:"omitempty,datetime=2006-01-02"`
	Seasons  []string `validate:"omitempty,dive,season_label"`
	Weathers []string `validate:"omitempty,dive,weather_label"`

	seasonsSet  bool
	weathersSet bool
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("season_label", labelValidator(models.SeasonOrder()))
	v.RegisterValidation("weather_label", labelValidator(models.WeatherOrder()))
	return v
}

func labelValidator(labels []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, l := range labels {
			if l == value {
				return true
			}
		}
		return false
	}
}

func parseDashboardParams(r *http.Request) DashboardParams {
	q := r.URL.Query()
	p := DashboardParams{
		Start: strings.TrimSpace(q.Get("start")),
		End:   strings.TrimSpace(q.Get("end")),
	}
	p.Seasons, p.seasonsSet = multiValue(q, "season")
	p.Weathers, p.weathersSet = multiValue(q, "weather")
	return p
}

// multiValue collects a repeated parameter. Empty values are dropped so
// "season=" means an empty selection.
func multiValue(q map[string][]string, key string) ([]string, bool) {
	raw, ok := q[key]
	if !ok {
		return nil, false
	}
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values, true
}

// query converts validated params into a service query
func (p DashboardParams) query() services.Query {
	var dates []time.Time
	for _, s := range []string{p.Start, p.End} {
		if s == "" {
			continue
		}
		// format already checked by the validator
		d, _ := time.Parse(models.DateLayout, s)
		dates = append(dates, d)
	}

	q := services.Query{Dates: dates, Seasons: p.Seasons, Weathers: p.Weathers}
	if !p.seasonsSet && len(dates) == 2 {
		q.Seasons = filter.SuggestSeasons(dates[0], dates[1])
	}
	if !p.weathersSet {
		q.Weathers = models.WeatherOrder()
	}
	return q
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := parseDashboardParams(r)
	if err := h.validate.Struct(params); err != nil {
		h.sendError(w, r, "invalid_parameters", describeValidation(err), http.StatusBadRequest)
		return
	}

	dash, err := h.service.Build(ctx, params.query())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.sendJSON(w, dash, http.StatusOK)
}

// GetOptions handles GET /api/options
func (h *DashboardHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.Options(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.sendJSON(w, opts, http.StatusOK)
}

// InvalidateDataset handles POST /api/dataset/invalidate
func (h *DashboardHandler) InvalidateDataset(w http.ResponseWriter, r *http.Request) {
	purged := h.service.Invalidate(r.Context())
	h.sendJSON(w, map[string]int{"purged": purged}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "healthy", http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = err.Error()
			status, code = "unhealthy", http.StatusServiceUnavailable
			h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Dependency unhealthy", logging.Fields{
				"check": name,
				"error": err.Error(),
			})
			continue
		}
		results[name] = "ok"
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{"status": status})
	h.sendJSON(w, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    results,
	}, code)
}

// handleServiceError maps domain errors to HTTP status codes
func (h *DashboardHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		rangeErr      *models.InvalidRangeError
		validationErr *models.ValidationError
		emptyErr      *models.EmptyResultError
		loadErr       *models.DataLoadError
	)

	switch {
	case errors.As(err, &rangeErr):
		h.sendError(w, r, "invalid_range", err.Error(), http.StatusBadRequest)
	case errors.As(err, &emptyErr):
		h.sendError(w, r, "no_matching_data", err.Error(), http.StatusUnprocessableEntity)
	// load errors may wrap a row's ValidationError, so they are matched first
	case errors.As(err, &loadErr):
		h.logger.Error(r.Context(), "[API_DATASET_ERROR] Dataset unavailable", logging.Fields{
			"path": r.URL.Path,
		}, err)
		h.sendError(w, r, "dataset_unavailable", err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &validationErr):
		h.sendError(w, r, "invalid_parameters", err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(r.Context(), "[API_INTERNAL_ERROR] Request failed", logging.Fields{
			"path": r.URL.Path,
		}, err)
		h.sendError(w, r, "internal_error", "internal server error", http.StatusInternalServerError)
	}
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", strings.ToLower(fe.Field()), fe.Tag(), fe.Value()))
	}
	return strings.Join(msgs, "; ")
}

// sendJSON sends a JSON response
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn(context.Background(), "[API_ENCODE_ERROR] Failed to write response", logging.Fields{
			"error": err.Error(),
		})
	}
}

// sendError sends an error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, r *http.Request, code, message string, statusCode int) {
	h.metrics.RecordAPIError(code, routeTemplate(r))

	h.sendJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    code,
		Message: message,
		Status:  statusCode,
	}, statusCode)
}

// RegisterRoutes registers the dashboard API routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/dashboard", h.GetDashboard).Methods(http.MethodGet)
	router.HandleFunc("/api/options", h.GetOptions).Methods(http.MethodGet)
	router.HandleFunc("/api/dataset/invalidate", h.InvalidateDataset).Methods(http.MethodPost)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}

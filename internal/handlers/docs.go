package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"bikeshare-dashboard/internal/models"
)

func queryParam(name, description string, required bool, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      schema,
	}
}

func errorResponse(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/Error"},
			},
		},
	}
}

func jsonResponse(description, schema string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/" + schema},
			},
		},
	}
}

func labelArray(labels []string) map[string]interface{} {
	return map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string", "enum": labels},
	}
}

func pointSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key":   map[string]string{"type": "string"},
			"value": map[string]string{"type": "number"},
			"count": map[string]string{"type": "integer"},
		},
	}
}

func pointsRef() map[string]interface{} {
	return map[string]interface{}{
		"type":  "array",
		"items": map[string]string{"$ref": "#/components/schemas/Point"},
	}
}

// openAPIDocument builds the OpenAPI 3.0 description of the dashboard API
func openAPIDocument() map[string]interface{} {
	matrix := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"columns": map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
			"values": map[string]interface{}{
				"type":        "array",
				"description": "Pearson coefficients; null where a column has no variance",
				"items": map[string]interface{}{
					"type":  "array",
					"items": map[string]interface{}{"type": "number", "nullable": true},
				},
			},
		},
	}

	return map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Bike Sharing Dashboard API",
			"description": "Filtered and aggregated views of daily and hourly bike rental data",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/dashboard": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Build the dashboard for a filter selection",
					"description": "Filters both tables by an inclusive date range, season labels and weather labels, then aggregates them. Omitting season selects the seasons of the range; omitting weather selects every label; an empty value selects nothing.",
					"parameters": []map[string]interface{}{
						queryParam("start", "First day of the range (YYYY-MM-DD)", true, map[string]interface{}{"type": "string", "format": "date"}),
						queryParam("end", "Last day of the range (YYYY-MM-DD)", true, map[string]interface{}{"type": "string", "format": "date"}),
						queryParam("season", "Accepted season label, repeatable", false, labelArray(models.SeasonOrder())),
						queryParam("weather", "Accepted weather label, repeatable", false, labelArray(models.WeatherOrder())),
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Aggregated dashboard", "Dashboard"),
						"400": errorResponse("Malformed parameters or invalid date range"),
						"422": errorResponse("No records match the selected filters (code no_matching_data)"),
						"503": errorResponse("Dataset could not be loaded"),
					},
				},
			},
			"/api/options": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Filter choices and observed date bounds",
					"responses": map[string]interface{}{
						"200": jsonResponse("Filter options", "Options"),
						"503": errorResponse("Dataset could not be loaded"),
					},
				},
			},
			"/api/dataset/invalidate": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Drop the cached dataset",
					"description": "The next request re-reads both sources.",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Number of cached datasets purged"},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Service and dependencies healthy"},
						"503": map[string]interface{}{"description": "A dependency is unhealthy"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Prometheus metrics",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Metrics in Prometheus text format"},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Point": pointSchema(),
				"Matrix": matrix,
				"Options": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"min_date":          map[string]string{"type": "string", "format": "date"},
						"max_date":          map[string]string{"type": "string", "format": "date"},
						"seasons":           labelArray(models.SeasonOrder()),
						"suggested_seasons": labelArray(models.SeasonOrder()),
						"weathers":          labelArray(models.WeatherOrder()),
					},
				},
				"Dashboard": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"selection":   map[string]string{"type": "object"},
						"daily_rows":  map[string]string{"type": "integer"},
						"hourly_rows": map[string]string{"type": "integer"},
						"riders": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"rows":             map[string]string{"type": "integer"},
								"total_registered": map[string]string{"type": "integer"},
								"total_casual":     map[string]string{"type": "integer"},
								"mean_registered":  map[string]string{"type": "number"},
								"mean_casual":      map[string]string{"type": "number"},
							},
						},
						"daily_trend":           pointsRef(),
						"monthly_mean":          pointsRef(),
						"hourly_mean":           pointsRef(),
						"seasonal_mean":         pointsRef(),
						"registered_by_weather": pointsRef(),
						"casual_by_weather":     pointsRef(),
						"hourly_by_weather": map[string]interface{}{
							"type": "array",
							"items": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"name":   map[string]string{"type": "string"},
									"points": pointsRef(),
								},
							},
						},
						"daily_correlation":  map[string]string{"$ref": "#/components/schemas/Matrix"},
						"hourly_correlation": map[string]string{"$ref": "#/components/schemas/Matrix"},
					},
				},
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"code":    map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"status":  map[string]string{"type": "integer"},
					},
				},
			},
		},
	}
}

// OpenAPISpec serves the OpenAPI document as JSON
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument())
}

// RegisterDocsRoutes registers the OpenAPI document and Swagger UI
func RegisterDocsRoutes(router *mux.Router) {
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc("/api/docs", SwaggerUI).Methods(http.MethodGet)
}

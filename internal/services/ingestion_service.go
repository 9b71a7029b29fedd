package services

import (
	"context"
	"fmt"
	"time"

	"bikeshare-dashboard/internal/dataset"
	"bikeshare-dashboard/internal/models"
	"bikeshare-dashboard/internal/repository"
	"bikeshare-dashboard/pkg/logging"
	"bikeshare-dashboard/pkg/metrics"
)

// IngestionService copies rental sources into Postgres
type IngestionService struct {
	repo    repository.RentalRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics for one source
type IngestionResult struct {
	Source            string
	Grain             models.Grain
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Batches           int
	Duration          time.Duration
	Errors            []string
}

// maxReportedErrors bounds IngestionResult.Errors
const maxReportedErrors = 20

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.RentalRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestSource reads every row of source, skips rows that fail enrichment
// and upserts the rest in batches of batchSize.
func (s *IngestionService) IngestSource(ctx context.Context, grain models.Grain, source dataset.Source, batchSize int) (*IngestionResult, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	start := time.Now()
	s.logger.Info(ctx, "[INGEST_START] Starting source ingestion", logging.Fields{
		"source":     source.Name(),
		"grain":      grain,
		"batch_size": batchSize,
	})

	raws, err := source.Read(ctx, grain)
	if err != nil {
		s.metrics.RecordIngestionError("read_error")
		return nil, fmt.Errorf("failed to read %s: %w", source.Name(), err)
	}

	result := &IngestionResult{
		Source:       source.Name(),
		Grain:        grain,
		TotalRecords: len(raws),
	}
	batch := make([]models.RawRentalRecord, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.repo.CreateRecordsBatch(ctx, grain, batch); err != nil {
			s.metrics.RecordIngestionError("batch_error")
			return fmt.Errorf("failed to insert batch %d: %w", result.Batches+1, err)
		}
		result.SuccessfulRecords += len(batch)
		result.Batches++
		batch = batch[:0]
		return nil
	}

	for i := range raws {
		if _, err := raws[i].Enrich(grain); err != nil {
			result.FailedRecords++
			s.metrics.RecordIngestionError("enrichment_error")
			if len(result.Errors) < maxReportedErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", raws[i].RowNumber(i), err))
			}
			continue
		}

		batch = append(batch, raws[i])
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	s.logger.Info(ctx, "[INGEST_COMPLETE] Source ingestion completed", logging.Fields{
		"source":             result.Source,
		"grain":              grain,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"batches":            result.Batches,
		"duration_ms":        result.Duration.Milliseconds(),
	})

	return result, nil
}

// ReplaceGrain deletes the stored records of grain and ingests source in their place
func (s *IngestionService) ReplaceGrain(ctx context.Context, grain models.Grain, source dataset.Source, batchSize int) (*IngestionResult, error) {
	if _, err := s.repo.DeleteGrain(ctx, grain); err != nil {
		return nil, err
	}
	return s.IngestSource(ctx, grain, source, batchSize)
}

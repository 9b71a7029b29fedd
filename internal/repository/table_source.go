package repository

import (
	"context"

	"bikeshare-dashboard/internal/models"
)

// TableSource serves one grain of the rental_records table as a dataset
// source. Its fingerprint changes whenever rows are added or reloaded.
type TableSource struct {
	repo  RentalRepository
	grain models.Grain
}

// NewTableSource creates a source over the stored records of grain
func NewTableSource(repo RentalRepository, grain models.Grain) *TableSource {
	return &TableSource{repo: repo, grain: grain}
}

// Name identifies the source in logs and errors
func (s *TableSource) Name() string {
	return "postgres:rental_records/" + string(s.grain)
}

// Fingerprint hashes the stored row count and latest load time
func (s *TableSource) Fingerprint(ctx context.Context) (string, error) {
	v, err := s.repo.Version(ctx, s.grain)
	if err != nil {
		return "", &models.DataLoadError{Source: s.Name(), Message: "read table version", Err: err}
	}
	return v.Fingerprint(), nil
}

// Read returns the stored rows. The grain argument must match the source's.
func (s *TableSource) Read(ctx context.Context, grain models.Grain) ([]models.RawRentalRecord, error) {
	if grain != s.grain {
		return nil, &models.DataLoadError{Source: s.Name(), Message: "source holds " + string(s.grain) + " records, not " + string(grain)}
	}
	records, err := s.repo.ListRaw(ctx, grain)
	if err != nil {
		return nil, &models.DataLoadError{Source: s.Name(), Message: "query records", Err: err}
	}
	return records, nil
}

package export

import (
	"context"

	"gouden-gids-crawler/models"
)

// BusinessStore persists records; *db.DB satisfies it
type BusinessStore interface {
	SaveBusiness(ctx context.Context, runID string, record models.BusinessRecord) error
}

// PostgresExporter upserts every record tagged with the run that found it
type PostgresExporter struct {
	store BusinessStore
	runID string
}

// NewPostgresExporter creates an exporter saving records under runID
func NewPostgresExporter(store BusinessStore, runID string) *PostgresExporter {
	return &PostgresExporter{store: store, runID: runID}
}

// Export upserts record by its detail page URL
func (e *PostgresExporter) Export(ctx context.Context, record models.BusinessRecord) error {
	return e.store.SaveBusiness(ctx, e.runID, record)
}

// Close is a no-op; the connection belongs to the caller
func (e *PostgresExporter) Close() error {
	return nil
}

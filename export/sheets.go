package export

import (
	"context"
	"fmt"
	"sync"

	"gouden-gids-crawler/models"
)

// SheetWriter is the part of sheets.Writer the exporter needs
type SheetWriter interface {
	CreateSheet(ctx context.Context, sheetName string) (string, int64, error)
	WriteRows(ctx context.Context, sheetName string, rows [][]string) error
	AppendRows(ctx context.Context, sheetName string, rows [][]string) error
}

const defaultSheetBatch = 200

// SheetsExporter writes records to a new sheet in batches. The sheet is
// created on the first record.
type SheetsExporter struct {
	mu        sync.Mutex
	writer    SheetWriter
	sheetName string
	batchSize int

	created     bool
	needsHeader bool
	sheetID     int64
	pending     [][]string
}

// NewSheetsExporter creates a new SheetsExporter. A batchSize of 0 uses
// the default batch.
func NewSheetsExporter(writer SheetWriter, sheetName string, batchSize int) *SheetsExporter {
	if batchSize <= 0 {
		batchSize = defaultSheetBatch
	}
	return &SheetsExporter{writer: writer, sheetName: sheetName, batchSize: batchSize}
}

// Export buffers a row, creating the sheet and header on the first record
func (e *SheetsExporter) Export(ctx context.Context, record models.BusinessRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.created {
		name, id, err := e.writer.CreateSheet(ctx, e.sheetName)
		if err != nil {
			return err
		}
		e.sheetName, e.sheetID, e.created = name, id, true
		e.needsHeader = true
	}
	if e.needsHeader {
		if err := e.writer.WriteRows(ctx, e.sheetName, [][]string{Header}); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		e.needsHeader = false
	}

	e.pending = append(e.pending, Row(record))
	if len(e.pending) >= e.batchSize {
		return e.flush(ctx)
	}
	return nil
}

// flush must be called with mu held
func (e *SheetsExporter) flush(ctx context.Context) error {
	if len(e.pending) == 0 {
		return nil
	}
	if err := e.writer.AppendRows(ctx, e.sheetName, e.pending); err != nil {
		return fmt.Errorf("failed to flush %d rows: %w", len(e.pending), err)
	}
	e.pending = nil
	return nil
}

// Close writes the remaining rows
func (e *SheetsExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flush(context.Background())
}

// SheetID returns the gid of the created sheet, 0 before the first record
func (e *SheetsExporter) SheetID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sheetID
}

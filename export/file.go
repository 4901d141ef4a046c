package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"gouden-gids-crawler/models"

	"gopkg.in/yaml.v3"
)

// JSONLExporter writes one JSON object per line
type JSONLExporter struct {
	mu  sync.Mutex
	w   io.WriteCloser
	enc *json.Encoder
}

// NewJSONLExporter creates an exporter writing one JSON object per line
func NewJSONLExporter(w io.WriteCloser) *JSONLExporter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLExporter{w: w, enc: enc}
}

// Export writes record as a single line
func (e *JSONLExporter) Export(_ context.Context, record models.BusinessRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.URL, err)
	}
	return nil
}

// Close closes the underlying writer
func (e *JSONLExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w.Close()
}

// JSONExporter writes a single JSON array, streamed element by element
type JSONExporter struct {
	mu    sync.Mutex
	w     io.WriteCloser
	count int
}

// NewJSONExporter creates an exporter writing a single JSON array
func NewJSONExporter(w io.WriteCloser) *JSONExporter {
	return &JSONExporter{w: w}
}

// Export appends record to the array
func (e *JSONExporter) Export(_ context.Context, record models.BusinessRecord) error {
	b, err := json.MarshalIndent(record, "  ", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.URL, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	sep := ",\n  "
	if e.count == 0 {
		sep = "[\n  "
	}
	if _, err := io.WriteString(e.w, sep); err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.URL, err)
	}
	if _, err := e.w.Write(b); err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.URL, err)
	}
	e.count++
	return nil
}

// Close terminates the array and closes the underlying writer
func (e *JSONExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	tail := "\n]\n"
	if e.count == 0 {
		tail = "[]\n"
	}
	if _, err := io.WriteString(e.w, tail); err != nil {
		e.w.Close()
		return fmt.Errorf("failed to finish JSON array: %w", err)
	}
	return e.w.Close()
}

// CSVExporter writes flattened records with a header row
type CSVExporter struct {
	mu            sync.Mutex
	w             io.WriteCloser
	csv           *csv.Writer
	headerWritten bool
}

// NewCSVExporter creates an exporter writing flattened rows after a header
func NewCSVExporter(w io.WriteCloser) *CSVExporter {
	return &CSVExporter{w: w, csv: csv.NewWriter(w)}
}

// Export writes record as one row, preceded by the header on the first call
func (e *CSVExporter) Export(_ context.Context, record models.BusinessRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.headerWritten {
		if err := e.csv.Write(Header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		e.headerWritten = true
	}
	if err := e.csv.Write(Row(record)); err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.URL, err)
	}
	return nil
}

// Close flushes buffered rows and closes the underlying writer
func (e *CSVExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.headerWritten {
		_ = e.csv.Write(Header)
	}
	e.csv.Flush()
	if err := e.csv.Error(); err != nil {
		e.w.Close()
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return e.w.Close()
}

// YAMLExporter writes one YAML document per record
type YAMLExporter struct {
	mu  sync.Mutex
	w   io.WriteCloser
	enc *yaml.Encoder
}

// NewYAMLExporter creates an exporter writing one YAML document per record
func NewYAMLExporter(w io.WriteCloser) *YAMLExporter {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &YAMLExporter{w: w, enc: enc}
}

// Export writes record as a YAML document
func (e *YAMLExporter) Export(_ context.Context, record models.BusinessRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.URL, err)
	}
	return nil
}

// Close finishes the stream and closes the underlying writer
func (e *YAMLExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Close(); err != nil {
		e.w.Close()
		return fmt.Errorf("failed to flush YAML: %w", err)
	}
	return e.w.Close()
}

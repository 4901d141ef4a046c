// Package export writes scraped business records to their destination
package export

import (
	"context"
	"fmt"
	"io"
	"os"

	"gouden-gids-crawler/config"
	"gouden-gids-crawler/models"
)

// Exporter receives every record of a crawl exactly once. Implementations
// are safe for concurrent use.
type Exporter interface {
	Export(ctx context.Context, record models.BusinessRecord) error
	// Close flushes buffered output and releases the destination
	Close() error
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// OpenFile creates a file exporter for format writing to path. An empty
// path or "-" writes to stdout.
func OpenFile(format, path string) (Exporter, error) {
	var w io.WriteCloser
	if path == "" || path == "-" {
		w = nopCloser{os.Stdout}
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		w = f
	}

	e, err := NewWriterExporter(format, w)
	if err != nil {
		w.Close()
		return nil, err
	}
	return e, nil
}

// NewWriterExporter creates the exporter for a file format on top of w.
// Closing the exporter closes w.
func NewWriterExporter(format string, w io.WriteCloser) (Exporter, error) {
	switch format {
	case config.FormatJSONL:
		return NewJSONLExporter(w), nil
	case config.FormatJSON:
		return NewJSONExporter(w), nil
	case config.FormatCSV:
		return NewCSVExporter(w), nil
	case config.FormatYAML:
		return NewYAMLExporter(w), nil
	}
	return nil, fmt.Errorf("format %q is not a file format", format)
}

// Package sink hands a finished extraction report to a downstream consumer.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderjulianmartinez/data-extract/internal/config"
	"github.com/alexanderjulianmartinez/data-extract/internal/sink/jsonfile"
	"github.com/alexanderjulianmartinez/data-extract/internal/sink/kafka"
	"github.com/alexanderjulianmartinez/data-extract/internal/sink/xlsx"
	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

type Sink interface {
	// Name identifies the sink in logs, e.g. "json:/tmp/out.json".
	Name() string
	Write(ctx context.Context, report *source.ExtractionReport) error
	Close() error
}

// New builds the sink described by cfg.
func New(cfg config.OutputConfig) (Sink, error) {
	switch strings.ToLower(cfg.Type) {
	case "json":
		return jsonfile.New(jsonfile.Config{Path: cfg.Path, Compress: cfg.Compress, Indent: cfg.Indent}), nil
	case "xlsx", "excel":
		return xlsx.New(xlsx.Config{Path: cfg.Path}), nil
	case "kafka":
		return kafka.New(kafka.Config{Brokers: cfg.Brokers, Topic: cfg.Topic})
	default:
		return nil, fmt.Errorf("unsupported output type: %s (supported: json, xlsx, kafka)", cfg.Type)
	}
}

// WriteAll writes report to every sink and closes them, returning all errors
// joined.
func WriteAll(ctx context.Context, report *source.ExtractionReport, sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Write(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: close: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

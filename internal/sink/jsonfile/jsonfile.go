// Package jsonfile writes a report as one JSON document, optionally zstd
// compressed.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

type Config struct {
	Path string
	// Compress forces zstd. A ".zst" suffix on Path does the same.
	Compress bool
	Indent   bool
}

type Writer struct {
	cfg Config
}

func New(cfg Config) *Writer {
	return &Writer{cfg: cfg}
}

func (w *Writer) Name() string { return "json:" + w.cfg.Path }

func (w *Writer) compressed() bool {
	return w.cfg.Compress || strings.HasSuffix(w.cfg.Path, ".zst")
}

func (w *Writer) Write(ctx context.Context, report *source.ExtractionReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(w.cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	tmp := w.cfg.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := w.encode(f, report); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close output: %w", err)
	}
	return os.Rename(tmp, w.cfg.Path)
}

func (w *Writer) encode(out io.Writer, report *source.ExtractionReport) error {
	var zw *zstd.Encoder
	if w.compressed() {
		var err error
		zw, err = zstd.NewWriter(out)
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		out = zw
	}

	enc := json.NewEncoder(out)
	if w.cfg.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		if zw != nil {
			zw.Close()
		}
		return fmt.Errorf("encode report: %w", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("flush zstd: %w", err)
		}
	}
	return nil
}

func (w *Writer) Close() error { return nil }

// Read decodes a report written by Writer, decompressing when path ends in
// ".zst" or compressed is set.
func Read(path string, compressed bool) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var in io.Reader = f
	if compressed || strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		in = zr
	}

	dec := json.NewDecoder(in)
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return doc, nil
}

// Package extract drives a full extraction: discover the base tables of a
// schema, then fetch every table's columns and rows concurrently and assemble
// them in discovery order.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

// Policy decides what a per-table failure does to the rest of the run.
type Policy int

const (
	// PolicyPartial records the failure and keeps extracting other tables.
	PolicyPartial Policy = iota
	// PolicyFailFast cancels the run on the first per-table failure.
	PolicyFailFast
)

func (p Policy) String() string {
	if p == PolicyFailFast {
		return "fail-fast"
	}
	return "partial"
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "partial":
		return PolicyPartial, nil
	case "fail-fast", "failfast", "abort":
		return PolicyFailFast, nil
	default:
		return PolicyPartial, fmt.Errorf("unknown failure policy: %s", s)
	}
}

type Options struct {
	Policy Policy
	// Concurrency caps how many tables are in flight. Zero means twice the
	// connection pool size.
	Concurrency int
	// Include, when non-empty, keeps only the named tables.
	Include []string
	// Exclude drops the named tables.
	Exclude []string
	Logger  *slog.Logger
}

type Extractor struct {
	conn *source.Connection
	opts Options
	log  *slog.Logger
}

func New(conn *source.Connection, opts Options) *Extractor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2 * conn.Config().MaxOpenConns
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{conn: conn, opts: opts, log: log.With("component", "extract")}
}

type tableResult struct {
	extract source.TableExtract
	err     error
}

// ExtractAll extracts every base table of schema.
//
// A failure to list tables returns a nil report and an *ExtractionError. Under
// PolicyPartial per-table failures land in report.Failures and the returned
// error is nil; report.Err aggregates them. Under PolicyFailFast the first
// per-table failure is returned as an *ExtractionError with no report.
func (e *Extractor) ExtractAll(ctx context.Context, schema string) (*source.ExtractionReport, error) {
	started := time.Now()

	tables, err := source.ListBaseTables(ctx, e.conn, schema)
	if err != nil {
		e.log.Error("table discovery failed", "schema", schema, "err", err)
		return nil, &source.ExtractionError{Err: err}
	}
	tables = e.filter(tables)
	e.log.Info("tables discovered", "schema", schema, "count", len(tables))

	results := make([]tableResult, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, table := range tables {
		i, table := i, table
		g.Go(func() error {
			if gctx.Err() != nil && e.opts.Policy == PolicyFailFast {
				return nil
			}
			extract, err := e.extractTable(gctx, schema, table)
			results[i] = tableResult{extract: extract, err: err}
			if err != nil {
				e.log.Warn("table failed", "table", table, "err", err)
				if e.opts.Policy == PolicyFailFast {
					return err
				}
				return nil
			}
			e.log.Debug("table extracted", "table", table, "columns", len(extract.Columns), "rows", len(extract.Data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &source.ExtractionError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &source.ExtractionError{Err: err}
	}

	report := &source.ExtractionReport{
		Schema:    schema,
		StartedAt: started,
		Tables:    make([]source.TableExtract, 0, len(tables)),
	}
	for i, r := range results {
		if r.err != nil {
			report.Failures = append(report.Failures, source.TableFailure{Table: tables[i], Err: r.err})
			continue
		}
		report.Tables = append(report.Tables, r.extract)
	}
	report.Duration = time.Since(started)

	e.log.Info("extraction finished",
		"schema", schema,
		"tables", len(report.Tables),
		"failed", len(report.Failures),
		"rows", report.RowCount(),
		"duration", report.Duration)
	return report, nil
}

// extractTable fetches columns and rows of one table concurrently. Neither
// depends on the other; both must succeed.
func (e *Extractor) extractTable(ctx context.Context, schema, table string) (source.TableExtract, error) {
	var (
		columns []string
		rows    []source.Row
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		columns, err = source.ListColumns(gctx, e.conn, schema, table)
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = source.ReadAllRows(gctx, e.conn, schema, table)
		return err
	})
	if err := g.Wait(); err != nil {
		return source.TableExtract{}, err
	}
	return source.TableExtract{Table: table, Columns: columns, Data: rows}, nil
}

func (e *Extractor) filter(tables []string) []string {
	if len(e.opts.Include) == 0 && len(e.opts.Exclude) == 0 {
		return tables
	}
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if len(e.opts.Include) > 0 && !slices.Contains(e.opts.Include, t) {
			continue
		}
		if slices.Contains(e.opts.Exclude, t) {
			e.log.Info("table excluded", "table", t)
			continue
		}
		out = append(out, t)
	}
	return out
}

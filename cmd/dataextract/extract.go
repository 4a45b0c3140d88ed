package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alexanderjulianmartinez/data-extract/internal/config"
	"github.com/alexanderjulianmartinez/data-extract/internal/drift"
	"github.com/alexanderjulianmartinez/data-extract/internal/extract"
	"github.com/alexanderjulianmartinez/data-extract/internal/sink"
	"github.com/alexanderjulianmartinez/data-extract/internal/source"
	"github.com/alexanderjulianmartinez/data-extract/internal/source/dialects"
)

func newExtractCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract all base tables and write them to the configured outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Logging, cmd.ErrOrStderr())
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runExtract(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("policy", "", "failure policy (partial, fail-fast)")
	f.StringSlice("include", nil, "only extract these tables")
	f.StringSlice("exclude", nil, "skip these tables")
	f.StringArray("output", nil, "extra output as type:path, e.g. json:out.json.zst or xlsx:out.xlsx")
	a.bind("extract.policy", f.Lookup("policy"))
	a.bind("extract.include", f.Lookup("include"))
	a.bind("extract.exclude", f.Lookup("exclude"))
	a.bind("outputs", f.Lookup("output"))
	return cmd
}

func runExtract(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	sinks := make([]sink.Sink, 0, len(cfg.Outputs))
	for _, o := range cfg.Outputs {
		s, err := sink.New(o)
		if err != nil {
			return err
		}
		sinks = append(sinks, s)
	}

	report, err := extractOnce(ctx, cfg, logger)
	if err != nil {
		return err
	}

	printSummary(out, report)

	dr := drift.Validate(report)
	for _, issue := range dr.Issues {
		logger.Warn("schema drift", "table", issue.Table, "column", issue.Column,
			"kind", issue.Kind, "severity", issue.Severity, "message", issue.Message)
	}

	if err := sink.WriteAll(ctx, report, sinks); err != nil {
		return errors.Join(fmt.Errorf("write outputs: %w", err), report.Err())
	}
	for _, s := range sinks {
		logger.Info("output written", "sink", s.Name())
	}
	return report.Err()
}

// extractOnce opens a connection, extracts the configured schema and closes
// the connection again.
func extractOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*source.ExtractionReport, error) {
	d, err := dialects.Lookup(cfg.Source.Driver)
	if err != nil {
		return nil, err
	}
	policy, err := extract.ParsePolicy(cfg.Extract.Policy)
	if err != nil {
		return nil, err
	}

	conn, err := source.Open(ctx, cfg.Source.Connection(), d)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ex := extract.New(conn, extract.Options{
		Policy:      policy,
		Concurrency: cfg.Extract.Concurrency,
		Include:     cfg.Extract.Include,
		Exclude:     cfg.Extract.Exclude,
		Logger:      logger,
	})
	return ex.ExtractAll(ctx, conn.Schema())
}

func printSummary(w io.Writer, report *source.ExtractionReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tCOLUMNS\tROWS\tSTATUS\tDETAIL")
	for _, s := range extract.Summarize(report) {
		detail := s.Error
		if s.DriftIssues > 0 {
			detail = fmt.Sprintf("%d drift issue(s)", s.DriftIssues)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", s.Table, s.Columns, s.Rows, s.Status, detail)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nSchema %s: %d table(s), %d row(s), %d failure(s) in %s\n",
		report.Schema, len(report.Tables), report.RowCount(), len(report.Failures), report.Duration)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alexanderjulianmartinez/data-extract/internal/server"
	"github.com/alexanderjulianmartinez/data-extract/internal/source"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the health endpoint and on-demand extraction over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Logging, cmd.ErrOrStderr())
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(func(ctx context.Context) (*source.ExtractionReport, error) {
				return extractOnce(ctx, cfg, logger)
			}, logger)
			return srv.Start(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
		},
	}

	cmd.Flags().Int("port", 3000, "HTTP listen port")
	a.bind("server.port", cmd.Flags().Lookup("port"))
	a.bindEnv("server.port", "PORT")
	return cmd
}

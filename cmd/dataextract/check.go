package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
	"github.com/alexanderjulianmartinez/data-extract/internal/source/dialects"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and database connectivity",
		Long: `Loads the configuration, connects to the database and lists the base
tables that an extraction would read, without reading any rows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Loaded config successfully")
			fmt.Fprintf(out, "Source: %s\n", cfg.Source.Driver)

			d, err := dialects.Lookup(cfg.Source.Driver)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			conn, err := source.Open(ctx, cfg.Source.Connection(), d)
			if err != nil {
				return err
			}
			defer conn.Close()

			tables, err := source.ListBaseTables(ctx, conn, conn.Schema())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Schema: %s\n", conn.Schema())
			fmt.Fprintf(out, "Tables to extract: %d\n", len(tables))
			for _, t := range tables {
				fmt.Fprintf(out, "  %s\n", t)
			}
			return nil
		},
	}
}

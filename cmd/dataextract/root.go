package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/alexanderjulianmartinez/data-extract/internal/config"
)

const envPrefix = "DATAEXTRACT"

// app carries the state shared by every subcommand.
type app struct {
	v        *viper.Viper
	cfgFile  string
	bindErrs []error
}

// bind ties a config key to a flag. Failures surface from config.
func (a *app) bind(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		a.bindErrs = append(a.bindErrs, fmt.Errorf("bind %s: %w", key, err))
	}
}

func (a *app) bindEnv(key, env string) {
	if err := a.v.BindEnv(key, env); err != nil {
		a.bindErrs = append(a.bindErrs, fmt.Errorf("bind %s to %s: %w", key, env, err))
	}
}

func newRootCmd() *cobra.Command {
	root, _ := buildRoot()
	return root
}

func buildRoot() (*cobra.Command, *app) {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "dataextract",
		Short: "Extract every base table of a database schema",
		Long: `Connects to a MySQL, PostgreSQL or SQLite database, lists the base tables
of a schema and extracts their columns and rows concurrently over a bounded
connection pool.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "path to config.yaml")
	pf.String("driver", "", "database driver (mysql, postgres, sqlite)")
	pf.String("host", "", "database host")
	pf.Int("db-port", 0, "database port")
	pf.String("user", "", "database user")
	pf.String("password", "", "database password")
	pf.String("database", "", "database name, or file path for sqlite")
	pf.String("schema", "", "schema to extract (defaults to the database)")
	pf.String("ssl-mode", "", "TLS mode (disable, require, verify-full, ...)")
	pf.Int("pool-size", 0, "maximum open connections")
	pf.Duration("query-timeout", 0, "per-query timeout")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text, json)")

	bind := map[string]string{
		"source.driver":        "driver",
		"source.host":          "host",
		"source.port":          "db-port",
		"source.user":          "user",
		"source.password":      "password",
		"source.database":      "database",
		"source.schema":        "schema",
		"source.ssl_mode":      "ssl-mode",
		"source.pool_size":     "pool-size",
		"source.query_timeout": "query-timeout",
		"logging.level":        "log-level",
		"logging.format":       "log-format",
	}
	for key, flag := range bind {
		a.bind(key, pf.Lookup(flag))
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newExtractCmd(a),
		newCheckCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root, a
}

// config loads the file named by --config, or the defaults when none is
// given, then applies env and flag overrides and validates the result.
func (a *app) config() (*config.Config, error) {
	if err := errors.Join(a.bindErrs...); err != nil {
		return nil, err
	}
	cfg := config.Default()
	if a.cfgFile != "" {
		loaded, err := config.LoadConfig(a.cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	v := a.v
	if v.IsSet("source.driver") {
		cfg.Source.Driver = v.GetString("source.driver")
	}
	if v.IsSet("source.host") {
		cfg.Source.Host = v.GetString("source.host")
	}
	if v.IsSet("source.port") {
		cfg.Source.Port = v.GetInt("source.port")
	}
	if v.IsSet("source.user") {
		cfg.Source.User = v.GetString("source.user")
	}
	if v.IsSet("source.password") {
		cfg.Source.Password = v.GetString("source.password")
	}
	if v.IsSet("source.database") {
		cfg.Source.Database = v.GetString("source.database")
	}
	if v.IsSet("source.schema") {
		cfg.Source.Schema = v.GetString("source.schema")
	}
	if v.IsSet("source.ssl_mode") {
		cfg.Source.SSLMode = v.GetString("source.ssl_mode")
	}
	if v.IsSet("source.pool_size") {
		cfg.Source.PoolSize = v.GetInt("source.pool_size")
	}
	if v.IsSet("source.query_timeout") {
		cfg.Source.QueryTimeout = v.GetDuration("source.query_timeout")
	}
	if v.IsSet("extract.policy") {
		cfg.Extract.Policy = v.GetString("extract.policy")
	}
	if v.IsSet("extract.include") {
		cfg.Extract.Include = a.list("extract.include")
	}
	if v.IsSet("extract.exclude") {
		cfg.Extract.Exclude = a.list("extract.exclude")
	}
	if v.IsSet("outputs") {
		outs, err := parseOutputs(a.list("outputs"))
		if err != nil {
			return nil, err
		}
		cfg.Outputs = append(cfg.Outputs, outs...)
	}
	if v.IsSet("server.port") {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.format") {
		cfg.Logging.Format = v.GetString("logging.format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// list reads a string list from a flag, or from a comma separated env var.
func (a *app) list(key string) []string {
	raw, ok := a.v.Get(key).(string)
	if !ok {
		return a.v.GetStringSlice(key)
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseOutputs turns "type:path" flag values into output configs.
func parseOutputs(specs []string) ([]config.OutputConfig, error) {
	var outs []config.OutputConfig
	for _, s := range specs {
		kind, path, ok := strings.Cut(s, ":")
		if !ok || kind == "" || path == "" {
			return nil, fmt.Errorf("invalid --output %q: expected type:path", s)
		}
		outs = append(outs, config.OutputConfig{Type: strings.ToLower(kind), Path: path})
	}
	return outs, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

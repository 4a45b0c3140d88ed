package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexanderjulianmartinez/data-extract/internal/source"
	"github.com/alexanderjulianmartinez/data-extract/internal/tunnel"
)

type Config struct {
	Source  SourceConfig   `yaml:"source"`
	Extract ExtractConfig  `yaml:"extract"`
	Outputs []OutputConfig `yaml:"outputs"`
	Server  ServerConfig   `yaml:"server"`
	Logging LogConfig      `yaml:"logging"`
}

type SourceConfig struct {
	Driver         string         `yaml:"driver"`
	Host           string         `yaml:"host"`
	Port           int            `yaml:"port"`
	User           string         `yaml:"user"`
	Password       string         `yaml:"password"`
	Database       string         `yaml:"database"`
	Schema         string         `yaml:"schema"`
	SSLMode        string         `yaml:"ssl_mode"`
	PoolSize       int            `yaml:"pool_size"`
	ConnectTimeout time.Duration  `yaml:"connect_timeout"`
	QueryTimeout   time.Duration  `yaml:"query_timeout"`
	SSH            *tunnel.Config `yaml:"ssh"`
}

type ExtractConfig struct {
	Policy      string   `yaml:"policy"` // partial, fail-fast
	Concurrency int      `yaml:"concurrency"`
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude"`
}

type OutputConfig struct {
	Type     string   `yaml:"type"` // json, xlsx, kafka
	Path     string   `yaml:"path"`
	Compress bool     `yaml:"compress"`
	Indent   bool     `yaml:"indent"`
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

var (
	drivers      = []string{"mysql", "mariadb", "postgres", "postgresql", "pg", "sqlite", "sqlite3"}
	outputTypes  = []string{"json", "xlsx", "kafka"}
	policies     = []string{"partial", "fail-fast", "failfast", "abort"}
	logLevels    = []string{"debug", "info", "warn", "error"}
	logFormats   = []string{"text", "json"}
	errNoDriver  = errors.New("source.driver is required")
	errNoDB      = errors.New("source.database is required")
	errNoHost    = errors.New("source.host is required")
	errBadPool   = errors.New("source.pool_size must not be negative")
	errNoSSHHost = errors.New("source.ssh.host is required when ssh is set")
)

// Default returns a configuration with every optional field set.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Driver:         "mysql",
			Host:           "localhost",
			PoolSize:       1,
			ConnectTimeout: source.DefaultConnectTimeout,
			QueryTimeout:   source.DefaultQueryTimeout,
		},
		Extract: ExtractConfig{Policy: "partial"},
		Server:  ServerConfig{Port: 3000},
		Logging: LogConfig{Level: "info", Format: "text"},
	}
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	_, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	driver := strings.ToLower(c.Source.Driver)
	if driver == "" {
		return errNoDriver
	}
	if !slices.Contains(drivers, driver) {
		return fmt.Errorf("source.driver %q is not supported", c.Source.Driver)
	}
	if c.Source.Database == "" {
		return errNoDB
	}
	if !strings.HasPrefix(driver, "sqlite") && c.Source.Host == "" {
		return errNoHost
	}
	if c.Source.Port < 0 || c.Source.Port > 65535 {
		return fmt.Errorf("source.port %d is out of range", c.Source.Port)
	}
	if c.Source.PoolSize < 0 {
		return errBadPool
	}
	if c.Source.SSH != nil && c.Source.SSH.Host == "" {
		return errNoSSHHost
	}
	if c.Extract.Policy != "" && !slices.Contains(policies, strings.ToLower(c.Extract.Policy)) {
		return fmt.Errorf("extract.policy %q must be partial or fail-fast", c.Extract.Policy)
	}
	for i, out := range c.Outputs {
		if !slices.Contains(outputTypes, out.Type) {
			return fmt.Errorf("outputs[%d].type %q is not supported", i, out.Type)
		}
		if out.Type == "kafka" {
			if len(out.Brokers) == 0 || out.Topic == "" {
				return fmt.Errorf("outputs[%d]: kafka output needs brokers and topic", i)
			}
		} else if out.Path == "" {
			return fmt.Errorf("outputs[%d]: %s output needs a path", i, out.Type)
		}
	}
	if c.Logging.Level != "" && !slices.Contains(logLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	if c.Logging.Format != "" && !slices.Contains(logFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("logging.format %q is not supported", c.Logging.Format)
	}
	return nil
}

// Connection converts the source section into the connection manager's
// config.
func (s SourceConfig) Connection() source.ConnectionConfig {
	return source.ConnectionConfig{
		Host:           s.Host,
		Port:           s.Port,
		User:           s.User,
		Password:       s.Password,
		Database:       s.Database,
		Schema:         s.Schema,
		SSLMode:        s.SSLMode,
		MaxOpenConns:   s.PoolSize,
		ConnectTimeout: s.ConnectTimeout,
		QueryTimeout:   s.QueryTimeout,
		SSH:            s.SSH,
	}
}

package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/alexanderjulianmartinez/data-extract/internal/tunnel"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultQueryTimeout   = 30 * time.Second
)

type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// Schema is the catalog namespace to extract. Dialects fill in a default
	// when it is empty.
	Schema  string
	SSLMode string

	// MaxOpenConns bounds the pool. 1 serializes every query on a single
	// connection.
	MaxOpenConns   int
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration

	SSH *tunnel.Config
}

func (c ConnectionConfig) Addr() string {
	if c.Host == "" {
		return ""
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c ConnectionConfig) withDefaults(d Dialect) ConnectionConfig {
	if c.Port == 0 {
		c.Port = d.DefaultPort()
	}
	if c.Schema == "" {
		c.Schema = d.DefaultSchema(c)
	}
	if c.MaxOpenConns < 1 {
		c.MaxOpenConns = 1
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	return c
}

// Connection owns one database handle for the lifetime of an extraction.
type Connection struct {
	db      *sql.DB
	dialect Dialect
	cfg     ConnectionConfig
	tunnel  *tunnel.Tunnel

	closeOnce sync.Once
	closeErr  error
}

// Open connects to the database described by cfg and verifies it with a ping.
// Any failure is returned as a *ConnectionError.
func Open(ctx context.Context, cfg ConnectionConfig, d Dialect) (*Connection, error) {
	if d == nil {
		return nil, &ConnectionError{Err: errors.New("no dialect")}
	}
	cfg = cfg.withDefaults(d)
	log := slog.Default().With("driver", d.Name(), "addr", cfg.Addr())

	conn := &Connection{dialect: d, cfg: cfg}

	dialCfg := cfg
	if cfg.SSH != nil {
		t, err := tunnel.Open(*cfg.SSH, cfg.Host, cfg.Port)
		if err != nil {
			log.Error("connection failed", "err", err)
			return nil, &ConnectionError{Driver: d.Name(), Addr: cfg.Addr(), Err: err}
		}
		conn.tunnel = t
		dialCfg.Host, dialCfg.Port = t.LocalAddr()
	}

	dsn, err := d.DSN(dialCfg)
	if err != nil {
		conn.Close()
		log.Error("connection failed", "err", err)
		return nil, &ConnectionError{Driver: d.Name(), Addr: cfg.Addr(), Err: err}
	}

	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		conn.Close()
		log.Error("connection failed", "err", err)
		return nil, &ConnectionError{Driver: d.Name(), Addr: cfg.Addr(), Err: err}
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	conn.db = db

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		conn.Close()
		log.Error("connection failed", "err", err)
		return nil, &ConnectionError{Driver: d.Name(), Addr: cfg.Addr(), Err: fmt.Errorf("ping: %w", err)}
	}

	log.Info("connected", "schema", cfg.Schema, "pool", cfg.MaxOpenConns)
	return conn, nil
}

// Close releases the pool and any tunnel. It is a no-op on a nil or already
// closed Connection.
func (c *Connection) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		if c.db != nil {
			c.closeErr = c.db.Close()
		}
		if c.tunnel != nil {
			if err := c.tunnel.Close(); err != nil && c.closeErr == nil {
				c.closeErr = err
			}
		}
	})
	return c.closeErr
}

func (c *Connection) Dialect() Dialect { return c.dialect }

func (c *Connection) Config() ConnectionConfig { return c.cfg }

// Schema is the configured schema after dialect defaults were applied.
func (c *Connection) Schema() string { return c.cfg.Schema }

// Stats exposes pool statistics, mostly for tests and diagnostics.
func (c *Connection) Stats() sql.DBStats { return c.db.Stats() }

// withConn checks a connection out of the pool under ctx alone, then runs fn
// under the query timeout. Time spent queued for a connection does not count
// against the timeout. fn must close any rows it opens before returning.
func (c *Connection) withConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	qctx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
	defer cancel()
	return fn(qctx, conn)
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nakajima/serverdata/internal/dialect"
	"github.com/nakajima/serverdata/internal/querysql"
)

// Config describes how to open a Container.
type Config struct {
	// Driver is the database/sql driver name: sqlite3, mysql or postgres.
	// Empty means sqlite3.
	Driver string
	DSN    string

	// Name overrides the container name derived from the DSN.
	Name string

	// InBinding selects the IN-list convention ("scalar" or "array").
	// Empty keeps the dialect default.
	InBinding string

	// NoReturning disables INSERT ... RETURNING, falling back to the
	// dialect's last-insert-id query.
	NoReturning bool

	Logger *slog.Logger
}

// Dialect resolves the configured driver and options into a dialect.
func (cfg Config) Dialect() (dialect.Dialect, error) {
	var opts []dialect.Option
	if cfg.InBinding != "" {
		b, err := dialect.ParseInBinding(cfg.InBinding)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dialect.WithInBinding(b))
	}
	if cfg.NoReturning {
		opts = append(opts, dialect.WithoutReturning())
	}
	return dialect.ForDriver(cfg.driver(), opts...)
}

func (cfg Config) driver() string {
	if cfg.Driver == "" {
		return "sqlite3"
	}
	return cfg.Driver
}

// Container is a named database handle with the dialect its statements are
// rendered in.
type Container struct {
	name    string
	db      *sql.DB
	dialect dialect.Dialect
	logger  *slog.Logger
}

// New wraps an open database. A nil dialect means dialect.Generic().
func New(name string, db *sql.DB, d dialect.Dialect) *Container {
	if d == nil {
		d = dialect.Generic()
	}
	return &Container{name: name, db: db, dialect: d, logger: slog.Default()}
}

// Open connects to the configured database.
//
// SQLite connections are limited to a single writer and configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(ctx context.Context, cfg Config) (*Container, error) {
	d, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}

	driver := cfg.driver()
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	name := cfg.Name
	if name == "" {
		name = databaseName(driver, cfg.DSN)
	}

	c := New(name, db, d)
	if cfg.Logger != nil {
		c.logger = cfg.Logger
	}
	c.logger.Info("database opened", "driver", driver, "name", name, "dialect", d.Name(), "in", d.InBinding())
	return c, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// databaseName derives a container name from a DSN: the database name for
// MySQL and PostgreSQL, the file name for SQLite.
func databaseName(driver, dsn string) string {
	switch driver {
	case "mysql":
		if cfg, err := mysql.ParseDSN(dsn); err == nil {
			return cfg.DBName
		}
	case "postgres":
		conninfo := dsn
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			parsed, err := pq.ParseURL(dsn)
			if err != nil {
				return ""
			}
			conninfo = parsed
		}
		return conninfoValue(conninfo, "dbname")
	case "sqlite3":
		path := strings.TrimPrefix(dsn, "file:")
		path, _, _ = strings.Cut(path, "?")
		return filepath.Base(path)
	}
	return ""
}

// conninfoValue reads key from a libpq key=value connection string. Values
// may be single quoted with backslash escapes.
func conninfoValue(conninfo, key string) string {
	s := conninfo
	for s != "" {
		s = strings.TrimLeft(s, " \t")
		k, rest, ok := strings.Cut(s, "=")
		if !ok {
			return ""
		}
		k = strings.TrimSpace(k)
		rest = strings.TrimLeft(rest, " \t")

		var v strings.Builder
		if strings.HasPrefix(rest, "'") {
			i := 1
			for ; i < len(rest) && rest[i] != '\''; i++ {
				if rest[i] == '\\' && i+1 < len(rest) {
					i++
				}
				v.WriteByte(rest[i])
			}
			s = rest[min(i+1, len(rest)):]
		} else {
			end := strings.IndexAny(rest, " \t")
			if end < 0 {
				end = len(rest)
			}
			v.WriteString(rest[:end])
			s = rest[end:]
		}
		if k == key {
			return v.String()
		}
	}
	return ""
}

// Name is the container name. Truncate and Drop only act on containers
// whose name contains "test".
func (c *Container) Name() string { return c.name }

// DB returns the underlying sql.DB.
func (c *Container) DB() *sql.DB { return c.db }

// Dialect returns the dialect statements are rendered in.
func (c *Container) Dialect() dialect.Dialect { return c.dialect }

// Logger returns the container's logger.
func (c *Container) Logger() *slog.Logger { return c.logger }

// SetLogger replaces the container's logger. A nil logger is ignored.
func (c *Container) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// Close closes the database connection.
func (c *Container) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Tables lists the user tables of the database, sorted by name.
func (c *Container) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, c.dialect.ListTables())
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	slices.Sort(tables)
	return tables, nil
}

// HasTable reports whether table exists.
func (c *Container) HasTable(ctx context.Context, table string) (bool, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(tables, table), nil
}

func (c *Container) guardTestDatabase(op string) error {
	if !strings.Contains(c.name, "test") {
		c.logger.Warn("refusing destructive operation", "op", op, "name", c.name)
		return fmt.Errorf("%s %q: %w", op, c.name, ErrNotTestDatabase)
	}
	return nil
}

// Truncate deletes every row of every table.
func (c *Container) Truncate(ctx context.Context) error {
	if err := c.guardTestDatabase("truncate"); err != nil {
		return err
	}
	tables, err := c.Tables(ctx)
	if err != nil {
		return err
	}
	for _, table := range tables {
		stmt := querysql.Statement{SQL: c.dialect.Truncate(table)}
		if _, err := c.exec(ctx, c.db, "truncate", stmt); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// Drop drops every table.
func (c *Container) Drop(ctx context.Context) error {
	if err := c.guardTestDatabase("drop"); err != nil {
		return err
	}
	tables, err := c.Tables(ctx)
	if err != nil {
		return err
	}
	for _, table := range tables {
		stmt := querysql.Statement{SQL: "DROP TABLE IF EXISTS " + c.dialect.Quote(table)}
		if _, err := c.exec(ctx, c.db, "drop", stmt); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

// querier is the statement surface shared by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// pin returns a querier bound to one connection. A transaction or connection
// already is; a pool hands out a dedicated *sql.Conn that release returns.
func pin(ctx context.Context, q querier) (querier, func() error, error) {
	db, ok := q.(*sql.DB)
	if !ok {
		return q, func() error { return nil }, nil
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	return conn, conn.Close, nil
}

func (c *Container) trace(op string, stmt querysql.Statement) {
	c.logger.Debug(op, "container", c.name, "sql", stmt.SQL, "bindings", len(stmt.Bindings))
}

func (c *Container) exec(ctx context.Context, q querier, op string, stmt querysql.Statement) (sql.Result, error) {
	c.trace(op, stmt)
	return q.ExecContext(ctx, stmt.SQL, stmt.Bindings...)
}

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/platinummonkey/adminkit/pkg/storage"
)

var tracer = otel.Tracer("adminkit/storage/sqlstore")

// Dialect selects the SQL flavour of a connection
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// ParseDialect maps a storage driver name to a Dialect
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported SQL driver %q", driver)
}

// Rebind rewrites ? placeholders into the dialect's form
func (d Dialect) Rebind(q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	inQuote := false
	for _, r := range q {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DB is a SQL connection shared by all repositories of this package
type DB struct {
	db      *sql.DB
	dialect Dialect
	log     *logrus.Logger
	tables  map[string]string
}

// Open connects to the database named by cfg.Driver and cfg.URL
func Open(cfg storage.Config, log *logrus.Logger) (*DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := cfg.URL
	if dialect == SQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect, err)
	}

	if dialect == SQLite && isMemoryDSN(dsn) {
		// each connection to a private in-memory database is a separate
		// database; shared-cache ones lock per table
		db.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	return New(db, dialect, log), nil
}

// New wraps an open *sql.DB
func New(db *sql.DB, dialect Dialect, log *logrus.Logger) *DB {
	if log == nil {
		log = logrus.New()
	}
	return &DB{db: db, dialect: dialect, log: log, tables: make(map[string]string)}
}

// sqliteDSN enables foreign keys and case-sensitive LIKE
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = ":memory:"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.Contains(dsn, "_fk=") && !strings.Contains(dsn, "_foreign_keys=") {
		dsn += sep + "_fk=true"
		sep = "&"
	}
	if !strings.Contains(dsn, "_cslike=") && !strings.Contains(dsn, "_case_sensitive_like=") {
		dsn += sep + "_cslike=true"
	}
	return dsn
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// SQL returns the underlying connection pool
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Dialect returns the connection's dialect
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Stats returns connection pool statistics
func (d *DB) Stats() sql.DBStats {
	return d.db.Stats()
}

// Ping checks the connection
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the connection pool
func (d *DB) Close() error {
	return d.db.Close()
}

// RegisterTable maps an entity type to the table holding its records
func (d *DB) RegisterTable(entity, table string) error {
	if !validIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	d.tables[entity] = table
	return nil
}

func (d *DB) table(entity string) (string, error) {
	table, ok := d.tables[entity]
	if !ok {
		return "", fmt.Errorf("no table registered for entity %q", entity)
	}
	return table, nil
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type txKey struct{}

type txState struct {
	owner *DB
	tx    *sql.Tx
}

func (d *DB) conn(ctx context.Context) querier {
	if st, ok := ctx.Value(txKey{}).(*txState); ok && st.owner == d {
		return st.tx
	}
	return d.db
}

func (d *DB) exec(ctx context.Context, q string, args ...interface{}) (sql.Result, error) {
	return d.conn(ctx).ExecContext(ctx, d.dialect.Rebind(q), args...)
}

func (d *DB) query(ctx context.Context, q string, args ...interface{}) (*sql.Rows, error) {
	return d.conn(ctx).QueryContext(ctx, d.dialect.Rebind(q), args...)
}

func (d *DB) queryRow(ctx context.Context, q string, args ...interface{}) *sql.Row {
	return d.conn(ctx).QueryRowContext(ctx, d.dialect.Rebind(q), args...)
}

// InTx runs fn in a transaction carried by the context. Calls made with a
// context already inside a transaction of this DB join it.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if st, ok := ctx.Value(txKey{}).(*txState); ok && st.owner == d {
		return fn(ctx)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("sqlstore.InTx", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				d.log.WithError(rbErr).Warn("transaction rollback failed")
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, &txState{owner: d, tx: tx})); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return classify("sqlstore.InTx", err)
	}
	return nil
}

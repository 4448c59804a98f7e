package storage

import (
	"context"
	"time"
)

// TxRunner runs fn inside a transaction. A ctx that already carries a
// transaction joins it; otherwise a new one is begun and committed when fn
// returns nil, rolled back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxFunc adapts a function to TxRunner
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// InTx calls f(ctx, fn)
func (f TxFunc) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// NoTx runs fn without a transaction
var NoTx TxRunner = TxFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})

// RecordStore persists entity rows. Records are pointers to structs whose
// fields carry db tags; the entity name selects the registered table.
type RecordStore interface {
	Insert(ctx context.Context, entity string, record interface{}) (int64, error)
	Update(ctx context.Context, entity string, id int64, record interface{}) error
	Delete(ctx context.Context, entity string, id int64) error
	Get(ctx context.Context, entity string, id int64, dst interface{}) error
}

// Config for storage backend
type Config struct {
	Driver string // "memory", "postgres", "sqlite3"

	// SQL config
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Field-list cache config
	CacheEnabled   bool
	FieldCacheSize int
	FieldCacheTTL  time.Duration

	// S3 config for export archives
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:          "memory",
		MaxConns:        20,
		MinConns:        2,
		Timeout:         10 * time.Second,
		MaxLifetime:     30 * time.Minute,
		MaxIdleTime:     5 * time.Minute,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
		CacheEnabled:    true,
		FieldCacheSize:  1000,
		FieldCacheTTL:   10 * time.Minute,
	}
}

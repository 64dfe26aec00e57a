package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the redis client the store uses for the
// unit-record cache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

const (
	defaultQueryTimeout = 5 * time.Second
	unitCacheTTL        = 10 * time.Minute
)

// Store is the allocation store: durable state for tenants, units and
// leases, with the hard invariants enforced by the database schema. All
// derived unit-status maintenance happens inside the same transaction as
// the lease write that caused it.
type Store struct {
	db      *sql.DB
	cache   RedisClient // may be nil; availability reads never use it
	timeout time.Duration
}

// New opens the store over the given Postgres DSN. cache may be nil to run
// without the unit-record cache.
func New(dsn string, cache RedisClient) (*Store, error) {
	config, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDB(*config)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db, cache: cache, timeout: defaultQueryTimeout}, nil
}

// Close closes the database connection and the cache client.
func (s *Store) Close() error {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			return err
		}
	}
	return s.db.Close()
}

// withTimeout bounds every store operation so nothing blocks indefinitely.
func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// inTx runs fn inside a transaction, rolling back on error. The transaction
// is never cancellable mid-flight beyond the bounded timeout: it runs to
// commit or rollback.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapWriteError("begin", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapWriteError("commit", err)
	}
	return nil
}

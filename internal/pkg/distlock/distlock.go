// Package distlock provides the per-campaign dispatch lock.
//
// Two dispatch runs against the same campaign would read overlapping pending
// snapshots and double-send recipients, so callers must hold this lock for
// the duration of a dispatch. Redis is the preferred backend when configured;
// otherwise PostgreSQL advisory locks are used, which release automatically
// if the session drops.
package distlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is the interface for a distributed lock. A Lock instance is for use
// from a single goroutine; concurrent holders need separate instances.
type Lock interface {
	// Acquire tries to take the lock without blocking. True on success.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this instance still owns it.
	Release(ctx context.Context) error
}

// New creates a lock using the best available backend. With a non-nil Redis
// client the lock works across hosts; otherwise it falls back to a
// PostgreSQL advisory lock on the given database.
func New(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) Lock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewAdvisoryLock(db, key)
}

// RedisLock implements Lock with SET NX plus a TTL. A random ownership token
// and a Lua release script prevent one process from releasing a lock that
// expired and was re-acquired by another.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLock creates a Redis-backed lock.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &RedisLock{
		client: client,
		key:    fmt.Sprintf("lock:%s", key),
		token:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

// Acquire tries to take the lock. True on success.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release deletes the key only if this instance's token still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result()
	return err
}

// AdvisoryLock implements Lock with pg_try_advisory_lock. The lock ID is
// derived from the key by FNV hashing, so every process computes the same ID
// for the same campaign.
//
// Advisory locks are session-scoped and re-entrant within a session, so the
// lock must live on one dedicated connection: going through the pooled
// *sql.DB could hand a second holder the very connection that already owns
// the lock, or run the unlock on a connection that never held it. Acquire
// pins a *sql.Conn out of the pool and Release unlocks and closes it.
type AdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewAdvisoryLock creates a PostgreSQL advisory lock for the given key.
func NewAdvisoryLock(db *sql.DB, key string) *AdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &AdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

// Acquire tries to take the advisory lock without blocking. On success the
// underlying connection stays pinned until Release.
func (l *AdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, fmt.Errorf("advisory lock %d already acquired", l.lockID)
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("pin lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("acquire advisory lock %d: %w", l.lockID, err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release unlocks on the pinned connection and returns it to the pool.
// Closing the connection would drop the lock anyway; the explicit unlock
// keeps the session clean for reuse.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	closeErr := l.conn.Close()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("release advisory lock %d: %w", l.lockID, err)
	}
	return closeErr
}

package distlock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"strings"
	"sync"
	"testing"
)

// advisoryDriver is an in-memory stand-in for PostgreSQL advisory locks with
// their documented semantics: locks are session-scoped, re-entrant within
// the owning session, an unlock from a foreign session is a no-op returning
// false, and closing a session drops everything it holds. Each driver
// connection is one session.
type advisoryDriver struct {
	mu    sync.Mutex
	locks map[int64]*advisoryHolding
}

type advisoryHolding struct {
	owner *advisoryConn
	count int
}

func (d *advisoryDriver) Open(string) (driver.Conn, error) {
	return &advisoryConn{drv: d}, nil
}

type advisoryConn struct {
	drv *advisoryDriver
}

func (c *advisoryConn) Prepare(string) (driver.Stmt, error) {
	return nil, driver.ErrSkip
}

func (c *advisoryConn) Begin() (driver.Tx, error) {
	return nil, driver.ErrSkip
}

// Close ends the session; everything it holds is dropped, as Postgres does.
func (c *advisoryConn) Close() error {
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()
	for id, h := range c.drv.locks {
		if h.owner == c {
			delete(c.drv.locks, id)
		}
	}
	return nil
}

func (c *advisoryConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return &boolRows{val: c.run(query, args)}, nil
}

func (c *advisoryConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.run(query, args)
	return driver.RowsAffected(0), nil
}

func (c *advisoryConn) run(query string, args []driver.NamedValue) bool {
	lockID := args[0].Value.(int64)
	c.drv.mu.Lock()
	defer c.drv.mu.Unlock()

	switch {
	case strings.Contains(query, "pg_try_advisory_lock"):
		h, held := c.drv.locks[lockID]
		if !held {
			c.drv.locks[lockID] = &advisoryHolding{owner: c, count: 1}
			return true
		}
		if h.owner == c { // re-entrant within the session
			h.count++
			return true
		}
		return false
	case strings.Contains(query, "pg_advisory_unlock"):
		h, held := c.drv.locks[lockID]
		if !held || h.owner != c {
			return false
		}
		h.count--
		if h.count == 0 {
			delete(c.drv.locks, lockID)
		}
		return true
	}
	return false
}

type boolRows struct {
	val  bool
	done bool
}

func (r *boolRows) Columns() []string { return []string{"result"} }
func (r *boolRows) Close() error      { return nil }

func (r *boolRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = r.val
	return nil
}

var registerAdvisoryDriver sync.Once

func newAdvisoryDB(t *testing.T) *sql.DB {
	t.Helper()
	registerAdvisoryDriver.Do(func() {
		sql.Register("advisory-fake", &advisoryDriver{locks: map[int64]*advisoryHolding{}})
	})
	db, err := sql.Open("advisory-fake", "")
	if err != nil {
		t.Fatalf("open fake db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAdvisoryLockMutualExclusion(t *testing.T) {
	db := newAdvisoryDB(t)
	ctx := context.Background()

	// Both holders go through the same pool. Without a pinned connection
	// the second Acquire could be handed the session that already owns the
	// lock and re-enter it.
	l1 := NewAdvisoryLock(db, "dispatch:camp-excl")
	ok, err := l1.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	l2 := NewAdvisoryLock(db, "dispatch:camp-excl")
	ok, err = l2.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok {
		t.Fatal("second acquire should fail while lock is held")
	}

	if err := l1.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	ok, err = l2.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if !ok {
		t.Fatal("acquire should succeed after release")
	}
	if err := l2.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestAdvisoryLockReleaseUnlocksOwnSession(t *testing.T) {
	db := newAdvisoryDB(t)
	ctx := context.Background()

	l1 := NewAdvisoryLock(db, "dispatch:camp-own")
	if ok, _ := l1.Acquire(ctx); !ok {
		t.Fatal("acquire should succeed")
	}

	// Release on a lock that never acquired must not free the holder's.
	stranger := NewAdvisoryLock(db, "dispatch:camp-own")
	if err := stranger.Release(ctx); err != nil {
		t.Fatalf("stranger release: %v", err)
	}
	if ok, _ := stranger.Acquire(ctx); ok {
		t.Fatal("lock should still be held by original owner")
	}

	// The real holder's release runs on its own pinned session.
	if err := l1.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := stranger.Acquire(ctx); !ok {
		t.Fatal("acquire should succeed once the holder released")
	}
}

func TestAdvisoryLockDifferentCampaigns(t *testing.T) {
	db := newAdvisoryDB(t)
	ctx := context.Background()

	l1 := NewAdvisoryLock(db, "dispatch:camp-a")
	l2 := NewAdvisoryLock(db, "dispatch:camp-b")

	if ok, _ := l1.Acquire(ctx); !ok {
		t.Fatal("camp-a acquire should succeed")
	}
	if ok, _ := l2.Acquire(ctx); !ok {
		t.Fatal("camp-b acquire should succeed, locks are per campaign")
	}
}

func TestAdvisoryLockDoubleAcquire(t *testing.T) {
	db := newAdvisoryDB(t)
	ctx := context.Background()

	l := NewAdvisoryLock(db, "dispatch:camp-dup")
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatal("acquire should succeed")
	}
	if _, err := l.Acquire(ctx); err == nil {
		t.Fatal("re-acquiring through the same instance should error")
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
}

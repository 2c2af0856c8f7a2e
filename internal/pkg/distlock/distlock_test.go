package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLockAcquireRelease(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewRedisLock(client, "dispatch:camp-1", time.Minute)
	ok, err := l1.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire should succeed")
	}

	// Second holder is excluded while the first holds the lock.
	l2 := NewRedisLock(client, "dispatch:camp-1", time.Minute)
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
}

func TestRedisLockDifferentCampaigns(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewRedisLock(client, "dispatch:camp-1", time.Minute)
	l2 := NewRedisLock(client, "dispatch:camp-2", time.Minute)

	ok, _ := l1.Acquire(ctx)
	if !ok {
		t.Fatal("camp-1 acquire should succeed")
	}
	ok, _ = l2.Acquire(ctx)
	if !ok {
		t.Fatal("camp-2 acquire should succeed, locks are per campaign")
	}
}

func TestRedisLockReleaseOnlyOwn(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewRedisLock(client, "dispatch:camp-1", time.Minute)
	if ok, _ := l1.Acquire(ctx); !ok {
		t.Fatal("acquire should succeed")
	}

	// A stranger releasing must not free the holder's lock.
	stranger := NewRedisLock(client, "dispatch:camp-1", time.Minute)
	if err := stranger.Release(ctx); err != nil {
		t.Fatalf("stranger release: %v", err)
	}

	l2 := NewRedisLock(client, "dispatch:camp-1", time.Minute)
	if ok, _ := l2.Acquire(ctx); ok {
		t.Fatal("lock should still be held by original owner")
	}
}

func TestNewPrefersRedis(t *testing.T) {
	client := newTestRedis(t)

	l := New(client, nil, "dispatch:camp-1", time.Minute)
	if _, ok := l.(*RedisLock); !ok {
		t.Fatalf("expected *RedisLock, got %T", l)
	}

	l = New(nil, nil, "dispatch:camp-1", time.Minute)
	if _, ok := l.(*AdvisoryLock); !ok {
		t.Fatalf("expected *AdvisoryLock, got %T", l)
	}
}

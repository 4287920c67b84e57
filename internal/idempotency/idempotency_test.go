package idempotency

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/bloodbank/internal/clock"
	"github.com/redis/go-redis/v9"
)

// exerciseStore runs the same contract against every implementation.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	key := uuid.NewString()
	hash := HashRequest("POST", "/api/v1/reservations", []byte(`{"bag_quantity":1}`))

	rec, err := s.Reserve(ctx, key, hash)
	if err != nil || rec != nil {
		t.Fatalf("expected fresh reservation, got %+v %v", rec, err)
	}
	if _, err := s.Reserve(ctx, key, hash); !errors.Is(err, ErrInProgress) {
		t.Fatalf("expected ErrInProgress, got %v", err)
	}
	if _, err := s.Reserve(ctx, key, "other"); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}

	if err := s.Complete(ctx, key, 201, []byte(`{"id":"c1"}`)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	rec, err = s.Reserve(ctx, key, hash)
	if err != nil || rec == nil {
		t.Fatalf("expected replay record, got %+v %v", rec, err)
	}
	if rec.ResponseStatus != 201 || string(rec.ResponseBody) != `{"id":"c1"}` {
		t.Fatalf("unexpected record: %+v", rec)
	}

	failed := uuid.NewString()
	if _, err := s.Reserve(ctx, failed, hash); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := s.Release(ctx, failed); err != nil {
		t.Fatalf("release: %v", err)
	}
	if rec, err := s.Reserve(ctx, failed, hash); err != nil || rec != nil {
		t.Fatalf("expected released key to be reservable, got %+v %v", rec, err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory(nil))
}

func TestMemory_Expiry(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewMemory(clk)
	ctx := context.Background()

	if _, err := m.Reserve(ctx, "k", "h"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	clk.Advance(TTL + time.Second)
	if rec, err := m.Reserve(ctx, "k", "different"); err != nil || rec != nil {
		t.Fatalf("expected expired key to be reusable, got %+v %v", rec, err)
	}
}

func TestHashRequest(t *testing.T) {
	a := HashRequest("POST", "/a", []byte("x"))
	if a != HashRequest("POST", "/a", []byte("x")) {
		t.Fatalf("expected stable hash")
	}
	if a == HashRequest("POST", "/b", []byte("x")) || a == HashRequest("POST", "/a", []byte("y")) {
		t.Fatalf("expected path and body to change the hash")
	}
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping Redis integration test: %v", err)
	}

	exerciseStore(t, NewRedis(client))
}

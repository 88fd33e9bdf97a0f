package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/edgescan/internal/db"
)

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	buf := []byte("v1")
	if err := s.Set(ctx, "k", buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buf[0] = 'x'
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("stored value aliased caller buffer: %q", got)
	}
}

func TestSetWithTTL_Expires(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	if err := s.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok, _ := s.Exists(ctx, "k"); !ok {
		t.Fatal("key should exist before expiry")
	}
	now = now.Add(time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected expired key, got %v", err)
	}
	if keys, _ := s.Scan(ctx, "*"); len(keys) != 0 {
		t.Errorf("expired key listed: %v", keys)
	}
	if err := s.SetWithTTL(ctx, "k", nil, -time.Second); err == nil {
		t.Error("expected error for negative ttl")
	}
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, k := range []string{"edgescan:run:b", "edgescan:run:a", "other:x"} {
		if err := s.Set(ctx, k, []byte("1")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.HSet(ctx, "edgescan:run:index", map[string]string{"a": "1"}); err != nil {
		t.Fatal(err)
	}

	keys, err := s.Scan(ctx, "edgescan:run:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"edgescan:run:a", "edgescan:run:b", "edgescan:run:index"}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("got %v, want %v", keys, want)
		}
	}

	if _, err := s.Scan(ctx, "["); !isDBError(err) {
		t.Errorf("expected db.Error for bad pattern, got %v", err)
	}
}

func TestHash(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.HSet(ctx, "h", map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatal(err)
	}
	m, _ := s.HGetAll(ctx, "h")
	m["a"] = "changed"
	m2, _ := s.HGetAll(ctx, "h")
	if m2["a"] != "1" || m2["b"] != "2" {
		t.Errorf("unexpected hash %v", m2)
	}

	_ = s.HDel(ctx, "h", "a", "b")
	if ok, _ := s.Exists(ctx, "h"); ok {
		t.Error("emptied hash should be removed")
	}
	if m, err := s.HGetAll(ctx, "missing"); err != nil || len(m) != 0 {
		t.Errorf("missing hash: %v %v", m, err)
	}
}

func TestDelAndClose(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Set(ctx, "k", []byte("v"))
	_ = s.HSet(ctx, "h", map[string]string{"f": "v"})

	_ = s.Del(ctx, "k")
	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Error("deleted key still exists")
	}
	s.Close()
	if ok, _ := s.Exists(ctx, "h"); ok {
		t.Error("Close should drop data")
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

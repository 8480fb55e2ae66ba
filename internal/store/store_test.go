package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

// testStoreContract runs the behavior every Store must share.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "entry/field"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on empty slot error = %v, want %v", err, ErrNotFound)
	}

	first := []byte(`{"streamUrl":"a","samples":[]}`)
	if err := s.Set(ctx, "entry/field", first); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Get(ctx, "entry/field")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Errorf("Get() = %s, want %s", got, first)
	}

	second := []byte(`{"streamUrl":"b","samples":[1]}`)
	if err := s.Set(ctx, "entry/field", second); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	got, _ = s.Get(ctx, "entry/field")
	if !bytes.Equal(got, second) {
		t.Errorf("Get() after overwrite = %s, want %s", got, second)
	}

	if _, err := s.Get(ctx, "entry/other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() other slot error = %v, want %v", err, ErrNotFound)
	}

	if err := s.Clear(ctx, "entry/field"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := s.Get(ctx, "entry/field"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after clear error = %v, want %v", err, ErrNotFound)
	}
	if err := s.Clear(ctx, "entry/field"); err != nil {
		t.Errorf("Clear() on empty slot error = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	testStoreContract(t, s)

	// Stored bytes are not aliased
	value := []byte("abc")
	_ = s.Set(context.Background(), "k", value)
	value[0] = 'x'
	got, _ := s.Get(context.Background(), "k")
	if string(got) != "abc" {
		t.Errorf("Get() = %s, want abc", got)
	}
	if s.Size() != 1 {
		t.Errorf("Size() = %d, want 1", s.Size())
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.db")
	s, err := NewSQLiteStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	testStoreContract(t, s)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	_ = s.Close()

	reopened, err := NewSQLiteStore(path, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Errorf("Get() after reopen = %q, %v, want v", got, err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TRACKMETA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TRACKMETA_TEST_REDIS_ADDR not set")
	}

	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr, Prefix: "trackmeta-test:" + t.Name() + ":"})
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	testStoreContract(t, s)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), RedisOptions{Addr: "127.0.0.1:1"}); err == nil {
		t.Error("NewRedisStore() expected error for unreachable server")
	}
}

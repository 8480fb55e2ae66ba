package field

import (
	"context"
	"errors"
	"testing"

	"trackmeta/internal/store"
)

func TestStoredConfig_SaveAndGet(t *testing.T) {
	s := store.NewMemoryStore()
	config := NewStoredConfig(s, InstallationParameters{})
	ctx := context.Background()

	if _, err := config.Get(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Get() before save error = %v, want %v", err, ErrNotConfigured)
	}

	saved, err := config.Save(ctx, InstallationParameters{ClientID: "  abc123 "})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.ClientID != "abc123" {
		t.Errorf("Save() client id = %q, want abc123", saved.ClientID)
	}

	params, err := config.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if params.ClientID != "abc123" {
		t.Errorf("Get() client id = %q, want abc123", params.ClientID)
	}
}

func TestStoredConfig_SaveRejectsEmpty(t *testing.T) {
	s := store.NewMemoryStore()
	config := NewStoredConfig(s, InstallationParameters{})
	ctx := context.Background()

	if _, err := config.Save(ctx, InstallationParameters{ClientID: "keep"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	for _, id := range []string{"", "   ", "\t\n"} {
		if _, err := config.Save(ctx, InstallationParameters{ClientID: id}); !errors.Is(err, ErrInvalidClientID) {
			t.Errorf("Save(%q) error = %v, want %v", id, err, ErrInvalidClientID)
		}
	}

	params, _ := config.Get(ctx)
	if params.ClientID != "keep" {
		t.Errorf("rejected save changed the client id to %q", params.ClientID)
	}
}

func TestStoredConfig_Fallback(t *testing.T) {
	s := store.NewMemoryStore()
	config := NewStoredConfig(s, InstallationParameters{ClientID: "from-env"})
	ctx := context.Background()

	params, err := config.Get(ctx)
	if err != nil || params.ClientID != "from-env" {
		t.Errorf("Get() = %+v, %v, want fallback", params, err)
	}

	if _, err := config.Save(ctx, InstallationParameters{ClientID: "saved"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if params, _ := config.Get(ctx); params.ClientID != "saved" {
		t.Errorf("Get() = %q, want saved value over fallback", params.ClientID)
	}
}

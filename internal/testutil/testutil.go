// Package testutil provides shared test helpers for wiring temporary
// bookmark stores and models.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/othala/internal/backend"
	"github.com/starford/othala/internal/bookmarks"
)

// Logger returns a JSON logger that only speaks up on errors, keeping test
// output readable.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestStore creates a temporary SQLite bookmark store that is automatically
// cleaned up.
func TestStore(t *testing.T) *backend.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	s, err := backend.Open(dbFile.Name(), Logger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestModel starts a model over its own temporary store.
func TestModel(t *testing.T, cfg bookmarks.Config) *bookmarks.Model {
	t.Helper()
	return ModelOn(t, TestStore(t), cfg)
}

// ModelOn starts a model over an existing store, so several models can
// share one backend.
func ModelOn(t *testing.T, store backend.Store, cfg bookmarks.Config) *bookmarks.Model {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = Logger()
	}
	m, err := bookmarks.New(context.Background(), store, cfg)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

// Eventually polls fn until it returns true or the timeout passes.
func Eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

package internal

import (
	"strings"
	"testing"
	"time"

	"github.com/starford/othala/internal/bookmarks"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if got := cfg.App.HTTP.Address(); got != ":8080" {
		t.Errorf("address = %q, want :8080", got)
	}
}

func TestStoreConfig_RequiresPaths(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*StoreConfig)
	}{
		{"empty path", func(c *StoreConfig) { c.Path = "" }},
		{"empty trash path", func(c *StoreConfig) { c.TrashPath = "" }},
		{"zero trash keep", func(c *StoreConfig) { c.TrashKeep = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Store
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestStashConfig_EmptyFallsBackToDefaults(t *testing.T) {
	cfg := StashConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty stash config should pass: %v", err)
	}
	if cfg.RootTitle != bookmarks.DefaultStashRootTitle {
		t.Errorf("root title = %q, want %q", cfg.RootTitle, bookmarks.DefaultStashRootTitle)
	}
	if cfg.GroupMaxAge != bookmarks.DefaultStashTargetMaxAge {
		t.Errorf("group max age = %v, want %v", cfg.GroupMaxAge, bookmarks.DefaultStashTargetMaxAge)
	}
}

func TestImportConfig_NegativeSettleRejected(t *testing.T) {
	cfg := ImportConfig{Dir: "/tmp/in", Settle: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative settle should fail")
	}
}

func TestSnapshotConfig_DisabledSkipsValidation(t *testing.T) {
	cfg := SnapshotConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled snapshot config should pass: %v", err)
	}
}

func TestSnapshotConfig_EnabledRequiresIntervalAndKeep(t *testing.T) {
	cfg := SnapshotConfig{Dir: "/tmp/snaps", Interval: 0, Keep: 10}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero interval should fail when a dir is set")
	}
	cfg = SnapshotConfig{Dir: "/tmp/snaps", Interval: time.Hour, Keep: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero keep should fail when a dir is set")
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_SectionValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}

	cfg = NewDefaultConfig()
	cfg.Store.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch store error")
	}
}

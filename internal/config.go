package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/othala/internal/bookmarks"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Store    StoreConfig       `yaml:"store"`
	Stash    StashConfig       `yaml:"stash"`
	Import   ImportConfig      `yaml:"import"`
	Snapshot SnapshotConfig    `yaml:"snapshot"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Stash.Validate(); err != nil {
		return err
	}
	if err := c.Import.Validate(); err != nil {
		return err
	}
	if err := c.Snapshot.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig holds the paths of the authoritative bookmark database and the
// deleted-items database, plus the trash retention bound.
type StoreConfig struct {
	Path      string `yaml:"path"`
	TrashPath string `yaml:"trash_path"`
	TrashKeep int    `yaml:"trash_keep"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.TrashPath, validation.Required),
		validation.Field(&c.TrashKeep, validation.Required, validation.Min(1)),
	)
}

// StashConfig configures the stash-root resolver.
type StashConfig struct {
	// RootTitle is the folder title that designates the stash root.
	RootTitle string `yaml:"root_title"`
	// GroupMaxAge is how old a generated stash group may be and still
	// collect new stashes.
	GroupMaxAge time.Duration `yaml:"group_max_age"`
}

// Validate validates the stash configuration. Empty values fall back to the
// model defaults.
func (c *StashConfig) Validate() error {
	if c.RootTitle == "" {
		c.RootTitle = bookmarks.DefaultStashRootTitle
	}
	if c.GroupMaxAge <= 0 {
		c.GroupMaxAge = bookmarks.DefaultStashTargetMaxAge
	}
	return nil
}

// ImportConfig configures the watched import directory. An empty Dir
// disables the importer.
type ImportConfig struct {
	Dir    string        `yaml:"dir"`
	Settle time.Duration `yaml:"settle"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	if c.Settle < 0 {
		return fmt.Errorf("import: settle must not be negative")
	}
	return nil
}

// SnapshotConfig configures periodic HTML exports. An empty Dir disables
// snapshots.
type SnapshotConfig struct {
	Dir      string        `yaml:"dir"`
	Interval time.Duration `yaml:"interval"`
	Keep     int           `yaml:"keep"`
}

// Validate validates the snapshot configuration.
func (c *SnapshotConfig) Validate() error {
	if c.Dir == "" {
		return nil
	}
	if c.Interval <= 0 {
		return fmt.Errorf("snapshot: interval must be positive when a directory is set")
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Keep, validation.Required, validation.Min(1)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Path:      "./othala.db",
			TrashPath: "./othala-trash.db",
			TrashKeep: 500,
		},
		Stash: StashConfig{
			RootTitle:   bookmarks.DefaultStashRootTitle,
			GroupMaxAge: bookmarks.DefaultStashTargetMaxAge,
		},
		Import: ImportConfig{
			Settle: 500 * time.Millisecond,
		},
		Snapshot: SnapshotConfig{
			Interval: time.Hour,
			Keep:     10,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

package importer

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/othala/internal/bookmarks"
	"github.com/starford/othala/internal/favicon"
)

const (
	importedSuffix = ".imported"
	failedSuffix   = ".failed"
	defaultSettle  = 500 * time.Millisecond
)

// Config wires the importer to its collaborators.
type Config struct {
	// Dir is the watched import directory.
	Dir   string
	Model *bookmarks.Model
	// Icons, when set, receives inline data: icons from imported files.
	Icons  *favicon.Cache
	Logger *slog.Logger
	// Settle is how long the directory must stay quiet after a change
	// before a sweep runs, so half-written files are not picked up.
	// Defaults to 500ms.
	Settle time.Duration
}

// Watch starts an fsnotify watcher on the import directory and processes
// new bookmark files until ctx is cancelled. A startup sweep first imports
// files that arrived while the service was down.
func Watch(ctx context.Context, cfg Config) error {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}

	Sweep(ctx, cfg)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("importer: watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(cfg.Dir); err != nil {
		return fmt.Errorf("importer: watch %s: %w", cfg.Dir, err)
	}
	cfg.Logger.Info("importer: started", slog.String("dir", cfg.Dir))

	// settleTimer debounces bursts of write events into one sweep.
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(cfg.Settle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(cfg.Settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			cfg.Logger.Info("importer: stopped")
			return nil

		case <-settleCh:
			Sweep(ctx, cfg)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !candidate(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cfg.Logger.Error("importer: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

// Sweep imports every pending bookmark file in the import directory.
func Sweep(ctx context.Context, cfg Config) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		cfg.Logger.Warn("importer: read dir failed", slog.String("dir", cfg.Dir), slog.String("error", err.Error()))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !candidate(e.Name()) {
			continue
		}
		path := filepath.Join(cfg.Dir, e.Name())
		if err := ImportFile(ctx, cfg, path); err != nil {
			cfg.Logger.Warn("importer: import failed", slog.String("file", path), slog.String("error", err.Error()))
		}
	}
}

// candidate reports whether a file name looks like an unprocessed bookmark
// export.
func candidate(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}

// ImportFile parses one Netscape file and creates its entries under a fresh
// folder in the stash root. Processed files are renamed with an ".imported"
// suffix; files that fail to parse or import get ".failed" so a sweep does
// not retry them forever.
func ImportFile(ctx context.Context, cfg Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("importer: open: %w", err)
	}
	parsed, parseErr := ParseNetscape(f)
	f.Close()
	if parseErr != nil {
		markDone(cfg.Logger, path, failedSuffix)
		return parseErr
	}
	if len(parsed) == 0 {
		markDone(cfg.Logger, path, importedSuffix)
		cfg.Logger.Info("importer: no bookmarks in file", slog.String("file", path))
		return nil
	}

	root, err := cfg.Model.EnsureStashRoot(ctx)
	if err != nil {
		return fmt.Errorf("importer: ensure stash root: %w", err)
	}
	folder, err := cfg.Model.CreateFolder(ctx, root.ID, 0, ImportTitle(path))
	if err != nil {
		return fmt.Errorf("importer: create import folder: %w", err)
	}
	created, err := CreateEntries(ctx, cfg.Model, cfg.Icons, folder.ID, parsed)
	if err != nil {
		// Whatever landed before the failure stays in the tree; the file
		// is parked so it is not imported twice.
		markDone(cfg.Logger, path, failedSuffix)
		return fmt.Errorf("importer: %s after %d nodes: %w", path, created, err)
	}

	markDone(cfg.Logger, path, importedSuffix)
	cfg.Logger.Info("importer: imported",
		slog.String("file", filepath.Base(path)),
		slog.String("folder", string(folder.ID)),
		slog.Int("nodes", created))
	return nil
}

// CreateEntries files parsed entries under parentID through the model's
// mutator, preserving order and nesting. Inline icons go to the cache when
// one is provided. Returns how many nodes were created; on error the count
// covers what landed before the failure.
func CreateEntries(ctx context.Context, model *bookmarks.Model, icons *favicon.Cache, parentID bookmarks.NodeID, entries []*Entry) (int, error) {
	created := 0
	for i, e := range entries {
		switch e.Kind {
		case bookmarks.KindFolder:
			folder, err := model.CreateFolder(ctx, parentID, i, e.Title)
			if err != nil {
				return created, err
			}
			created++
			n, err := CreateEntries(ctx, model, icons, folder.ID, e.Children)
			created += n
			if err != nil {
				return created, err
			}
		case bookmarks.KindSeparator:
			if _, err := model.CreateSeparator(ctx, parentID, i); err != nil {
				return created, err
			}
			created++
		default:
			if e.URL == "" {
				continue
			}
			if _, err := model.CreateBookmarkAt(ctx, parentID, i, e.Title, e.URL, e.AddedAt); err != nil {
				return created, err
			}
			created++
			cacheIcon(icons, e.URL, e.Icon)
		}
	}
	return created, nil
}

// ImportTitle derives the import folder's title from the file name.
func ImportTitle(path string) string {
	base := filepath.Base(path)
	return "Imported " + strings.TrimSuffix(base, filepath.Ext(base))
}

// markDone renames a processed file so sweeps skip it from now on.
func markDone(log *slog.Logger, path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		log.Warn("importer: rename failed", slog.String("file", path), slog.String("error", err.Error()))
	}
}

// cacheIcon stores an inline data: icon under the bookmark's normalized
// URL. Remote icon URLs are ignored; fetching is not the importer's job.
func cacheIcon(cache *favicon.Cache, url, icon string) {
	if cache == nil || !strings.HasPrefix(icon, "data:") {
		return
	}
	meta, b64, ok := strings.Cut(strings.TrimPrefix(icon, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(data) == 0 {
		return
	}
	contentType := strings.TrimSuffix(meta, ";base64")
	if contentType == "" {
		contentType = "image/x-icon"
	}
	cache.Put(bookmarks.NormalizeURL(url), favicon.Icon{Data: data, ContentType: contentType})
}

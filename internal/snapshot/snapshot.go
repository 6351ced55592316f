// Package snapshot periodically exports the bookmark tree to Netscape HTML
// files, so a browser-importable backup always exists on disk.
package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/othala/internal/bookmarks"
	"github.com/starford/othala/internal/importer"
)

const (
	filePrefix  = "bookmarks-"
	fileExt     = ".html"
	stampFormat = "20060102-150405"

	defaultInterval = time.Hour
	defaultKeep     = 10
)

// Config wires the snapshotter.
type Config struct {
	// Dir receives the snapshot files. Created if missing.
	Dir    string
	Model  *bookmarks.Model
	Logger *slog.Logger
	// Interval between export attempts. Defaults to one hour.
	Interval time.Duration
	// Keep is how many snapshot files retention leaves behind. Defaults
	// to 10.
	Keep int
	// Now is the clock used for file naming. Defaults to time.Now.
	Now func() time.Time
}

// Snapshotter renders and retains tree exports. Unchanged trees are
// detected by digest and skipped, so an idle service does not pile up
// identical files.
type Snapshotter struct {
	dir      string
	model    *bookmarks.Model
	log      *slog.Logger
	interval time.Duration
	keep     int
	now      func() time.Time

	mu      sync.Mutex
	lastSum string
}

// New prepares the snapshot directory and seeds the digest from the newest
// existing snapshot, so a restart does not rewrite an unchanged tree.
func New(cfg Config) (*Snapshotter, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: mkdir %s: %w", cfg.Dir, err)
	}
	s := &Snapshotter{
		dir:      cfg.Dir,
		model:    cfg.Model,
		log:      cfg.Logger,
		interval: cfg.Interval,
		keep:     cfg.Keep,
		now:      cfg.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.keep <= 0 {
		s.keep = defaultKeep
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.lastSum = s.latestDigest()
	return s, nil
}

// Run writes one snapshot immediately, then on every interval tick until
// ctx is cancelled.
func (s *Snapshotter) Run(ctx context.Context) error {
	s.writeLogged()
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("snapshot: stopped")
			return nil
		case <-t.C:
			s.writeLogged()
		}
	}
}

func (s *Snapshotter) writeLogged() {
	path, wrote, err := s.WriteOnce()
	switch {
	case err != nil:
		s.log.Warn("snapshot: write failed", slog.String("error", err.Error()))
	case wrote:
		s.log.Info("snapshot: written", slog.String("file", filepath.Base(path)))
	}
}

// WriteOnce exports the tree once. It reports the written path and whether
// a file was produced; an unchanged tree produces nothing.
func (s *Snapshotter) WriteOnce() (string, bool, error) {
	root := s.model.Root()
	if root == nil {
		return "", false, fmt.Errorf("snapshot: mirror has no root")
	}
	var buf bytes.Buffer
	if err := importer.WriteNetscape(&buf, s.model, root.ID); err != nil {
		return "", false, fmt.Errorf("snapshot: render: %w", err)
	}
	sum := digest(buf.Bytes())

	s.mu.Lock()
	defer s.mu.Unlock()
	if sum == s.lastSum {
		return "", false, nil
	}
	name := filePrefix + s.now().UTC().Format(stampFormat) + fileExt
	path := filepath.Join(s.dir, name)
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return "", false, err
	}
	s.lastSum = sum
	if err := s.prune(); err != nil {
		s.log.Warn("snapshot: prune failed", slog.String("error", err.Error()))
	}
	return path, true, nil
}

// snapshots returns snapshot file names sorted oldest first. The timestamp
// format sorts lexically in chronological order.
func (s *Snapshotter) snapshots() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExt) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// prune removes the oldest files beyond the retention count. Callers hold
// s.mu.
func (s *Snapshotter) prune() error {
	names, err := s.snapshots()
	if err != nil {
		return err
	}
	for len(names) > s.keep {
		if err := os.Remove(filepath.Join(s.dir, names[0])); err != nil {
			return fmt.Errorf("snapshot: remove %s: %w", names[0], err)
		}
		names = names[1:]
	}
	return nil
}

// latestDigest reads the newest snapshot on disk, if any.
func (s *Snapshotter) latestDigest() string {
	names, err := s.snapshots()
	if err != nil || len(names) == 0 {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(s.dir, names[len(names)-1]))
	if err != nil {
		return ""
	}
	return digest(data)
}

// writeAtomic writes content via tmp file, fsync, and rename, so readers
// never observe a half-written snapshot.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".othala-tmp-*")
	if err != nil {
		return fmt.Errorf("snapshot: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("snapshot: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("snapshot: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	success = true
	return nil
}

func digest(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

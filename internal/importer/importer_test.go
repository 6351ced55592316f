package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/othala/internal/bookmarks"
	"github.com/starford/othala/internal/favicon"
	"github.com/starford/othala/internal/testutil"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Dir:    t.TempDir(),
		Model:  testutil.TestModel(t, bookmarks.Config{}),
		Icons:  favicon.NewCache(),
		Logger: testutil.Logger(),
		Settle: 50 * time.Millisecond,
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// findChild returns the child of parentID with the given title.
func findChild(t *testing.T, m *bookmarks.Model, parentID bookmarks.NodeID, title string) *bookmarks.Node {
	t.Helper()
	for _, c := range m.ChildrenOf(parentID) {
		if c.Title == title {
			return c
		}
	}
	t.Fatalf("no child %q under %s", title, parentID)
	return nil
}

func TestImportFile_CreatesTreeUnderStashRoot(t *testing.T) {
	cfg := testConfig(t)
	path := writeFile(t, cfg.Dir, "bookmarks.html", firefoxExport)

	if err := ImportFile(context.Background(), cfg, path); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}

	root, ok := cfg.Model.StashRoot()
	if !ok {
		t.Fatal("no stash root after import")
	}
	imported := findChild(t, cfg.Model, root.ID, "Imported bookmarks")

	work := findChild(t, cfg.Model, imported.ID, "Work")
	if !work.IsFolder() {
		t.Fatalf("Work is %v, want folder", work.Kind)
	}
	kids := cfg.Model.ChildrenOf(work.ID)
	if len(kids) != 4 {
		t.Fatalf("Work children = %d, want 4", len(kids))
	}
	if kids[0].URL != "https://go.dev/" || kids[0].Title != "Go & friends" {
		t.Errorf("first bookmark = %+v", kids[0])
	}
	if want := time.Unix(1700000100, 0).UTC(); !kids[0].DateAdded.Equal(want) {
		t.Errorf("add date = %v, want %v", kids[0].DateAdded, want)
	}
	if !kids[2].IsSeparator() {
		t.Errorf("third child = %+v, want separator", kids[2])
	}
	deep := kids[3]
	if !deep.IsFolder() || len(cfg.Model.ChildrenOf(deep.ID)) != 1 {
		t.Errorf("nested folder = %+v", deep)
	}
	findChild(t, cfg.Model, imported.ID, "News")

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original file still present")
	}
	if _, err := os.Stat(path + ".imported"); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
}

func TestImportFile_CachesInlineIcons(t *testing.T) {
	cfg := testConfig(t)
	path := writeFile(t, cfg.Dir, "bookmarks.html", firefoxExport)

	if err := ImportFile(context.Background(), cfg, path); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}

	ic, ok := cfg.Icons.Get(bookmarks.NormalizeURL("https://go.dev/"))
	if !ok {
		t.Fatal("icon not cached")
	}
	if ic.ContentType != "image/png" || len(ic.Data) != 3 {
		t.Errorf("icon = %+v", ic)
	}
	if cfg.Icons.Len() != 1 {
		t.Errorf("cache len = %d, want 1", cfg.Icons.Len())
	}
}

func TestImportFile_EmptyFileIsMarkedWithoutStashRoot(t *testing.T) {
	cfg := testConfig(t)
	path := writeFile(t, cfg.Dir, "empty.html", "<html><body>nothing here</body></html>")

	if err := ImportFile(context.Background(), cfg, path); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if _, ok := cfg.Model.StashRoot(); ok {
		t.Error("empty import created a stash root")
	}
	if _, err := os.Stat(path + ".imported"); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}
}

func TestSweep_SkipsProcessedAndForeignFiles(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.Dir, "fresh.html", firefoxExport)
	writeFile(t, cfg.Dir, "done.html.imported", firefoxExport)
	writeFile(t, cfg.Dir, "broken.html.failed", firefoxExport)
	writeFile(t, cfg.Dir, "notes.txt", "not a bookmark file")
	writeFile(t, cfg.Dir, ".hidden.html", firefoxExport)

	Sweep(context.Background(), cfg)

	root, ok := cfg.Model.StashRoot()
	if !ok {
		t.Fatal("no stash root after sweep")
	}
	kids := cfg.Model.ChildrenOf(root.ID)
	if len(kids) != 1 || kids[0].Title != "Imported fresh" {
		t.Errorf("stash root children = %+v, want only the fresh import", kids)
	}
}

func TestWatch_ImportsDroppedFile(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, cfg) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch: %v", err)
		}
	})

	// Give the watcher a moment to register before dropping the file.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, cfg.Dir, "dropped.html", firefoxExport)

	testutil.Eventually(t, 5*time.Second, func() bool {
		root, ok := cfg.Model.StashRoot()
		if !ok {
			return false
		}
		kids := cfg.Model.ChildrenOf(root.ID)
		return len(kids) == 1 && kids[0].Title == "Imported dropped"
	}, "dropped file never imported")
}

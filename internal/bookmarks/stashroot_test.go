package bookmarks

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/othala/internal/backend"
)

func TestStashRoot_UndefinedThenResolves(t *testing.T) {
	m := testModel(t, testStore(t), Config{})
	ctx := context.Background()

	if _, ok := m.StashRoot(); ok {
		t.Fatal("stash root resolved on an empty store")
	}

	created, err := m.CreateFolder(ctx, m.Root().ID, 0, DefaultStashRootTitle)
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	root, ok := m.StashRoot()
	if !ok || root.ID != created.ID {
		t.Errorf("StashRoot = %v/%v, want %s", root, ok, created.ID)
	}
	if m.StashRootInfo().Ambiguous {
		t.Error("single candidate flagged ambiguous")
	}
}

func TestStashRoot_RenameChangesCandidacy(t *testing.T) {
	m := testModel(t, testStore(t), Config{})
	ctx := context.Background()

	folder, err := m.CreateFolder(ctx, m.Root().ID, 0, "Just a folder")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if _, ok := m.StashRoot(); ok {
		t.Fatal("unrelated folder resolved as stash root")
	}

	if err := m.Rename(ctx, folder.ID, DefaultStashRootTitle); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if root, ok := m.StashRoot(); !ok || root.ID != folder.ID {
		t.Error("renamed folder did not become the stash root")
	}

	if err := m.Rename(ctx, folder.ID, "Retired"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, ok := m.StashRoot(); ok {
		t.Error("stash root survived losing its title")
	}
}

func TestStashRoot_TopmostWinsAndAmbiguityClears(t *testing.T) {
	m := testModel(t, testStore(t), Config{})
	ctx := context.Background()
	toolbar := childByTitle(t, m, m.Root().ID, "Bookmarks Toolbar")

	deep, err := m.CreateFolder(ctx, toolbar.ID, 0, DefaultStashRootTitle)
	if err != nil {
		t.Fatalf("CreateFolder deep: %v", err)
	}
	if root, _ := m.StashRoot(); root.ID != deep.ID {
		t.Fatal("single deep candidate not resolved")
	}

	shallow, err := m.CreateFolder(ctx, m.Root().ID, 0, DefaultStashRootTitle)
	if err != nil {
		t.Fatalf("CreateFolder shallow: %v", err)
	}
	st := m.StashRootInfo()
	if st.Root == nil || st.Root.ID != shallow.ID {
		t.Errorf("resolved = %v, want shallow candidate %s", st.Root, shallow.ID)
	}
	if !st.Ambiguous {
		t.Error("two candidates not flagged ambiguous")
	}

	if err := m.Remove(ctx, shallow.ID); err != nil {
		t.Fatalf("Remove shallow: %v", err)
	}
	st = m.StashRootInfo()
	if st.Root == nil || st.Root.ID != deep.ID {
		t.Error("designation did not fall back to the deep candidate")
	}
	if st.Ambiguous {
		t.Error("ambiguity flag not cleared")
	}
}

func TestStashRoot_TieBreakLowestID(t *testing.T) {
	m := testModel(t, testStore(t), Config{})
	ctx := context.Background()

	first, err := m.CreateFolder(ctx, m.Root().ID, 0, DefaultStashRootTitle)
	if err != nil {
		t.Fatalf("CreateFolder first: %v", err)
	}
	second, err := m.CreateFolder(ctx, m.Root().ID, 1, DefaultStashRootTitle)
	if err != nil {
		t.Fatalf("CreateFolder second: %v", err)
	}
	// ULIDs order by creation time, so the first create holds the lower id.
	if first.ID >= second.ID {
		t.Fatalf("id ordering precondition broken: %s >= %s", first.ID, second.ID)
	}
	root, _ := m.StashRoot()
	if root == nil || root.ID != first.ID {
		t.Errorf("tie resolved to %v, want %s", root, first.ID)
	}
}

func TestStashRoot_DepthChangesWithAncestorMove(t *testing.T) {
	m := testModel(t, testStore(t), Config{})
	ctx := context.Background()
	toolbar := childByTitle(t, m, m.Root().ID, "Bookmarks Toolbar")
	other := childByTitle(t, m, m.Root().ID, "Other Bookmarks")

	holder, err := m.CreateFolder(ctx, toolbar.ID, 0, "Holder")
	if err != nil {
		t.Fatalf("CreateFolder holder: %v", err)
	}
	inHolder, err := m.CreateFolder(ctx, holder.ID, 0, DefaultStashRootTitle)
	if err != nil {
		t.Fatalf("CreateFolder nested: %v", err)
	}
	atOther, err := m.CreateFolder(ctx, other.ID, 0, DefaultStashRootTitle)
	if err != nil {
		t.Fatalf("CreateFolder shallow: %v", err)
	}
	if root, _ := m.StashRoot(); root.ID != atOther.ID {
		t.Fatalf("precondition: shallower candidate should win")
	}

	// Moving the holder to the top level lifts the nested candidate above
	// the other one without any signal naming the candidate itself.
	if err := m.Move(ctx, holder.ID, m.Root().ID, 0); err != nil {
		t.Fatalf("Move holder: %v", err)
	}
	// Both candidates now sit at depth 2; the older (lower) id wins.
	wantID := inHolder.ID
	if atOther.ID < inHolder.ID {
		wantID = atOther.ID
	}
	if root, _ := m.StashRoot(); root == nil || root.ID != wantID {
		t.Errorf("after ancestor move, resolved = %v, want %s", root, wantID)
	}
}

func TestEnsureStashRoot_CreatesOnceUnderConcurrency(t *testing.T) {
	m := testModel(t, testStore(t), Config{})
	ctx := context.Background()

	const callers = 8
	ids := make([]NodeID, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			root, err := m.EnsureStashRoot(ctx)
			if err != nil {
				t.Errorf("EnsureStashRoot: %v", err)
				return
			}
			ids[i] = root.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got %s, caller 0 got %s", i, ids[i], ids[0])
		}
	}
	matching := 0
	for _, n := range m.Subtree(m.Root().ID) {
		if n.IsFolder() && n.Title == DefaultStashRootTitle {
			matching++
		}
	}
	if matching != 1 {
		t.Errorf("%d stash root folders exist, want exactly 1", matching)
	}
}

func TestEnsureStashRoot_ReusesExisting(t *testing.T) {
	m := testModel(t, testStore(t), Config{})
	ctx := context.Background()

	existing, err := m.CreateFolder(ctx, m.Root().ID, 0, DefaultStashRootTitle)
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	before := m.Len()

	root, err := m.EnsureStashRoot(ctx)
	if err != nil {
		t.Fatalf("EnsureStashRoot: %v", err)
	}
	if root.ID != existing.ID {
		t.Errorf("ensure returned %s, want existing %s", root.ID, existing.ID)
	}
	if m.Len() != before {
		t.Error("ensure created a folder despite one existing")
	}
}

// racingStore injects a competing stash-root create just before the model's
// own create commits, reproducing the cross-instance race deterministically.
type racingStore struct {
	*backend.SQLite
	title      string
	once       sync.Once
	competitor string
}

func (r *racingStore) Create(ctx context.Context, n backend.NewNode) (string, uint64, error) {
	if n.Kind == "folder" && n.Title == r.title {
		r.once.Do(func() {
			id, _, err := r.SQLite.Create(ctx, n)
			if err == nil {
				r.competitor = id
			}
		})
	}
	return r.SQLite.Create(ctx, n)
}

func TestEnsureStashRoot_LoserSelfDeletes(t *testing.T) {
	rs := &racingStore{SQLite: testStore(t), title: DefaultStashRootTitle}
	m := testModel(t, rs, Config{})
	ctx := context.Background()

	root, err := m.EnsureStashRoot(ctx)
	if err != nil {
		t.Fatalf("EnsureStashRoot: %v", err)
	}
	if rs.competitor == "" {
		t.Fatal("race was not injected")
	}
	// The competitor committed first, so it holds the lower id and wins the
	// same-depth tie. Our own folder must have been cleaned up.
	if string(root.ID) != rs.competitor {
		t.Errorf("ensure returned %s, want competitor %s", root.ID, rs.competitor)
	}
	matching := 0
	for _, n := range m.Subtree(m.Root().ID) {
		if n.IsFolder() && n.Title == DefaultStashRootTitle {
			matching++
		}
	}
	if matching != 1 {
		t.Errorf("%d stash root folders remain, want exactly 1", matching)
	}
	if st := m.StashRootInfo(); st.Ambiguous {
		t.Error("ambiguity flag still set after reconciliation")
	}
}

func TestStashTarget_ReusesRecentGroup(t *testing.T) {
	base := time.Now()
	now := base
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	m := testModel(t, testStore(t), Config{Now: clock})
	ctx := context.Background()

	first, err := m.StashTarget(ctx)
	if err != nil {
		t.Fatalf("StashTarget: %v", err)
	}
	if !strings.HasPrefix(first.Title, "Saved ") {
		t.Errorf("target title = %q, want generated name", first.Title)
	}

	second, err := m.StashTarget(ctx)
	if err != nil {
		t.Fatalf("StashTarget: %v", err)
	}
	if second.ID != first.ID {
		t.Error("fresh group not reused within the age cutoff")
	}

	mu.Lock()
	now = base.Add(DefaultStashTargetMaxAge + time.Hour)
	mu.Unlock()

	third, err := m.StashTarget(ctx)
	if err != nil {
		t.Fatalf("StashTarget: %v", err)
	}
	if third.ID == first.ID {
		t.Error("stale group reused past the age cutoff")
	}
}

func TestStash_LandsInTargetGroup(t *testing.T) {
	m := testModel(t, testStore(t), Config{})
	ctx := context.Background()

	n, err := m.Stash(ctx, "Read later", "https://read.example/article")
	if err != nil {
		t.Fatalf("Stash: %v", err)
	}
	root, ok := m.StashRoot()
	if !ok {
		t.Fatal("stash did not ensure a root")
	}
	if !m.IsInFolder(n.ID, root.ID) {
		t.Error("stashed bookmark not inside the stash root")
	}
	parent, _, _ := m.PositionOf(n.ID)
	group, _ := m.Node(parent)
	if !stashGroupPattern.MatchString(group.Title) {
		t.Errorf("stash landed in %q, want a generated group", group.Title)
	}
	if hits := m.InFolderByURL(root.ID, "https://read.example/article"); len(hits) != 1 {
		t.Errorf("InFolderByURL hits = %d, want 1", len(hits))
	}
}

func TestStashRoot_ObserverLifecycle(t *testing.T) {
	m := testModel(t, testStore(t), Config{})
	ctx := context.Background()

	var mu sync.Mutex
	var states []StashRootState
	cancel := m.OnStashRootChange(func(st StashRootState) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})
	defer cancel()

	first, err := m.CreateFolder(ctx, m.Root().ID, 0, DefaultStashRootTitle)
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	second, err := m.CreateFolder(ctx, m.Root().ID, 1, DefaultStashRootTitle)
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if err := m.Remove(ctx, second.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 3
	}, "observer did not see resolve/ambiguous/clear transitions")

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 3 {
		t.Fatalf("observer fired %d times, want 3", len(states))
	}
	if states[0].Root == nil || states[0].Root.ID != first.ID || states[0].Ambiguous {
		t.Errorf("state 0 = %+v, want first candidate, unambiguous", states[0])
	}
	if !states[1].Ambiguous {
		t.Error("state 1 should be ambiguous")
	}
	if states[2].Ambiguous || states[2].Root == nil || states[2].Root.ID != first.ID {
		t.Errorf("state 2 = %+v, want first candidate, unambiguous", states[2])
	}
}

package bookmarks

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

const (
	// DefaultStashRootTitle is the folder title that designates the stash
	// root when config does not override it.
	DefaultStashRootTitle = "Stashed Bookmarks"
	// DefaultStashTargetMaxAge is how old a generated stash group may be
	// and still collect new stashes.
	DefaultStashTargetMaxAge = 6 * time.Hour
)

const stashGroupFormat = "Saved 2006-01-02 15:04"

var stashGroupPattern = regexp.MustCompile(`^Saved \d{4}-\d{2}-\d{2} \d{2}:\d{2}$`)

// StashRootState is the output of the stash-root resolver: the designated
// folder (nil while no candidate exists) and whether the designation is
// ambiguous because several candidates carry the title.
type StashRootState struct {
	Root      *Node
	Ambiguous bool
}

// stashState tracks the folders whose title matches the configured stash
// root name. Membership is maintained from the signal stream; ranking is
// recomputed from the live tree every turn, because an ancestor move can
// change a candidate's depth without any signal naming the candidate.
type stashState struct {
	candidates map[NodeID]struct{}
	currentID  NodeID
	ambiguous  bool
}

func newStashState() stashState {
	return stashState{candidates: make(map[NodeID]struct{})}
}

// StashRoot returns the designated stash root, if one exists.
func (m *Model) StashRoot() (*Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stash.currentID == "" {
		return nil, false
	}
	return m.tree.Node(m.stash.currentID)
}

// StashRootInfo returns the designated root together with the ambiguity
// flag.
func (m *Model) StashRootInfo() StashRootState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := StashRootState{Ambiguous: m.stash.ambiguous}
	if m.stash.currentID != "" {
		st.Root, _ = m.tree.Node(m.stash.currentID)
	}
	return st
}

// OnStashRootChange registers an observer of the resolved stash root cell.
// It fires whenever the designated folder or the ambiguity flag changes,
// from the apply goroutine, and returns its teardown.
func (m *Model) OnStashRootChange(fn func(StashRootState)) func() {
	m.lmu.Lock()
	id := m.nextListener
	m.nextListener++
	m.stashListeners = append(m.stashListeners, stashListener{id: id, fn: fn})
	m.lmu.Unlock()
	return func() {
		m.lmu.Lock()
		defer m.lmu.Unlock()
		for i, l := range m.stashListeners {
			if l.id == id {
				m.stashListeners = append(m.stashListeners[:i], m.stashListeners[i+1:]...)
				return
			}
		}
	}
}

// EnsureStashRoot returns the designated stash root, creating the folder at
// the tree's top level when none exists. Concurrent callers in this process
// coalesce onto one create; races with other writers are reconciled after
// the echo by keeping the winning candidate and best-effort deleting the
// one this call created, so every caller gets the same surviving node.
func (m *Model) EnsureStashRoot(ctx context.Context) (*Node, error) {
	v, err, _ := m.ensure.Do("stash-root", func() (any, error) {
		return m.ensureStashRoot(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Node), nil
}

func (m *Model) ensureStashRoot(ctx context.Context) (*Node, error) {
	if root, ok := m.StashRoot(); ok {
		return root, nil
	}
	top := m.Root()
	created, err := m.CreateFolder(ctx, top.ID, len(top.Children), m.stashTitle)
	if err != nil {
		return nil, fmt.Errorf("bookmarks: ensure stash root: %w", err)
	}
	// The echo has applied, so the resolver has seen our folder. It still
	// may have lost the designation to a candidate someone else created.
	winner, ok := m.StashRoot()
	if !ok {
		return nil, fmt.Errorf("bookmarks: stash root did not resolve after create")
	}
	if winner.ID != created.ID {
		m.removeLosingStashRoot(ctx, created.ID)
	}
	return winner, nil
}

// removeLosingStashRoot drops the candidate this instance created after
// another one won. Only empty folders are touched: anything stashed into
// the loser in the meantime must survive.
func (m *Model) removeLosingStashRoot(ctx context.Context, id NodeID) {
	n, ok := m.Node(id)
	if !ok || len(n.Children) > 0 {
		return
	}
	if err := m.Remove(ctx, id); err != nil {
		m.log.Debug("could not remove duplicate stash root", "id", string(id), "error", err)
	}
}

// StashTarget returns the folder new stashes land in: the most recently
// added top-child of the stash root carrying a generated group name, as
// long as it is younger than the configured cutoff. Otherwise a fresh group
// folder is created at the top of the stash root.
func (m *Model) StashTarget(ctx context.Context) (*Node, error) {
	root, err := m.EnsureStashRoot(ctx)
	if err != nil {
		return nil, err
	}
	var newest *Node
	for _, c := range m.ChildrenOf(root.ID) {
		if !c.IsFolder() || !stashGroupPattern.MatchString(c.Title) {
			continue
		}
		if newest == nil || c.DateAdded.After(newest.DateAdded) {
			newest = c
		}
	}
	now := m.now()
	if newest != nil && now.Sub(newest.DateAdded) <= m.stashMaxAge {
		return newest, nil
	}
	return m.CreateFolder(ctx, root.ID, 0, now.Format(stashGroupFormat))
}

// Stash files a bookmark into the current stash target group.
func (m *Model) Stash(ctx context.Context, title, url string) (*Node, error) {
	target, err := m.StashTarget(ctx)
	if err != nil {
		return nil, err
	}
	return m.CreateBookmark(ctx, target.ID, len(target.Children), title, url)
}

// updateStashLocked folds one turn's signals into the candidate set and
// re-resolves. Callers hold the write lock; the returned state, when
// non-nil, must be delivered to observers after the lock is released.
func (m *Model) updateStashLocked(sigs []Signal) *StashRootState {
	if len(sigs) == 0 {
		return nil
	}
	for _, sig := range sigs {
		switch sig.Op {
		case SignalInsert, SignalUpdate:
			if sig.Node.IsFolder() && sig.Node.Title == m.stashTitle {
				m.stash.candidates[sig.ID] = struct{}{}
			} else {
				delete(m.stash.candidates, sig.ID)
			}
		case SignalDelete:
			delete(m.stash.candidates, sig.ID)
		}
	}
	return m.resolveStashLocked()
}

// rebuildStashLocked rescans the whole tree, used after snapshot loads.
func (m *Model) rebuildStashLocked() *StashRootState {
	m.stash.candidates = make(map[NodeID]struct{})
	for id, n := range m.tree.nodes {
		if n.IsFolder() && n.Title == m.stashTitle {
			m.stash.candidates[id] = struct{}{}
		}
	}
	return m.resolveStashLocked()
}

// resolveStashLocked picks the topmost candidate (shortest root path), ties
// broken by lowest id, and maintains the ambiguity flag. Returns the new
// state when the designation or the flag changed, nil otherwise.
func (m *Model) resolveStashLocked() *StashRootState {
	var bestID NodeID
	bestDepth := -1
	for id := range m.stash.candidates {
		d, ok := m.tree.Depth(id)
		if !ok {
			delete(m.stash.candidates, id)
			continue
		}
		if bestDepth == -1 || d < bestDepth || (d == bestDepth && id < bestID) {
			bestID, bestDepth = id, d
		}
	}
	ambiguous := len(m.stash.candidates) > 1
	if bestID == m.stash.currentID && ambiguous == m.stash.ambiguous {
		return nil
	}
	if ambiguous && !m.stash.ambiguous {
		m.log.Warn("multiple stash root candidates",
			"title", m.stashTitle, "count", len(m.stash.candidates), "chosen", string(bestID))
	}
	m.stash.currentID = bestID
	m.stash.ambiguous = ambiguous

	st := StashRootState{Ambiguous: ambiguous}
	if bestID != "" {
		st.Root, _ = m.tree.Node(bestID)
	}
	return &st
}

func (m *Model) notifyStash(st StashRootState) {
	m.lmu.Lock()
	fns := make([]func(StashRootState), len(m.stashListeners))
	for i, l := range m.stashListeners {
		fns[i] = l.fn
	}
	m.lmu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

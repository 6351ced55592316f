// Package bookmarks maintains a live in-memory mirror of the authoritative
// bookmark store: an indexed tree fed by the store's change feed, a mutator
// that issues store commands and blocks until their echo has been applied,
// a resolver for the designated stash root, and read-only queries over the
// current tree. One goroutine applies events, so no two applies interleave
// and readers never observe a half-applied change.
package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/backend"
)

// Recorder receives subtrees removed through the model's mutator so a
// deleted-items log can be kept. Recording is best-effort; failures are
// logged and never block the removal.
type Recorder interface {
	Record(ctx context.Context, nodes []*Node) error
}

// Config carries the model's construction-time settings.
type Config struct {
	// Logger receives apply-path and reconciliation logs. Defaults to
	// slog.Default().
	Logger *slog.Logger
	// StashRootTitle is the folder title the stash-root resolver looks
	// for. Defaults to DefaultStashRootTitle.
	StashRootTitle string
	// StashTargetMaxAge bounds how old a generated stash group may be and
	// still receive new stashes. Defaults to DefaultStashTargetMaxAge.
	StashTargetMaxAge time.Duration
	// Recorder, when set, receives removed subtrees.
	Recorder Recorder
	// Now is the clock used for stash group naming and age checks.
	// Defaults to time.Now.
	Now func() time.Time
}

type signalListener struct {
	id int
	fn func(Signal)
}

type stashListener struct {
	id int
	fn func(StashRootState)
}

// Model is the live mirror. All exported methods are safe for concurrent
// use.
type Model struct {
	store backend.Store
	log   *slog.Logger

	stashTitle  string
	stashMaxAge time.Duration
	recorder    Recorder
	now         func() time.Time

	mu      sync.RWMutex
	tree    *Tree
	seq     uint64
	waiters map[uint64][]chan struct{}
	stash   stashState
	closed  bool

	lmu            sync.Mutex
	listeners      []signalListener
	stashListeners []stashListener
	nextListener   int

	ensure      singleflight.Group
	unsubscribe func()
	done        chan struct{}
	closeOnce   sync.Once
}

// New subscribes to the store, loads a snapshot, and starts the apply loop.
// Events already covered by the snapshot's seq are skipped when they drain
// in, so the subscribe-then-snapshot order leaves no gap.
func New(ctx context.Context, store backend.Store, cfg Config) (*Model, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	title := cfg.StashRootTitle
	if title == "" {
		title = DefaultStashRootTitle
	}
	maxAge := cfg.StashTargetMaxAge
	if maxAge <= 0 {
		maxAge = DefaultStashTargetMaxAge
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	events, unsubscribe, err := store.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("bookmarks: subscribe: %w", err)
	}
	m := &Model{
		store:       store,
		log:         log,
		stashTitle:  title,
		stashMaxAge: maxAge,
		recorder:    cfg.Recorder,
		now:         now,
		tree:        NewTree(),
		waiters:     make(map[uint64][]chan struct{}),
		stash:       newStashState(),
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
	}
	if err := m.Reload(ctx); err != nil {
		unsubscribe()
		return nil, err
	}
	go m.run(events)
	return m, nil
}

// Close cancels the subscription and waits for the apply loop to drain.
// Pending echo waiters fail with ErrClosed.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		m.unsubscribe()
		<-m.done
	})
}

// Seq returns the watermark: the seq of the last change reflected in the
// mirror.
func (m *Model) Seq() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seq
}

// OnSignal registers a change feed subscriber and returns its teardown.
// Callbacks run on the apply goroutine in registration order, one signal at
// a time, already outside the tree lock; they may query the model but must
// not block for long.
func (m *Model) OnSignal(fn func(Signal)) func() {
	m.lmu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners = append(m.listeners, signalListener{id: id, fn: fn})
	m.lmu.Unlock()
	return func() {
		m.lmu.Lock()
		defer m.lmu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Reload replaces the mirror with a fresh snapshot and emits a Reset signal.
// A snapshot older than the watermark is discarded: the missing changes
// already reached us as events and would be lost by installing it.
func (m *Model) Reload(ctx context.Context) error {
	snap, err := m.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("bookmarks: reload: snapshot: %w", err)
	}
	nodes := make([]*Node, 0, len(snap.Nodes))
	for _, rec := range snap.Nodes {
		n, err := nodeFromRecord(rec)
		if err != nil {
			return fmt.Errorf("bookmarks: reload: %w", err)
		}
		nodes = append(nodes, n)
	}
	tree := NewTree()
	if err := tree.Load(nodes); err != nil {
		return fmt.Errorf("bookmarks: reload: %w", err)
	}

	m.mu.Lock()
	if snap.Seq < m.seq {
		applied := m.seq
		m.mu.Unlock()
		m.log.Debug("discarding stale snapshot", "snapshot_seq", snap.Seq, "applied_seq", applied)
		return nil
	}
	m.tree = tree
	m.seq = snap.Seq
	m.resolveWaitersLocked()
	stashChange := m.rebuildStashLocked()
	m.mu.Unlock()

	m.notify([]Signal{{Op: SignalReset}})
	if stashChange != nil {
		m.notifyStash(*stashChange)
	}
	return nil
}

func (m *Model) run(events <-chan backend.Event) {
	for ev := range events {
		m.apply(ev)
	}
	m.mu.Lock()
	m.closed = true
	for _, chans := range m.waiters {
		for _, ch := range chans {
			close(ch)
		}
	}
	m.waiters = make(map[uint64][]chan struct{})
	m.mu.Unlock()
	close(m.done)
}

// apply folds one store event into the mirror. Events at or below the
// watermark were already covered by a snapshot and are skipped. Events that
// no longer apply (node gone after a reload) are dropped; either way the
// watermark advances, since the store has committed the change.
func (m *Model) apply(ev backend.Event) {
	m.mu.Lock()
	if ev.Seq <= m.seq {
		m.mu.Unlock()
		return
	}
	sigs, err := m.applyLocked(ev)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			m.log.Debug("dropping event for unknown node", "seq", ev.Seq, "kind", ev.Kind.String(), "id", ev.ID)
		} else {
			m.log.Warn("event did not apply cleanly", "seq", ev.Seq, "kind", ev.Kind.String(), "id", ev.ID, "error", err)
		}
		sigs = nil
	}
	m.seq = ev.Seq
	m.resolveWaitersLocked()
	stashChange := m.updateStashLocked(sigs)
	m.mu.Unlock()

	m.notify(sigs)
	if stashChange != nil {
		m.notifyStash(*stashChange)
	}
}

func (m *Model) applyLocked(ev backend.Event) ([]Signal, error) {
	switch ev.Kind {
	case backend.EventCreated:
		if ev.Node == nil {
			return nil, fmt.Errorf("bookmarks: created event %d without node payload", ev.Seq)
		}
		n, err := nodeFromRecord(*ev.Node)
		if err != nil {
			return nil, err
		}
		return m.tree.Insert(n)
	case backend.EventChanged:
		return m.tree.Update(NodeID(ev.ID), ev.Title, ev.URL)
	case backend.EventMoved:
		return m.tree.Move(NodeID(ev.ID), NodeID(ev.ParentID), ev.Index)
	case backend.EventRemoved:
		return m.tree.Remove(NodeID(ev.ID))
	case backend.EventRemovedTree:
		return m.tree.RemoveTree(NodeID(ev.ID))
	default:
		return nil, fmt.Errorf("bookmarks: unknown event kind %d", int(ev.Kind))
	}
}

// waitApplied blocks until the mirror has applied the change with the given
// seq. Cancellation abandons the wait only; the echo still applies to the
// shared tree when it arrives.
func (m *Model) waitApplied(ctx context.Context, seq uint64) error {
	m.mu.Lock()
	if m.seq >= seq {
		m.mu.Unlock()
		return nil
	}
	if m.closed {
		m.mu.Unlock()
		return apperr.ErrClosed
	}
	ch := make(chan struct{})
	m.waiters[seq] = append(m.waiters[seq], ch)
	m.mu.Unlock()

	select {
	case <-ch:
		m.mu.RLock()
		applied := m.seq >= seq
		m.mu.RUnlock()
		if applied {
			return nil
		}
		return apperr.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveWaitersLocked releases every waiter whose seq the watermark has
// reached. Callers hold the write lock.
func (m *Model) resolveWaitersLocked() {
	for seq, chans := range m.waiters {
		if seq <= m.seq {
			for _, ch := range chans {
				close(ch)
			}
			delete(m.waiters, seq)
		}
	}
}

func (m *Model) notify(sigs []Signal) {
	if len(sigs) == 0 {
		return
	}
	m.lmu.Lock()
	fns := make([]func(Signal), len(m.listeners))
	for i, l := range m.listeners {
		fns[i] = l.fn
	}
	m.lmu.Unlock()
	for _, sig := range sigs {
		for _, fn := range fns {
			fn(sig)
		}
	}
}

func nodeFromRecord(rec backend.NodeRecord) (*Node, error) {
	kind, err := ParseKind(rec.Kind)
	if err != nil {
		return nil, err
	}
	return &Node{
		ID:        NodeID(rec.ID),
		ParentID:  NodeID(rec.ParentID),
		Index:     rec.Index,
		Title:     rec.Title,
		DateAdded: rec.DateAdded,
		Kind:      kind,
		URL:       rec.URL,
	}, nil
}

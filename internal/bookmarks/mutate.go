package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/backend"
)

// The mutator never touches the tree directly: every operation issues a
// store command and blocks until the echo has been applied to the mirror,
// so callers read their own writes. Multiple operations may be in flight at
// once; the store serializes their effects in commit order.

// CreateBookmark creates a bookmark and returns the mirrored node.
func (m *Model) CreateBookmark(ctx context.Context, parentID NodeID, index int, title, url string) (*Node, error) {
	return m.create(ctx, backend.NewNode{
		ParentID: string(parentID), Index: index,
		Kind: KindBookmark.String(), Title: title, URL: url,
	})
}

// CreateBookmarkAt is CreateBookmark with an explicit creation time, used
// when importing bookmarks that carry their original ADD_DATE.
func (m *Model) CreateBookmarkAt(ctx context.Context, parentID NodeID, index int, title, url string, added time.Time) (*Node, error) {
	return m.create(ctx, backend.NewNode{
		ParentID: string(parentID), Index: index,
		Kind: KindBookmark.String(), Title: title, URL: url,
		DateAdded: added,
	})
}

// CreateFolder creates a folder and returns the mirrored node.
func (m *Model) CreateFolder(ctx context.Context, parentID NodeID, index int, title string) (*Node, error) {
	return m.create(ctx, backend.NewNode{
		ParentID: string(parentID), Index: index,
		Kind: KindFolder.String(), Title: title,
	})
}

// CreateSeparator creates a separator and returns the mirrored node.
func (m *Model) CreateSeparator(ctx context.Context, parentID NodeID, index int) (*Node, error) {
	return m.create(ctx, backend.NewNode{
		ParentID: string(parentID), Index: index,
		Kind: KindSeparator.String(),
	})
}

func (m *Model) create(ctx context.Context, n backend.NewNode) (*Node, error) {
	var id string
	seq, err := m.attempt(ctx, "create", func() (uint64, error) {
		var (
			s   uint64
			err error
		)
		id, s, err = m.store.Create(ctx, n)
		return s, err
	})
	if err != nil {
		return nil, err
	}
	if err := m.waitApplied(ctx, seq); err != nil {
		return nil, err
	}
	created, ok := m.Node(NodeID(id))
	if !ok {
		// Gone again before we could hand it out.
		return nil, fmt.Errorf("bookmarks: created node %s: %w", id, apperr.ErrNotFound)
	}
	return created, nil
}

// Rename sets a node's title.
func (m *Model) Rename(ctx context.Context, id NodeID, title string) error {
	seq, err := m.attempt(ctx, "rename", func() (uint64, error) {
		return m.store.SetTitle(ctx, string(id), title)
	})
	if err != nil {
		return err
	}
	return m.waitApplied(ctx, seq)
}

// SetURL repoints a bookmark.
func (m *Model) SetURL(ctx context.Context, id NodeID, url string) error {
	seq, err := m.attempt(ctx, "set url", func() (uint64, error) {
		return m.store.SetURL(ctx, string(id), url)
	})
	if err != nil {
		return err
	}
	return m.waitApplied(ctx, seq)
}

// Move repositions a node. The index is interpreted against the target
// sibling list with the node taken out, so moving forward within the same
// folder lands exactly at newIndex.
func (m *Model) Move(ctx context.Context, id, newParentID NodeID, newIndex int) error {
	seq, err := m.attempt(ctx, "move", func() (uint64, error) {
		return m.store.Move(ctx, string(id), string(newParentID), newIndex)
	})
	if err != nil {
		return err
	}
	return m.waitApplied(ctx, seq)
}

// Remove deletes a leaf or empty folder and hands it to the deleted-items
// recorder.
func (m *Model) Remove(ctx context.Context, id NodeID) error {
	doomed, ok := m.Node(id)
	if !ok {
		return fmt.Errorf("bookmarks: remove %s: %w", id, apperr.ErrNotFound)
	}
	seq, err := m.attempt(ctx, "remove", func() (uint64, error) {
		return m.store.Remove(ctx, string(id))
	})
	if err != nil {
		return err
	}
	if err := m.waitApplied(ctx, seq); err != nil {
		return err
	}
	m.record(ctx, []*Node{doomed})
	return nil
}

// RemoveTree deletes a node with all its descendants and hands the subtree
// to the deleted-items recorder.
func (m *Model) RemoveTree(ctx context.Context, id NodeID) error {
	// Capture before issuing; the subtree is gone from the mirror once the
	// echo lands.
	doomed := m.Subtree(id)
	if doomed == nil {
		return fmt.Errorf("bookmarks: remove tree %s: %w", id, apperr.ErrNotFound)
	}
	seq, err := m.attempt(ctx, "remove tree", func() (uint64, error) {
		return m.store.RemoveTree(ctx, string(id))
	})
	if err != nil {
		return err
	}
	if err := m.waitApplied(ctx, seq); err != nil {
		return err
	}
	m.record(ctx, doomed)
	return nil
}

// attempt runs one store command. Sentinel failures (not found, cycle,
// non-empty folder) are the store speaking its contract and pass through
// untouched. Anything else means mirror and store may have diverged, so the
// mirror reloads from a fresh snapshot before the error is surfaced.
func (m *Model) attempt(ctx context.Context, op string, fn func() (uint64, error)) (uint64, error) {
	seq, err := fn()
	if err == nil {
		return seq, nil
	}
	if expectedCommandError(err) {
		return 0, err
	}
	m.log.Error("store command failed, reloading mirror", "op", op, "error", err)
	if rerr := m.Reload(context.WithoutCancel(ctx)); rerr != nil {
		m.log.Error("mirror reload failed", "op", op, "error", rerr)
	}
	return 0, err
}

func expectedCommandError(err error) bool {
	return errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrCycle) ||
		errors.Is(err, apperr.ErrFolderNotEmpty) ||
		errors.Is(err, apperr.ErrAlreadyExists) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (m *Model) record(ctx context.Context, nodes []*Node) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(context.WithoutCancel(ctx), nodes); err != nil {
		m.log.Warn("recording deleted nodes failed", "count", len(nodes), "error", err)
	}
}

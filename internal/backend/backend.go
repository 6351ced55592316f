// Package backend defines the authoritative bookmark store. Models keep an
// in-memory mirror of it: they load a snapshot, subscribe to the change
// feed, and issue commands whose committed changes come back as events. The
// sequence number threads the two together; every committed change gets the
// next seq, snapshots record the seq they reflect, and commands return the
// seq of the change they caused so callers can wait for the echo.
package backend

import (
	"context"
	"time"
)

// NodeRecord is the stored form of one bookmark tree node.
type NodeRecord struct {
	ID        string
	ParentID  string // empty for the root
	Index     int
	Kind      string // bookmark, folder or separator
	Title     string
	URL       string
	DateAdded time.Time
}

// Snapshot is a point-in-time copy of the whole tree.
type Snapshot struct {
	Seq   uint64
	Nodes []NodeRecord
}

// EventKind discriminates change feed events.
type EventKind int

const (
	// EventCreated announces a new node; Node carries the full record.
	EventCreated EventKind = iota + 1
	// EventChanged announces a title and/or URL change; the non-nil
	// pointer fields carry the new values.
	EventChanged
	// EventMoved announces a reposition; ParentID/Index are the new
	// position, OldParentID/OldIndex the previous one.
	EventMoved
	// EventRemoved announces the deletion of a single node; ParentID and
	// Index are the position it was removed from.
	EventRemoved
	// EventRemovedTree announces the deletion of a whole subtree in one
	// step; ParentID and Index are the root's former position and
	// subscribers drop the descendants themselves.
	EventRemovedTree
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventChanged:
		return "changed"
	case EventMoved:
		return "moved"
	case EventRemoved:
		return "removed"
	case EventRemovedTree:
		return "removed-tree"
	default:
		return "unknown"
	}
}

// Event is one entry of the change feed. Which fields are set depends on
// Kind; see the kind constants.
type Event struct {
	Seq  uint64
	Kind EventKind
	ID   string

	Node *NodeRecord

	Title *string
	URL   *string

	ParentID    string
	Index       int
	OldParentID string
	OldIndex    int
}

// NewNode describes a node to create. A zero DateAdded means "now"; imports
// pass the original timestamp to preserve history.
type NewNode struct {
	ParentID  string
	Index     int
	Kind      string
	Title     string
	URL       string
	DateAdded time.Time
}

// Store is the authoritative bookmark store.
//
// Command methods return the seq of the change they committed. Event
// delivery per subscriber is a FIFO ordered by seq with no gaps and no
// drops, so a subscriber that has seen seq N has seen every change up to N.
type Store interface {
	// Snapshot returns a consistent copy of the whole tree.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Subscribe registers a change feed consumer. The returned cancel
	// function releases the subscription and closes the channel; the
	// channel is also closed when the store shuts down.
	Subscribe() (<-chan Event, func(), error)

	// Create inserts a new node and returns its assigned id.
	Create(ctx context.Context, n NewNode) (id string, seq uint64, err error)

	// SetTitle renames a node.
	SetTitle(ctx context.Context, id, title string) (seq uint64, err error)

	// SetURL repoints a bookmark.
	SetURL(ctx context.Context, id, url string) (seq uint64, err error)

	// Move repositions a node under newParentID at newIndex, interpreted
	// against the sibling list after the node is taken out.
	Move(ctx context.Context, id, newParentID string, newIndex int) (seq uint64, err error)

	// Remove deletes a leaf or empty folder.
	Remove(ctx context.Context, id string) (seq uint64, err error)

	// RemoveTree deletes a node and all its descendants.
	RemoveTree(ctx context.Context, id string) (seq uint64, err error)

	// Search returns nodes whose title or URL matches the query, best
	// matches first.
	Search(ctx context.Context, query string, limit int) ([]NodeRecord, error)

	// Close shuts the store down and closes all subscriptions.
	Close() error
}

package bookmarks

import (
	"context"
	"fmt"
)

// Read-only view over the mirror. Every method returns copies computed
// under the read lock, so results stay stable while the tree moves on.

// Node returns the mirrored node, or false when the id is unknown.
func (m *Model) Node(id NodeID) (*Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Node(id)
}

// Root returns the tree root.
func (m *Model) Root() *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Root()
}

// Len returns the number of mirrored nodes.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// ChildrenOf returns a folder's direct children in index order.
func (m *Model) ChildrenOf(id NodeID) []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.ChildrenOf(id)
}

// PathTo returns the nodes from the root down to id, inclusive.
func (m *Model) PathTo(id NodeID) []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.PathTo(id)
}

// IsInFolder reports whether id sits strictly inside folderID's subtree.
func (m *Model) IsInFolder(id, folderID NodeID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.IsInFolder(id, folderID)
}

// PositionOf returns the parent id and sibling index of a node.
func (m *Model) PositionOf(id NodeID) (NodeID, int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.PositionOf(id)
}

// NodesByURL returns every bookmark matching the URL after normalization.
func (m *Model) NodesByURL(url string) []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.NodesByURL(url)
}

// InFolderByURL returns the URL matches inside folderID's subtree.
func (m *Model) InFolderByURL(folderID NodeID, url string) []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.InFolderByURL(folderID, url)
}

// HasURL reports whether any mirrored bookmark carries the URL.
func (m *Model) HasURL(url string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.HasURL(url)
}

// Subtree returns id and all its descendants in pre-order.
func (m *Model) Subtree(id NodeID) []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Subtree(id)
}

// Search asks the store's search index and maps hits back onto the mirror.
// Hits the mirror has not caught up with yet are returned as bare nodes
// without child lists or stats.
func (m *Model) Search(ctx context.Context, query string, limit int) ([]*Node, error) {
	recs, err := m.store.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("bookmarks: search: %w", err)
	}
	out := make([]*Node, 0, len(recs))
	for _, rec := range recs {
		if n, ok := m.Node(NodeID(rec.ID)); ok {
			out = append(out, n)
			continue
		}
		n, err := nodeFromRecord(rec)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

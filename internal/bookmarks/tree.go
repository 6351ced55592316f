package bookmarks

import (
	"fmt"
	"sort"

	"github.com/starford/othala/internal/apperr"
)

// Tree is the indexed in-memory mirror of the bookmark store. It keeps three
// views that are updated together inside each operation: the by-id map, the
// ordered child lists hanging off folder nodes, and the by-URL map keyed by
// normalized URL. Operations either fully apply or leave the tree untouched,
// and return the signals describing the change in replay order.
//
// Tree is not safe for concurrent use; Model serializes access to it.
type Tree struct {
	nodes  map[NodeID]*Node
	byURL  map[string]map[NodeID]struct{}
	rootID NodeID
}

// NewTree returns an empty tree. Load must run before any other operation.
func NewTree() *Tree {
	return &Tree{
		nodes: make(map[NodeID]*Node),
		byURL: make(map[string]map[NodeID]struct{}),
	}
}

// Load replaces the entire tree with the given nodes, which must describe a
// single rooted tree: exactly one folder without a parent, every other node
// referencing an existing folder. Child order follows the stored indexes and
// is renumbered to be contiguous. Folder stats are recomputed from scratch.
func (t *Tree) Load(nodes []*Node) error {
	byID := make(map[NodeID]*Node, len(nodes))
	var root *Node
	for _, n := range nodes {
		if _, ok := byID[n.ID]; ok {
			return fmt.Errorf("bookmarks: load: duplicate node id %s", n.ID)
		}
		n.Children = nil
		n.Stats = FolderStats{}
		byID[n.ID] = n
		if n.ParentID == "" {
			if !n.IsFolder() {
				return fmt.Errorf("bookmarks: load: root %s is not a folder", n.ID)
			}
			if root != nil {
				return fmt.Errorf("bookmarks: load: multiple roots (%s, %s)", root.ID, n.ID)
			}
			root = n
		}
	}
	if root == nil {
		return fmt.Errorf("bookmarks: load: no root node")
	}

	grouped := make(map[NodeID][]*Node)
	for _, n := range byID {
		if n == root {
			continue
		}
		parent, ok := byID[n.ParentID]
		if !ok {
			return fmt.Errorf("bookmarks: load: node %s references missing parent %s", n.ID, n.ParentID)
		}
		if !parent.IsFolder() {
			return fmt.Errorf("bookmarks: load: node %s has non-folder parent %s", n.ID, n.ParentID)
		}
		grouped[n.ParentID] = append(grouped[n.ParentID], n)
	}

	t.nodes = byID
	t.byURL = make(map[string]map[NodeID]struct{})
	t.rootID = root.ID

	for parentID, children := range grouped {
		sort.SliceStable(children, func(i, j int) bool {
			if children[i].Index != children[j].Index {
				return children[i].Index < children[j].Index
			}
			return children[i].ID < children[j].ID
		})
		parent := byID[parentID]
		parent.Children = make([]NodeID, len(children))
		for i, c := range children {
			c.Index = i
			parent.Children[i] = c.ID
		}
	}

	for _, n := range byID {
		if n.IsBookmark() {
			t.addURL(n)
		}
	}
	t.recomputeStatsDeep(root)
	return nil
}

// Len returns the number of nodes currently mirrored.
func (t *Tree) Len() int { return len(t.nodes) }

// RootID returns the id of the tree root.
func (t *Tree) RootID() NodeID { return t.rootID }

// Insert adds the node under n.ParentID at n.Index (clamped to the child
// list). When the id is already present the payload is folded into the
// existing entry and the node is repositioned if needed, so a re-announced
// create never grows a second sibling.
//
// Signals: insert for the node, then one update per ancestor, child first.
func (t *Tree) Insert(n *Node) ([]Signal, error) {
	if existing, ok := t.nodes[n.ID]; ok {
		if _, err := t.folder(n.ParentID); err != nil {
			return nil, fmt.Errorf("bookmarks: insert %s: %w", n.ID, err)
		}
		existing.Title = n.Title
		existing.DateAdded = n.DateAdded
		if existing.IsBookmark() {
			t.setURL(existing, n.URL)
		}
		if existing.ParentID == n.ParentID && existing.Index == n.Index {
			sigs := []Signal{updateSignal(existing)}
			return t.appendChainUpdates(sigs, existing.ParentID), nil
		}
		return t.Move(existing.ID, n.ParentID, n.Index)
	}

	parent, err := t.folder(n.ParentID)
	if err != nil {
		return nil, fmt.Errorf("bookmarks: insert %s: %w", n.ID, err)
	}
	if n.IsFolder() && n.Children == nil {
		n.Children = []NodeID{}
	}
	t.attachChild(parent, n, n.Index)
	t.nodes[n.ID] = n
	if n.IsBookmark() {
		t.addURL(n)
	}

	sigs := []Signal{insertSignal(n)}
	return t.appendChainUpdates(sigs, n.ParentID), nil
}

// Update patches the node's title and, for bookmarks, its URL. Nil fields
// are left alone. URL patches on non-bookmark nodes are ignored.
//
// Signals: update for the node, then one update per ancestor, child first.
func (t *Tree) Update(id NodeID, title, url *string) ([]Signal, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("bookmarks: update %s: %w", id, apperr.ErrNotFound)
	}
	if title != nil {
		n.Title = *title
	}
	if url != nil && n.IsBookmark() {
		t.setURL(n, *url)
	}
	sigs := []Signal{updateSignal(n)}
	return t.appendChainUpdates(sigs, n.ParentID), nil
}

// Move detaches the node from its current parent and re-inserts it under
// newParentID at newIndex. The index is interpreted against the child list
// after the detach, so moving a node forward within the same folder lands it
// exactly at newIndex. Moving a folder under itself or any of its
// descendants fails with ErrCycle and changes nothing.
//
// Signals: update for the moved node; updates for old-parent siblings whose
// indexes shifted, ascending, then likewise for the new parent's; ancestor
// updates for the old chain, then the new chain when it differs.
func (t *Tree) Move(id NodeID, newParentID NodeID, newIndex int) ([]Signal, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("bookmarks: move %s: %w", id, apperr.ErrNotFound)
	}
	if id == t.rootID {
		return nil, fmt.Errorf("bookmarks: move %s: cannot move the root folder", id)
	}
	newParent, err := t.folder(newParentID)
	if err != nil {
		return nil, fmt.Errorf("bookmarks: move %s: %w", id, err)
	}
	if t.isOrDescendsFrom(newParentID, id) {
		return nil, fmt.Errorf("bookmarks: move %s under %s: %w", id, newParentID, apperr.ErrCycle)
	}
	oldParent := t.nodes[n.ParentID]
	oldParentID := n.ParentID

	before := make(map[NodeID]int, len(oldParent.Children)+len(newParent.Children))
	for _, cid := range oldParent.Children {
		before[cid] = t.nodes[cid].Index
	}
	for _, cid := range newParent.Children {
		before[cid] = t.nodes[cid].Index
	}

	t.detachChild(oldParent, n)
	t.attachChild(newParent, n, newIndex)

	sigs := []Signal{updateSignal(n)}
	appendDisplaced := func(parent *Node) {
		// Child lists are in index order, so this emits ascending.
		for _, cid := range parent.Children {
			if cid == id {
				continue
			}
			c := t.nodes[cid]
			if prev, had := before[cid]; had && c.Index != prev {
				sigs = append(sigs, updateSignal(c))
			}
		}
	}
	appendDisplaced(oldParent)
	if newParent != oldParent {
		appendDisplaced(newParent)
	}
	sigs = t.appendChainUpdates(sigs, oldParentID)
	if newParentID != oldParentID {
		sigs = t.appendChainUpdates(sigs, newParentID)
	}
	return sigs, nil
}

// Remove deletes a leaf node or an empty folder. Folders that still have
// children fail with ErrFolderNotEmpty; use RemoveTree for those.
//
// Signals: delete for the node, then one update per ancestor, child first.
func (t *Tree) Remove(id NodeID) ([]Signal, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("bookmarks: remove %s: %w", id, apperr.ErrNotFound)
	}
	if id == t.rootID {
		return nil, fmt.Errorf("bookmarks: remove root folder: %w", apperr.ErrFolderNotEmpty)
	}
	if n.IsFolder() && len(n.Children) > 0 {
		return nil, fmt.Errorf("bookmarks: remove %s: %w", id, apperr.ErrFolderNotEmpty)
	}
	parentID := n.ParentID
	t.detachChild(t.nodes[parentID], n)
	t.forget(n)

	sigs := []Signal{deleteSignal(id)}
	return t.appendChainUpdates(sigs, parentID), nil
}

// RemoveTree deletes the node and every descendant. On a leaf it behaves
// like Remove.
//
// Signals: one delete per node in post-order, so every node is announced
// before its ancestor and the target itself comes last, then one update per
// remaining ancestor, child first.
func (t *Tree) RemoveTree(id NodeID) ([]Signal, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("bookmarks: remove tree %s: %w", id, apperr.ErrNotFound)
	}
	if id == t.rootID {
		return nil, fmt.Errorf("bookmarks: remove root folder: %w", apperr.ErrFolderNotEmpty)
	}
	parentID := n.ParentID
	t.detachChild(t.nodes[parentID], n)

	var sigs []Signal
	var drop func(*Node)
	drop = func(cur *Node) {
		for _, cid := range cur.Children {
			drop(t.nodes[cid])
		}
		t.forget(cur)
		sigs = append(sigs, deleteSignal(cur.ID))
	}
	drop(n)

	return t.appendChainUpdates(sigs, parentID), nil
}

// folder resolves id to an existing folder node.
func (t *Tree) folder(id NodeID) (*Node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", id, apperr.ErrNotFound)
	}
	if !n.IsFolder() {
		return nil, fmt.Errorf("node %s is not a folder: %w", id, apperr.ErrNotFound)
	}
	return n, nil
}

// isOrDescendsFrom reports whether id equals ancestor or sits somewhere
// below it.
func (t *Tree) isOrDescendsFrom(id, ancestor NodeID) bool {
	for cur := id; cur != ""; {
		if cur == ancestor {
			return true
		}
		n, ok := t.nodes[cur]
		if !ok {
			return false
		}
		cur = n.ParentID
	}
	return false
}

// detachChild removes n from parent's child list and renumbers the
// remaining children.
func (t *Tree) detachChild(parent, n *Node) {
	for i, cid := range parent.Children {
		if cid == n.ID {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			break
		}
	}
	t.renumber(parent)
	n.ParentID = ""
	n.Index = 0
}

// attachChild inserts n into parent's child list at idx, clamped to the list
// bounds, and renumbers.
func (t *Tree) attachChild(parent, n *Node, idx int) {
	if idx < 0 {
		idx = 0
	}
	if idx > len(parent.Children) {
		idx = len(parent.Children)
	}
	parent.Children = append(parent.Children, "")
	copy(parent.Children[idx+1:], parent.Children[idx:])
	parent.Children[idx] = n.ID
	n.ParentID = parent.ID
	t.renumber(parent)
}

func (t *Tree) renumber(parent *Node) {
	for i, cid := range parent.Children {
		t.nodes[cid].Index = i
	}
}

// forget drops the node from the by-id and by-URL maps. The caller handles
// the parent's child list.
func (t *Tree) forget(n *Node) {
	if n.IsBookmark() {
		t.removeURL(n)
	}
	delete(t.nodes, n.ID)
}

func (t *Tree) addURL(n *Node) {
	key := NormalizeURL(n.URL)
	set, ok := t.byURL[key]
	if !ok {
		set = make(map[NodeID]struct{})
		t.byURL[key] = set
	}
	set[n.ID] = struct{}{}
}

func (t *Tree) removeURL(n *Node) {
	key := NormalizeURL(n.URL)
	set, ok := t.byURL[key]
	if !ok {
		return
	}
	delete(set, n.ID)
	if len(set) == 0 {
		delete(t.byURL, key)
	}
}

func (t *Tree) setURL(n *Node, raw string) {
	if n.URL == raw {
		return
	}
	t.removeURL(n)
	n.URL = raw
	t.addURL(n)
}

// appendChainUpdates recomputes folder stats and appends an update signal
// for every folder from id up to the root, child first. Bottom-up order
// keeps each recompute working against fresh child stats.
func (t *Tree) appendChainUpdates(sigs []Signal, id NodeID) []Signal {
	for cur := id; cur != ""; {
		n, ok := t.nodes[cur]
		if !ok {
			return sigs
		}
		t.recomputeStats(n)
		sigs = append(sigs, updateSignal(n))
		cur = n.ParentID
	}
	return sigs
}

// recomputeStats rebuilds a folder's aggregate counts from its direct
// children, relying on the children's own stats being current.
func (t *Tree) recomputeStats(n *Node) {
	if !n.IsFolder() {
		return
	}
	var s FolderStats
	for _, cid := range n.Children {
		c := t.nodes[cid]
		switch c.Kind {
		case KindBookmark:
			s.Bookmarks++
		case KindFolder:
			s.Folders++
			s.Folders += c.Stats.Folders
			s.Bookmarks += c.Stats.Bookmarks
		}
	}
	n.Stats = s
}

func (t *Tree) recomputeStatsDeep(n *Node) {
	if !n.IsFolder() {
		return
	}
	for _, cid := range n.Children {
		t.recomputeStatsDeep(t.nodes[cid])
	}
	t.recomputeStats(n)
}

package bookmarks

import "sort"

// Node returns a copy of the node, or false when the id is not mirrored.
func (t *Tree) Node(id NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, false
	}
	return n.clone(), true
}

// Root returns a copy of the root folder.
func (t *Tree) Root() *Node {
	return t.nodes[t.rootID].clone()
}

// ChildrenOf returns copies of the folder's direct children in index order.
// Unknown ids and non-folders yield nil.
func (t *Tree) ChildrenOf(id NodeID) []*Node {
	n, ok := t.nodes[id]
	if !ok || !n.IsFolder() {
		return nil
	}
	out := make([]*Node, len(n.Children))
	for i, cid := range n.Children {
		out[i] = t.nodes[cid].clone()
	}
	return out
}

// PathTo returns copies of the nodes from the root down to id, inclusive.
// Unknown ids yield nil.
func (t *Tree) PathTo(id NodeID) []*Node {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	var rev []*Node
	for cur := n; cur != nil; {
		rev = append(rev, cur.clone())
		if cur.ParentID == "" {
			break
		}
		cur = t.nodes[cur.ParentID]
	}
	out := make([]*Node, len(rev))
	for i, p := range rev {
		out[len(rev)-1-i] = p
	}
	return out
}

// Depth returns the number of edges between the root and id. The root has
// depth zero. Unknown ids report false.
func (t *Tree) Depth(id NodeID) (int, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return 0, false
	}
	depth := 0
	for cur := n; cur.ParentID != ""; cur = t.nodes[cur.ParentID] {
		depth++
	}
	return depth, true
}

// IsInFolder reports whether id sits strictly inside folderID's subtree.
// A folder does not contain itself.
func (t *Tree) IsInFolder(id, folderID NodeID) bool {
	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	return t.isOrDescendsFrom(n.ParentID, folderID)
}

// PositionOf returns the parent id and sibling index of a node. The root
// and unknown ids report false.
func (t *Tree) PositionOf(id NodeID) (NodeID, int, bool) {
	n, ok := t.nodes[id]
	if !ok || n.ParentID == "" {
		return "", 0, false
	}
	return n.ParentID, n.Index, true
}

// NodesByURL returns copies of every bookmark whose normalized URL matches
// the given one, ordered by id for determinism.
func (t *Tree) NodesByURL(url string) []*Node {
	set, ok := t.byURL[NormalizeURL(url)]
	if !ok {
		return nil
	}
	ids := make([]NodeID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = t.nodes[id].clone()
	}
	return out
}

// InFolderByURL returns the matches of NodesByURL restricted to folderID's
// subtree.
func (t *Tree) InFolderByURL(folderID NodeID, url string) []*Node {
	var out []*Node
	for _, n := range t.NodesByURL(url) {
		if t.IsInFolder(n.ID, folderID) {
			out = append(out, n)
		}
	}
	return out
}

// HasURL reports whether any mirrored bookmark carries the URL.
func (t *Tree) HasURL(url string) bool {
	return len(t.byURL[NormalizeURL(url)]) > 0
}

// Subtree returns copies of id and all its descendants in pre-order, children
// in index order. Unknown ids yield nil.
func (t *Tree) Subtree(id NodeID) []*Node {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		out = append(out, cur.clone())
		for _, cid := range cur.Children {
			walk(t.nodes[cid])
		}
	}
	walk(n)
	return out
}

package bookmarks

import (
	"strings"
	"testing"
)

func pathString(nodes []*Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = string(n.ID)
	}
	return strings.Join(parts, "/")
}

func TestPathTo(t *testing.T) {
	tree := testTree(t)

	tests := []struct {
		id   string
		want string
	}{
		{"e", "root/other/sub/e"},
		{"a", "root/toolbar/a"},
		{"root", "root"},
	}
	for _, tc := range tests {
		if got := pathString(tree.PathTo(NodeID(tc.id))); got != tc.want {
			t.Errorf("PathTo(%s) = %q, want %q", tc.id, got, tc.want)
		}
	}
	if tree.PathTo("ghost") != nil {
		t.Error("PathTo(ghost) != nil")
	}
}

func TestDepth(t *testing.T) {
	tree := testTree(t)
	for id, want := range map[string]int{"root": 0, "toolbar": 1, "e": 3} {
		got, ok := tree.Depth(NodeID(id))
		if !ok || got != want {
			t.Errorf("Depth(%s) = %d/%v, want %d", id, got, ok, want)
		}
	}
	if _, ok := tree.Depth("ghost"); ok {
		t.Error("Depth(ghost) reported ok")
	}
}

func TestIsInFolder(t *testing.T) {
	tree := testTree(t)

	tests := []struct {
		id, folder string
		want       bool
	}{
		{"e", "other", true},
		{"e", "sub", true},
		{"e", "root", true},
		{"e", "toolbar", false},
		{"sub", "sub", false}, // a folder does not contain itself
		{"a", "toolbar", true},
		{"ghost", "root", false},
	}
	for _, tc := range tests {
		if got := tree.IsInFolder(NodeID(tc.id), NodeID(tc.folder)); got != tc.want {
			t.Errorf("IsInFolder(%s, %s) = %v, want %v", tc.id, tc.folder, got, tc.want)
		}
	}
}

func TestPositionOf(t *testing.T) {
	tree := testTree(t)

	parent, idx, ok := tree.PositionOf("c")
	if !ok || parent != "toolbar" || idx != 2 {
		t.Errorf("PositionOf(c) = %s/%d/%v, want toolbar/2/true", parent, idx, ok)
	}
	if _, _, ok := tree.PositionOf("root"); ok {
		t.Error("PositionOf(root) reported ok")
	}
	if _, _, ok := tree.PositionOf("ghost"); ok {
		t.Error("PositionOf(ghost) reported ok")
	}
}

func TestNodesByURL_Normalized(t *testing.T) {
	tree := testTree(t)

	// Fragment and host case differences hit the same bucket.
	for _, q := range []string{
		"http://example.com/a",
		"HTTP://EXAMPLE.COM/a#section",
		"http://example.com:80/a",
	} {
		hits := tree.NodesByURL(q)
		if len(hits) != 2 || hits[0].ID != "a" || hits[1].ID != "e" {
			t.Errorf("NodesByURL(%q) = %v, want [a e]", q, hits)
		}
	}
	if tree.NodesByURL("http://example.com/nope") != nil {
		t.Error("NodesByURL miss returned hits")
	}
}

func TestInFolderByURL(t *testing.T) {
	tree := testTree(t)

	hits := tree.InFolderByURL("other", "http://example.com/a")
	if len(hits) != 1 || hits[0].ID != "e" {
		t.Errorf("InFolderByURL(other) = %v, want [e]", hits)
	}
	hits = tree.InFolderByURL("toolbar", "http://example.com/a")
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Errorf("InFolderByURL(toolbar) = %v, want [a]", hits)
	}
}

func TestSubtree_PreOrder(t *testing.T) {
	tree := testTree(t)

	got := pathString(tree.Subtree("other"))
	if got != "other/sub/e" {
		t.Errorf("Subtree(other) = %q, want %q", got, "other/sub/e")
	}
	if tree.Subtree("ghost") != nil {
		t.Error("Subtree(ghost) != nil")
	}
}

func TestQueryCopiesAreDetached(t *testing.T) {
	tree := testTree(t)

	n, _ := tree.Node("toolbar")
	n.Title = "mutated"
	n.Children[0] = "mutated"

	fresh, _ := tree.Node("toolbar")
	if fresh.Title != "Toolbar" || fresh.Children[0] != "a" {
		t.Error("query result mutation leaked into the tree")
	}
}

package bookmarks

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeID is the opaque stable identifier assigned by the authoritative
// store. Ids are ULIDs in practice, so their lexicographic order matches
// creation order.
type NodeID string

// Kind discriminates the three node variants. It is fixed when the node is
// constructed from the store payload and never changes afterwards.
type Kind int

const (
	KindBookmark Kind = iota
	KindFolder
	KindSeparator
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBookmark:
		return "bookmark"
	case KindFolder:
		return "folder"
	case KindSeparator:
		return "separator"
	default:
		return "unknown"
	}
}

// ParseKind converts a wire name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "bookmark":
		return KindBookmark, nil
	case "folder":
		return KindFolder, nil
	case "separator":
		return KindSeparator, nil
	default:
		return 0, fmt.Errorf("bookmarks: unknown node kind %q", s)
	}
}

// MarshalJSON encodes the kind as its wire name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes the kind from its wire name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// FolderStats aggregates counts over all descendants of a folder, not just
// its direct children.
type FolderStats struct {
	Folders   int `json:"folders"`
	Bookmarks int `json:"bookmarks"`
}

// Node is one entry in the mirrored tree. Exactly one of the variant field
// groups is meaningful, selected by Kind: URL for bookmarks, Children and
// Stats for folders, neither for separators.
type Node struct {
	ID        NodeID    `json:"id"`
	ParentID  NodeID    `json:"parentId,omitempty"` // empty only for the tree root
	Index     int       `json:"index"`
	Title     string    `json:"title"`
	DateAdded time.Time `json:"dateAdded,omitempty"`
	Kind      Kind      `json:"kind"`

	URL string `json:"url,omitempty"`

	Children []NodeID    `json:"children,omitempty"`
	Stats    FolderStats `json:"stats,omitzero"`
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.Kind == KindFolder }

// IsBookmark reports whether the node is a bookmark.
func (n *Node) IsBookmark() bool { return n.Kind == KindBookmark }

// IsSeparator reports whether the node is a separator.
func (n *Node) IsSeparator() bool { return n.Kind == KindSeparator }

// clone returns a deep copy safe to hand out to subscribers after the tree
// has moved on.
func (n *Node) clone() *Node {
	c := *n
	if n.Children != nil {
		c.Children = append([]NodeID(nil), n.Children...)
	}
	return &c
}

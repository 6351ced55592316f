package api

import (
	"time"

	"github.com/starford/othala/internal/bookmarks"
)

// CreateNodeRequest is the request body for creating a node. Index is
// optional; absent means append at the end of the parent's children.
type CreateNodeRequest struct {
	ParentID string `json:"parentId" example:"01J0XYZ..." validate:"required"`
	Index    *int   `json:"index,omitempty" example:"0"`
	Kind     string `json:"kind" example:"bookmark" validate:"required"`
	Title    string `json:"title" example:"Example"`
	URL      string `json:"url,omitempty" example:"https://example.com/"`
}

// PatchNodeRequest is the request body for updating a node. Absent fields
// stay unchanged.
type PatchNodeRequest struct {
	Title *string `json:"title,omitempty" example:"Renamed"`
	URL   *string `json:"url,omitempty" example:"https://example.com/new"`
}

// MoveNodeRequest is the request body for repositioning a node.
type MoveNodeRequest struct {
	ParentID string `json:"parentId" validate:"required"`
	Index    int    `json:"index" example:"0"`
}

// StashRequest is the request body for filing a URL into the stash.
type StashRequest struct {
	Title string `json:"title" example:"Read later"`
	URL   string `json:"url" example:"https://example.com/article" validate:"required"`
}

// FaviconRequest is the request body for storing a page icon.
type FaviconRequest struct {
	URL         string `json:"url" validate:"required"`
	ContentType string `json:"contentType" example:"image/png"`
	Data        []byte `json:"data" validate:"required"`
}

// NodeView is the nested tree rendering: children are materialized views in
// sibling order instead of bare ids. Flat endpoints return the node record
// itself.
type NodeView struct {
	ID        string                `json:"id"`
	ParentID  string                `json:"parentId,omitempty"`
	Index     int                   `json:"index"`
	Kind      string                `json:"kind"`
	Title     string                `json:"title"`
	DateAdded time.Time             `json:"dateAdded,omitempty"`
	URL       string                `json:"url,omitempty"`
	Stats     bookmarks.FolderStats `json:"stats,omitzero"`
	Children  []*NodeView           `json:"children,omitempty"`
}

func viewOf(n *bookmarks.Node) *NodeView {
	return &NodeView{
		ID:        string(n.ID),
		ParentID:  string(n.ParentID),
		Index:     n.Index,
		Kind:      n.Kind.String(),
		Title:     n.Title,
		DateAdded: n.DateAdded,
		URL:       n.URL,
		Stats:     n.Stats,
	}
}

// treeView materializes the subtree rooted at id. The model returns the
// subtree in pre-order with children in sibling order, so a single pass
// rebuilds the nesting.
func treeView(m *bookmarks.Model, id bookmarks.NodeID) (*NodeView, bool) {
	nodes := m.Subtree(id)
	if nodes == nil {
		return nil, false
	}
	views := make(map[bookmarks.NodeID]*NodeView, len(nodes))
	root := viewOf(nodes[0])
	views[nodes[0].ID] = root
	for _, n := range nodes[1:] {
		v := viewOf(n)
		views[n.ID] = v
		if p, ok := views[n.ParentID]; ok {
			p.Children = append(p.Children, v)
		}
	}
	return root, true
}

// StashRootResponse reports the resolved stash root and whether several
// folders currently compete for the designation.
type StashRootResponse struct {
	Root      *bookmarks.Node `json:"root"`
	Ambiguous bool            `json:"ambiguous"`
}

// NodeListResponse wraps endpoints that return a flat node list.
type NodeListResponse struct {
	Nodes []*bookmarks.Node `json:"nodes" validate:"required"`
}

// ImportResponse is returned after a successful bookmark file import.
type ImportResponse struct {
	Folder  string `json:"folder" example:"01J0XYZ..."`
	Created int    `json:"created" example:"42"`
}

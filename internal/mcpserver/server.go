// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala bookmark tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/bookmarks"
	"github.com/starford/othala/internal/importer"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp   *server.MCPServer
	model *bookmarks.Model
}

// New creates a new MCP server with all Othala tools registered.
func New(model *bookmarks.Model) *Server {
	s := &Server{model: model}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("stash_url",
		mcp.WithDescription("Save a URL into the stash folder. A dated group folder "+
			"is created or reused automatically; the stash root itself is created "+
			"on first use."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Page URL to save")),
		mcp.WithString("title", mcp.Description("Bookmark title (defaults to the URL)")),
	), s.stashURL)

	s.mcp.AddTool(mcp.NewTool("search_bookmarks",
		mcp.WithDescription("Full-text search over bookmark titles and URLs."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchBookmarks)

	s.mcp.AddTool(mcp.NewTool("list_folder",
		mcp.WithDescription("List the children of a folder, one per line as 'id<TAB>title<TAB>url'."),
		mcp.WithString("id", mcp.Description("Folder id (empty for the tree root)")),
	), s.listFolder)

	s.mcp.AddTool(mcp.NewTool("remove_bookmark",
		mcp.WithDescription("Delete a bookmark or folder. Non-empty folders are only "+
			"deleted when recursive is true."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id to delete")),
		mcp.WithBoolean("recursive", mcp.Description("Also delete a folder's subtree")),
	), s.removeBookmark)

	// Resource: the whole tree as a Netscape bookmark file.
	s.mcp.AddResource(
		mcp.NewResource("othala://export", "Bookmark Export",
			mcp.WithResourceDescription("The full bookmark tree as a Netscape bookmark file."),
			mcp.WithMIMEType("text/html"),
		),
		s.readExportResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) stashURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title := req.GetString("title", "")
	if title == "" {
		title = url
	}

	node, err := s.model.Stash(ctx, title, url)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(node, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchBookmarks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 20)

	results, err := s.model.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no bookmarks found"), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folderID := s.model.Root().ID
	if id := req.GetString("id", ""); id != "" {
		n, ok := s.model.Node(bookmarks.NodeID(id))
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		if !n.IsFolder() {
			return mcp.NewToolResultError(fmt.Sprintf("not a folder: %s", id)), nil
		}
		folderID = n.ID
	}

	children := s.model.ChildrenOf(folderID)
	if len(children) == 0 {
		return mcp.NewToolResultText("folder is empty"), nil
	}
	var b strings.Builder
	for _, c := range children {
		switch c.Kind {
		case bookmarks.KindFolder:
			fmt.Fprintf(&b, "%s\t%s/\t\n", c.ID, c.Title)
		case bookmarks.KindSeparator:
			fmt.Fprintf(&b, "%s\t---\t\n", c.ID)
		default:
			fmt.Fprintf(&b, "%s\t%s\t%s\n", c.ID, c.Title, c.URL)
		}
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) removeBookmark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if req.GetBool("recursive", false) {
		err = s.model.RemoveTree(ctx, bookmarks.NodeID(id))
	} else {
		err = s.model.Remove(ctx, bookmarks.NodeID(id))
	}
	switch {
	case errors.Is(err, apperr.ErrFolderNotEmpty):
		return mcp.NewToolResultError("folder is not empty; pass recursive=true to delete its subtree"), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) readExportResource(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	var buf bytes.Buffer
	if err := importer.WriteNetscape(&buf, s.model, s.model.Root().ID); err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "othala://export",
			MIMEType: "text/html",
			Text:     buf.String(),
		},
	}, nil
}

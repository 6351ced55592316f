// Package importer reads and writes Netscape bookmark files and watches an
// import directory for new ones. The format is the de-facto browser export
// format: nested DL lists with DT>H3 folders, DT>A bookmarks, and HR
// separators. Real exports routinely leave DT and DL tags unclosed, so
// parsing runs on the html tokenizer with an explicit folder stack instead
// of a proper DOM.
package importer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/starford/othala/internal/bookmarks"
)

// Entry is one parsed item. Folders carry Children; bookmarks carry URL and
// optionally Icon (the raw ICON attribute, usually a data: URL).
type Entry struct {
	Title    string
	URL      string
	Icon     string
	Kind     bookmarks.Kind
	AddedAt  time.Time
	Children []*Entry
}

// ParseNetscape parses a Netscape bookmark file and returns its top-level
// entries. Unknown markup is skipped; an empty or bookmark-free file parses
// to an empty slice.
func ParseNetscape(r io.Reader) ([]*Entry, error) {
	z := html.NewTokenizer(r)
	root := &Entry{Kind: bookmarks.KindFolder}
	stack := []*Entry{root}
	top := func() *Entry { return stack[len(stack)-1] }

	// pending is an H3 folder waiting for its DL; current collects text for
	// the open A or H3 element.
	var pending, current *Entry

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return root.Children, nil
			}
			return nil, fmt.Errorf("importer: parse: %w", z.Err())

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "h3":
				pending = &Entry{Kind: bookmarks.KindFolder, AddedAt: attrDate(z, hasAttr)}
				current = pending
			case "a":
				e := &Entry{Kind: bookmarks.KindBookmark}
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					switch string(key) {
					case "href":
						e.URL = string(val)
					case "icon":
						e.Icon = string(val)
					case "add_date":
						e.AddedAt = unixAttr(string(val))
					}
				}
				top().Children = append(top().Children, e)
				current = e
			case "hr":
				top().Children = append(top().Children, &Entry{Kind: bookmarks.KindSeparator})
			case "dl":
				// Every DL pushes one level so pops stay balanced on
				// malformed input. A DL with no preceding H3 (the file's
				// root list, or stray markup) continues the current folder.
				if pending != nil {
					top().Children = append(top().Children, pending)
					stack = append(stack, pending)
					pending = nil
				} else {
					stack = append(stack, top())
				}
			}

		case html.TextToken:
			if current != nil {
				current.Title += string(z.Text())
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "a", "h3":
				if current != nil {
					current.Title = strings.TrimSpace(current.Title)
					current = nil
				}
			case "dl":
				if len(stack) > 1 {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}
}

// attrDate scans the current tag's attributes for add_date.
func attrDate(z *html.Tokenizer, hasAttr bool) time.Time {
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "add_date" {
			return unixAttr(string(val))
		}
	}
	return time.Time{}
}

// unixAttr parses an ADD_DATE value (Unix seconds). Malformed values yield
// the zero time, which downstream treats as "not recorded".
func unixAttr(s string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

// TreeView is the read surface WriteNetscape renders from. The bookmark
// model satisfies it.
type TreeView interface {
	Node(id bookmarks.NodeID) (*bookmarks.Node, bool)
	ChildrenOf(id bookmarks.NodeID) []*bookmarks.Node
}

// WriteNetscape renders the subtree under rootID as a Netscape bookmark
// file. The root node itself becomes the H1 heading, not a folder entry.
func WriteNetscape(w io.Writer, view TreeView, rootID bookmarks.NodeID) error {
	root, ok := view.Node(rootID)
	if !ok {
		return fmt.Errorf("importer: export: unknown root %s", rootID)
	}

	// bufio latches the first write error and reports it at Flush.
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	fmt.Fprint(bw, "<!-- This is an automatically generated file.\n     It will be read and overwritten.\n     DO NOT EDIT! -->\n")
	fmt.Fprint(bw, `<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">`+"\n")
	fmt.Fprintf(bw, "<TITLE>%s</TITLE>\n", html.EscapeString(root.Title))
	fmt.Fprintf(bw, "<H1>%s</H1>\n", html.EscapeString(root.Title))
	writeList(bw, view, rootID, 0)
	return bw.Flush()
}

func writeList(w io.Writer, view TreeView, id bookmarks.NodeID, depth int) {
	pad := strings.Repeat("    ", depth)
	fmt.Fprintf(w, "%s<DL><p>\n", pad)
	for _, child := range view.ChildrenOf(id) {
		switch {
		case child.IsFolder():
			fmt.Fprintf(w, "%s    <DT><H3%s>%s</H3>\n", pad, addDate(child), html.EscapeString(child.Title))
			writeList(w, view, child.ID, depth+1)
		case child.IsSeparator():
			fmt.Fprintf(w, "%s    <HR>\n", pad)
		default:
			fmt.Fprintf(w, "%s    <DT><A HREF=\"%s\"%s>%s</A>\n",
				pad, html.EscapeString(child.URL), addDate(child), html.EscapeString(child.Title))
		}
	}
	fmt.Fprintf(w, "%s</DL><p>\n", pad)
}

func addDate(n *bookmarks.Node) string {
	if n.DateAdded.IsZero() {
		return ""
	}
	return fmt.Sprintf(" ADD_DATE=\"%d\"", n.DateAdded.Unix())
}

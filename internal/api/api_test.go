package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"os"
	"strings"
	"testing"

	"github.com/starford/othala/internal/bookmarks"
	"github.com/starford/othala/internal/favicon"
	"github.com/starford/othala/internal/testutil"
	"github.com/starford/othala/internal/trash"
)

// testDeps builds a model over a temp store, a temp trash database wired as
// the model's recorder, and an empty favicon cache.
func testDeps(t *testing.T) (*bookmarks.Model, *trash.Store, *favicon.Cache) {
	t.Helper()

	trashFile, err := os.CreateTemp("", "othala-api-trash-*.db")
	if err != nil {
		t.Fatal(err)
	}
	trashFile.Close()
	t.Cleanup(func() { os.Remove(trashFile.Name()) })

	tr, err := trash.Open(trashFile.Name(), testutil.Logger())
	if err != nil {
		t.Fatalf("open trash: %v", err)
	}
	t.Cleanup(func() { tr.Close() })

	model := testutil.TestModel(t, bookmarks.Config{Recorder: tr})
	return model, tr, favicon.NewCache()
}

// testEnv builds a router in disabled-auth mode (empty token) or token mode.
func testEnv(t *testing.T, authToken string) (*bookmarks.Model, http.Handler) {
	t.Helper()
	model, tr, icons := testDeps(t)
	return model, NewRouter(model, tr, icons, authToken != "", authToken, nil)
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func childByTitle(t *testing.T, m *bookmarks.Model, parent bookmarks.NodeID, title string) *bookmarks.Node {
	t.Helper()
	for _, c := range m.ChildrenOf(parent) {
		if c.Title == title {
			return c
		}
	}
	t.Fatalf("no child %q under %s", title, parent)
	return nil
}

func TestGetTree_Nested(t *testing.T) {
	model, router := testEnv(t, "")
	toolbar := childByTitle(t, model, model.Root().ID, "Bookmarks Toolbar")

	w := doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(toolbar.ID), Kind: "bookmark", Title: "Go", URL: "https://go.dev/",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/tree", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tree = %d", w.Code)
	}
	view := decode[NodeView](t, w)
	if view.Kind != "folder" || len(view.Children) != 2 {
		t.Fatalf("root view = %+v, want folder with 2 children", view)
	}
	tb := view.Children[0]
	if tb.Title != "Bookmarks Toolbar" || len(tb.Children) != 1 {
		t.Fatalf("toolbar view = %+v, want 1 child", tb)
	}
	if tb.Children[0].URL != "https://go.dev/" {
		t.Errorf("nested bookmark = %+v", tb.Children[0])
	}
	if tb.Stats.Bookmarks != 1 {
		t.Errorf("toolbar stats = %+v, want 1 bookmark", tb.Stats)
	}
}

func TestGetSubtree_NotFound(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/tree/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing subtree = %d, want 404", w.Code)
	}
}

func TestCreateAndGetNode(t *testing.T) {
	model, router := testEnv(t, "")
	toolbar := childByTitle(t, model, model.Root().ID, "Bookmarks Toolbar")

	w := doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(toolbar.ID), Kind: "bookmark", Title: "Docs", URL: "https://pkg.go.dev/",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[bookmarks.Node](t, w)
	if created.ID == "" || created.Title != "Docs" {
		t.Fatalf("created = %+v", created)
	}

	w = doJSON(t, router, http.MethodGet, "/nodes/"+string(created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	got := decode[bookmarks.Node](t, w)
	if got.URL != "https://pkg.go.dev/" || got.ParentID != toolbar.ID {
		t.Errorf("got = %+v", got)
	}

	w = doJSON(t, router, http.MethodGet, "/nodes/"+string(created.ID)+"/path", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("path = %d", w.Code)
	}
	path := decode[NodeListResponse](t, w)
	if len(path.Nodes) != 3 || path.Nodes[2].ID != created.ID {
		t.Errorf("path = %d nodes, want root/toolbar/bookmark", len(path.Nodes))
	}
}

func TestCreateNode_Validation(t *testing.T) {
	model, router := testEnv(t, "")
	toolbar := childByTitle(t, model, model.Root().ID, "Bookmarks Toolbar")

	cases := []struct {
		name string
		req  CreateNodeRequest
		want int
	}{
		{"missing parent", CreateNodeRequest{Kind: "folder", Title: "x"}, http.StatusBadRequest},
		{"bad kind", CreateNodeRequest{ParentID: string(toolbar.ID), Kind: "note"}, http.StatusBadRequest},
		{"bookmark without url", CreateNodeRequest{ParentID: string(toolbar.ID), Kind: "bookmark", Title: "x"}, http.StatusBadRequest},
		{"unknown parent", CreateNodeRequest{ParentID: "ghost", Kind: "folder", Title: "x"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/nodes", tc.req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestPatchNode(t *testing.T) {
	model, router := testEnv(t, "")
	toolbar := childByTitle(t, model, model.Root().ID, "Bookmarks Toolbar")

	w := doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(toolbar.ID), Kind: "bookmark", Title: "Old", URL: "https://old.example/",
	})
	created := decode[bookmarks.Node](t, w)

	title := "New"
	w = doJSON(t, router, http.MethodPatch, "/nodes/"+string(created.ID), PatchNodeRequest{Title: &title})
	if w.Code != http.StatusOK {
		t.Fatalf("patch title = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[bookmarks.Node](t, w); got.Title != "New" {
		t.Errorf("title = %q, want New", got.Title)
	}

	u := "https://new.example/"
	w = doJSON(t, router, http.MethodPatch, "/nodes/"+string(created.ID), PatchNodeRequest{URL: &u})
	if w.Code != http.StatusOK {
		t.Fatalf("patch url = %d", w.Code)
	}
	if got := decode[bookmarks.Node](t, w); got.URL != u {
		t.Errorf("url = %q, want %q", got.URL, u)
	}

	w = doJSON(t, router, http.MethodPatch, "/nodes/"+string(created.ID), PatchNodeRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty patch = %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodPatch, "/nodes/ghost", PatchNodeRequest{Title: &title})
	if w.Code != http.StatusNotFound {
		t.Errorf("patch missing = %d, want 404", w.Code)
	}
}

func TestMoveNode(t *testing.T) {
	model, router := testEnv(t, "")
	toolbar := childByTitle(t, model, model.Root().ID, "Bookmarks Toolbar")

	w := doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(toolbar.ID), Kind: "folder", Title: "Target",
	})
	folder := decode[bookmarks.Node](t, w)
	w = doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(toolbar.ID), Kind: "bookmark", Title: "Mover", URL: "https://m.example/",
	})
	mover := decode[bookmarks.Node](t, w)

	w = doJSON(t, router, http.MethodPost, "/nodes/"+string(mover.ID)+"/move", MoveNodeRequest{
		ParentID: string(folder.ID), Index: 0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	moved := decode[bookmarks.Node](t, w)
	if moved.ParentID != folder.ID || moved.Index != 0 {
		t.Errorf("moved = %+v, want parent %s index 0", moved, folder.ID)
	}

	// Moving the toolbar under a folder inside itself must be refused.
	w = doJSON(t, router, http.MethodPost, "/nodes/"+string(toolbar.ID)+"/move", MoveNodeRequest{
		ParentID: string(folder.ID), Index: 0,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("cycle move = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "cycle") {
		t.Errorf("cycle body = %s", w.Body.String())
	}
}

func TestDeleteNode_LeafAndRecursive(t *testing.T) {
	model, router := testEnv(t, "")
	toolbar := childByTitle(t, model, model.Root().ID, "Bookmarks Toolbar")

	w := doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(toolbar.ID), Kind: "folder", Title: "Keep",
	})
	folder := decode[bookmarks.Node](t, w)
	w = doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(folder.ID), Kind: "bookmark", Title: "Inside", URL: "https://in.example/",
	})
	inside := decode[bookmarks.Node](t, w)

	// Non-recursive delete of a non-empty folder is refused with a hint.
	w = doJSON(t, router, http.MethodDelete, "/nodes/"+string(folder.ID), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("delete non-empty = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not empty") {
		t.Errorf("conflict body = %s", w.Body.String())
	}

	w = doJSON(t, router, http.MethodDelete, "/nodes/"+string(inside.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete leaf = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(folder.ID), Kind: "bookmark", Title: "Again", URL: "https://again.example/",
	})
	if w.Code != http.StatusCreated {
		t.Fatal("refill failed")
	}
	w = doJSON(t, router, http.MethodDelete, "/nodes/"+string(folder.ID)+"?recursive=true", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("recursive delete = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/nodes/"+string(folder.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/nodes/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete missing = %d, want 404", w.Code)
	}
}

func TestTrashListsDeleted(t *testing.T) {
	model, router := testEnv(t, "")
	toolbar := childByTitle(t, model, model.Root().ID, "Bookmarks Toolbar")

	w := doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(toolbar.ID), Kind: "bookmark", Title: "Doomed", URL: "https://doom.example/",
	})
	doomed := decode[bookmarks.Node](t, w)
	if w := doJSON(t, router, http.MethodDelete, "/nodes/"+string(doomed.ID), nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/trash?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("trash = %d", w.Code)
	}
	resp := decode[struct {
		Items []trash.Item `json:"items"`
	}](t, w)
	if len(resp.Items) != 1 || resp.Items[0].Title != "Doomed" {
		t.Errorf("trash items = %+v, want the deleted bookmark", resp.Items)
	}
}

func TestLookup(t *testing.T) {
	model, router := testEnv(t, "")
	root := model.Root().ID
	toolbar := childByTitle(t, model, root, "Bookmarks Toolbar")
	other := childByTitle(t, model, root, "Other Bookmarks")

	// Same page bookmarked twice, with scheme and host case differing.
	doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(toolbar.ID), Kind: "bookmark", Title: "a", URL: "HTTPS://News.example/story?id=1",
	})
	doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(other.ID), Kind: "bookmark", Title: "b", URL: "https://news.example/story?id=1",
	})

	q := neturl.Values{"url": {"https://news.example/story?id=1"}}
	w := doJSON(t, router, http.MethodGet, "/lookup?"+q.Encode(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("lookup = %d", w.Code)
	}
	hits := decode[NodeListResponse](t, w)
	if len(hits.Nodes) != 2 {
		t.Errorf("hits = %d, want 2", len(hits.Nodes))
	}

	q.Set("folder", string(other.ID))
	w = doJSON(t, router, http.MethodGet, "/lookup?"+q.Encode(), nil)
	hits = decode[NodeListResponse](t, w)
	if len(hits.Nodes) != 1 || hits.Nodes[0].Title != "b" {
		t.Errorf("scoped hits = %+v, want just b", hits.Nodes)
	}

	w = doJSON(t, router, http.MethodGet, "/lookup", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("lookup without url = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	model, router := testEnv(t, "")
	toolbar := childByTitle(t, model, model.Root().ID, "Bookmarks Toolbar")

	doJSON(t, router, http.MethodPost, "/nodes", CreateNodeRequest{
		ParentID: string(toolbar.ID), Kind: "bookmark", Title: "uniquetoken page", URL: "https://u.example/",
	})

	w := doJSON(t, router, http.MethodGet, "/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	results := decode[NodeListResponse](t, w)
	if len(results.Nodes) != 1 {
		t.Errorf("search results = %d, want 1", len(results.Nodes))
	}

	w = doJSON(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestStashFlow(t *testing.T) {
	model, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/stash-root", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stash-root = %d", w.Code)
	}
	st := decode[StashRootResponse](t, w)
	if st.Root != nil || st.Ambiguous {
		t.Fatalf("initial stash root = %+v, want unresolved", st)
	}

	w = doJSON(t, router, http.MethodPost, "/stash-root/ensure", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ensure = %d, body = %s", w.Code, w.Body.String())
	}
	root := decode[bookmarks.Node](t, w)
	if root.Title != bookmarks.DefaultStashRootTitle {
		t.Errorf("ensured root = %+v", root)
	}

	w = doJSON(t, router, http.MethodPost, "/stash", StashRequest{URL: "https://read.example/article"})
	if w.Code != http.StatusCreated {
		t.Fatalf("stash = %d, body = %s", w.Code, w.Body.String())
	}
	stashed := decode[bookmarks.Node](t, w)
	if stashed.URL != "https://read.example/article" || stashed.Title != "https://read.example/article" {
		t.Errorf("stashed = %+v, want url as fallback title", stashed)
	}
	if !model.IsInFolder(stashed.ID, root.ID) {
		t.Error("stashed bookmark not inside the stash root")
	}

	w = doJSON(t, router, http.MethodGet, "/stash-root", nil)
	st = decode[StashRootResponse](t, w)
	if st.Root == nil || st.Root.ID != root.ID {
		t.Errorf("resolved stash root = %+v, want %s", st, root.ID)
	}

	w = doJSON(t, router, http.MethodPost, "/stash", StashRequest{Title: "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("stash without url = %d, want 400", w.Code)
	}
}

const importFixture = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<TITLE>Bookmarks</TITLE>
<H1>Bookmarks</H1>
<DL><p>
    <DT><H3>News</H3>
    <DL><p>
        <DT><A HREF="https://news.example/" ADD_DATE="1700000100">News Site</A>
    </DL><p>
    <DT><A HREF="https://solo.example/page">Solo</A>
</DL><p>
`

func uploadBookmarkFile(t *testing.T, router http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(part, content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestImportAndExport(t *testing.T) {
	model, router := testEnv(t, "")

	w := uploadBookmarkFile(t, router, "firefox.html", importFixture)
	if w.Code != http.StatusCreated {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[ImportResponse](t, w)
	if resp.Created != 3 {
		t.Errorf("created = %d, want 3", resp.Created)
	}
	folder, ok := model.Node(bookmarks.NodeID(resp.Folder))
	if !ok || folder.Title != "Imported firefox" {
		t.Errorf("import folder = %+v", folder)
	}
	if root, ok := model.StashRoot(); !ok || !model.IsInFolder(folder.ID, root.ID) {
		t.Error("import folder not under the stash root")
	}

	w = doJSON(t, router, http.MethodGet, "/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"<!DOCTYPE NETSCAPE-Bookmark-file-1>", "https://news.example/", "https://solo.example/page", "Imported firefox"} {
		if !strings.Contains(body, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("export content type = %q", ct)
	}
}

func TestImport_RejectsEmptyAndMissingFile(t *testing.T) {
	_, router := testEnv(t, "")

	w := uploadBookmarkFile(t, router, "empty.html", "<html><body>nothing here</body></html>")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bookmark-free import = %d, want 400", w.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}

func TestFaviconRoundTrip(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPut, "/favicon", FaviconRequest{
		URL: "https://Example.com/page", ContentType: "image/png", Data: []byte("fake-png"),
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("put favicon = %d, body = %s", w.Code, w.Body.String())
	}

	// Lookups normalize, so host case does not matter.
	q := neturl.Values{"url": {"https://example.com/page"}}
	w = doJSON(t, router, http.MethodGet, "/favicon?"+q.Encode(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get favicon = %d", w.Code)
	}
	if w.Body.String() != "fake-png" || w.Header().Get("Content-Type") != "image/png" {
		t.Errorf("favicon body = %q, type = %q", w.Body.String(), w.Header().Get("Content-Type"))
	}

	q.Set("url", "https://unknown.example/")
	w = doJSON(t, router, http.MethodGet, "/favicon?"+q.Encode(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing favicon = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tree", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed tree = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tree", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/tree", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/tree", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func testEnvSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	model, tr, icons := testDeps(t)

	// Stub handler; the real broker is exercised in its own package.
	stub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	})
	return NewRouter(model, tr, icons, authEnabled, token, stub)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvSSE(t, true, "secret")

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with token = %d, want 200", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router := testEnvSSE(t, false, "")

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE disabled auth = %d, want 200", w.Code)
	}
}

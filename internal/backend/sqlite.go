package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/starford/othala/internal/apperr"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT PRIMARY KEY,
	parent_id  TEXT REFERENCES nodes(id),
	idx        INTEGER NOT NULL DEFAULT 0,
	kind       TEXT NOT NULL CHECK (kind IN ('bookmark', 'folder', 'separator')),
	title      TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL DEFAULT '',
	date_added INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id, idx);
CREATE INDEX IF NOT EXISTS idx_nodes_url ON nodes(url);
`

// RootTitle is the title of the seeded tree root.
const RootTitle = "Bookmarks"

var seededChildren = []string{"Bookmarks Toolbar", "Other Bookmarks"}

// SQLite is the Store implementation backed by an embedded SQLite database.
// Node ids are ULIDs, so id order matches creation order. The write mutex
// spans commit, seq assignment and event publish, which is what keeps the
// change feed gap-free and ordered.
type SQLite struct {
	conn *sql.DB
	log  *slog.Logger

	mu   sync.Mutex
	seq  uint64
	disp *dispatcher
}

// Open opens (or creates) the store database, applies the schema, and seeds
// the root folders on first use.
func Open(dsn string, log *slog.Logger) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("backend: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("backend: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("backend: apply schema: %w", err)
	}
	if err := initSearch(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("backend: apply search schema: %w", err)
	}
	s := &SQLite{conn: conn, log: log, disp: newDispatcher()}
	if err := s.seed(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close shuts down the change feed and the database connection.
func (s *SQLite) Close() error {
	s.disp.close()
	return s.conn.Close()
}

// Subscribe implements Store.
func (s *SQLite) Subscribe() (<-chan Event, func(), error) {
	return s.disp.subscribe()
}

// seed creates the root folder and its default children when the database
// is empty.
func (s *SQLite) seed() error {
	var roots int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM nodes WHERE parent_id IS NULL`).Scan(&roots); err != nil {
		return fmt.Errorf("backend: count roots: %w", err)
	}
	if roots > 0 {
		return nil
	}
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("backend: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := time.Now().UTC().UnixMilli()
	rootID := ulid.Make().String()
	if _, err := tx.Exec(
		`INSERT INTO nodes (id, parent_id, idx, kind, title, url, date_added) VALUES (?, NULL, 0, 'folder', ?, '', ?)`,
		rootID, RootTitle, now,
	); err != nil {
		return fmt.Errorf("backend: seed root: %w", err)
	}
	for i, title := range seededChildren {
		if _, err := tx.Exec(
			`INSERT INTO nodes (id, parent_id, idx, kind, title, url, date_added) VALUES (?, ?, ?, 'folder', ?, '', ?)`,
			ulid.Make().String(), rootID, i, title, now,
		); err != nil {
			return fmt.Errorf("backend: seed %q: %w", title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("backend: seed commit: %w", err)
	}
	s.log.Info("seeded empty bookmark store", "root", rootID)
	return nil
}

// Snapshot implements Store. It holds the write mutex so the returned seq
// exactly matches the copied rows.
func (s *SQLite) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, parent_id, idx, kind, title, url, date_added FROM nodes ORDER BY parent_id, idx`)
	if err != nil {
		return nil, fmt.Errorf("backend: snapshot: %w", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("backend: snapshot: %w", err)
	}
	return &Snapshot{Seq: s.seq, Nodes: recs}, nil
}

// Create implements Store.
func (s *SQLite) Create(ctx context.Context, n NewNode) (string, uint64, error) {
	if !validKind(n.Kind) {
		return "", 0, fmt.Errorf("backend: create: invalid kind %q", n.Kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return "", 0, fmt.Errorf("backend: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	parent, err := getNode(ctx, tx, n.ParentID)
	if err != nil {
		return "", 0, fmt.Errorf("backend: create: parent: %w", err)
	}
	if parent.kind != "folder" {
		return "", 0, fmt.Errorf("backend: create: parent %s is not a folder: %w", n.ParentID, apperr.ErrNotFound)
	}
	siblings, err := childCount(ctx, tx, n.ParentID, "")
	if err != nil {
		return "", 0, fmt.Errorf("backend: create: %w", err)
	}
	idx := clamp(n.Index, siblings)
	if _, err := tx.ExecContext(ctx,
		`UPDATE nodes SET idx = idx + 1 WHERE parent_id = ? AND idx >= ?`, n.ParentID, idx); err != nil {
		return "", 0, fmt.Errorf("backend: create: shift siblings: %w", err)
	}

	added := n.DateAdded
	if added.IsZero() {
		added = time.Now().UTC()
	}
	id := ulid.Make().String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO nodes (id, parent_id, idx, kind, title, url, date_added) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, n.ParentID, idx, n.Kind, n.Title, n.URL, added.UnixMilli()); err != nil {
		return "", 0, fmt.Errorf("backend: create: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("backend: create: commit: %w", err)
	}

	rec := NodeRecord{
		ID: id, ParentID: n.ParentID, Index: idx,
		Kind: n.Kind, Title: n.Title, URL: n.URL,
		DateAdded: added.UTC().Truncate(time.Millisecond),
	}
	seq := s.nextSeq()
	s.disp.publish(Event{Seq: seq, Kind: EventCreated, ID: id, Node: &rec})
	return id, seq, nil
}

// SetTitle implements Store.
func (s *SQLite) SetTitle(ctx context.Context, id, title string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.ExecContext(ctx, `UPDATE nodes SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return 0, fmt.Errorf("backend: set title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("backend: set title: node %s: %w", id, apperr.ErrNotFound)
	}
	seq := s.nextSeq()
	s.disp.publish(Event{Seq: seq, Kind: EventChanged, ID: id, Title: &title})
	return seq, nil
}

// SetURL implements Store.
func (s *SQLite) SetURL(ctx context.Context, id, url string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.ExecContext(ctx, `UPDATE nodes SET url = ? WHERE id = ? AND kind = 'bookmark'`, url, id)
	if err != nil {
		return 0, fmt.Errorf("backend: set url: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("backend: set url: bookmark %s: %w", id, apperr.ErrNotFound)
	}
	seq := s.nextSeq()
	s.disp.publish(Event{Seq: seq, Kind: EventChanged, ID: id, URL: &url})
	return seq, nil
}

// Move implements Store. The target index is interpreted against the
// sibling list with the moving node taken out, same as the mirror applies
// it.
func (s *SQLite) Move(ctx context.Context, id, newParentID string, newIndex int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("backend: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	node, err := getNode(ctx, tx, id)
	if err != nil {
		return 0, fmt.Errorf("backend: move: %w", err)
	}
	if !node.parentID.Valid {
		return 0, fmt.Errorf("backend: move: cannot move the root folder")
	}
	newParent, err := getNode(ctx, tx, newParentID)
	if err != nil {
		return 0, fmt.Errorf("backend: move: new parent: %w", err)
	}
	if newParent.kind != "folder" {
		return 0, fmt.Errorf("backend: move: parent %s is not a folder: %w", newParentID, apperr.ErrNotFound)
	}
	cyclic, err := reachesUpward(ctx, tx, newParentID, id)
	if err != nil {
		return 0, fmt.Errorf("backend: move: %w", err)
	}
	if cyclic {
		return 0, fmt.Errorf("backend: move %s under %s: %w", id, newParentID, apperr.ErrCycle)
	}

	oldParentID := node.parentID.String
	oldIndex := node.idx
	if _, err := tx.ExecContext(ctx,
		`UPDATE nodes SET idx = idx - 1 WHERE parent_id = ? AND idx > ?`, oldParentID, oldIndex); err != nil {
		return 0, fmt.Errorf("backend: move: close gap: %w", err)
	}
	siblings, err := childCount(ctx, tx, newParentID, id)
	if err != nil {
		return 0, fmt.Errorf("backend: move: %w", err)
	}
	idx := clamp(newIndex, siblings)
	if _, err := tx.ExecContext(ctx,
		`UPDATE nodes SET idx = idx + 1 WHERE parent_id = ? AND idx >= ? AND id != ?`, newParentID, idx, id); err != nil {
		return 0, fmt.Errorf("backend: move: make room: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE nodes SET parent_id = ?, idx = ? WHERE id = ?`, newParentID, idx, id); err != nil {
		return 0, fmt.Errorf("backend: move: reposition: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("backend: move: commit: %w", err)
	}

	seq := s.nextSeq()
	s.disp.publish(Event{
		Seq: seq, Kind: EventMoved, ID: id,
		ParentID: newParentID, Index: idx,
		OldParentID: oldParentID, OldIndex: oldIndex,
	})
	return seq, nil
}

// Remove implements Store.
func (s *SQLite) Remove(ctx context.Context, id string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("backend: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	node, err := getNode(ctx, tx, id)
	if err != nil {
		return 0, fmt.Errorf("backend: remove: %w", err)
	}
	if !node.parentID.Valid {
		return 0, fmt.Errorf("backend: remove root folder: %w", apperr.ErrFolderNotEmpty)
	}
	if node.kind == "folder" {
		children, err := childCount(ctx, tx, id, "")
		if err != nil {
			return 0, fmt.Errorf("backend: remove: %w", err)
		}
		if children > 0 {
			return 0, fmt.Errorf("backend: remove %s: %w", id, apperr.ErrFolderNotEmpty)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("backend: remove: delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE nodes SET idx = idx - 1 WHERE parent_id = ? AND idx > ?`, node.parentID.String, node.idx); err != nil {
		return 0, fmt.Errorf("backend: remove: close gap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("backend: remove: commit: %w", err)
	}

	seq := s.nextSeq()
	s.disp.publish(Event{Seq: seq, Kind: EventRemoved, ID: id, ParentID: node.parentID.String, Index: node.idx})
	return seq, nil
}

// RemoveTree implements Store.
func (s *SQLite) RemoveTree(ctx context.Context, id string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("backend: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	node, err := getNode(ctx, tx, id)
	if err != nil {
		return 0, fmt.Errorf("backend: remove tree: %w", err)
	}
	if !node.parentID.Valid {
		return 0, fmt.Errorf("backend: remove root folder: %w", apperr.ErrFolderNotEmpty)
	}
	if _, err := tx.ExecContext(ctx, `
		WITH RECURSIVE sub(id) AS (
			SELECT id FROM nodes WHERE id = ?
			UNION ALL
			SELECT n.id FROM nodes n JOIN sub s ON n.parent_id = s.id
		)
		DELETE FROM nodes WHERE id IN (SELECT id FROM sub)
	`, id); err != nil {
		return 0, fmt.Errorf("backend: remove tree: delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE nodes SET idx = idx - 1 WHERE parent_id = ? AND idx > ?`, node.parentID.String, node.idx); err != nil {
		return 0, fmt.Errorf("backend: remove tree: close gap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("backend: remove tree: commit: %w", err)
	}

	seq := s.nextSeq()
	s.disp.publish(Event{Seq: seq, Kind: EventRemovedTree, ID: id, ParentID: node.parentID.String, Index: node.idx})
	return seq, nil
}

// nextSeq advances the change counter. Callers hold s.mu.
func (s *SQLite) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func validKind(k string) bool {
	return k == "bookmark" || k == "folder" || k == "separator"
}

func clamp(idx, max int) int {
	if idx < 0 {
		return 0
	}
	if idx > max {
		return max
	}
	return idx
}

type nodeRow struct {
	id        string
	parentID  sql.NullString
	idx       int
	kind      string
	title     string
	url       string
	dateAdded int64
}

func getNode(ctx context.Context, tx *sql.Tx, id string) (*nodeRow, error) {
	var r nodeRow
	err := tx.QueryRowContext(ctx,
		`SELECT id, parent_id, idx, kind, title, url, date_added FROM nodes WHERE id = ?`, id).
		Scan(&r.id, &r.parentID, &r.idx, &r.kind, &r.title, &r.url, &r.dateAdded)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("node %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// childCount counts the children of parentID, optionally excluding one id
// (the node being repositioned).
func childCount(ctx context.Context, tx *sql.Tx, parentID, exclude string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM nodes WHERE parent_id = ? AND id != ?`, parentID, exclude).Scan(&n)
	return n, err
}

// reachesUpward reports whether walking from id toward the root passes
// through (or starts at) target.
func reachesUpward(ctx context.Context, tx *sql.Tx, id, target string) (bool, error) {
	cur := id
	for cur != "" {
		if cur == target {
			return true, nil
		}
		var parent sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT parent_id FROM nodes WHERE id = ?`, cur).Scan(&parent)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !parent.Valid {
			return false, nil
		}
		cur = parent.String
	}
	return false, nil
}

func scanRecords(rows *sql.Rows) ([]NodeRecord, error) {
	defer rows.Close()
	var out []NodeRecord
	for rows.Next() {
		var r nodeRow
		if err := rows.Scan(&r.id, &r.parentID, &r.idx, &r.kind, &r.title, &r.url, &r.dateAdded); err != nil {
			return nil, err
		}
		out = append(out, NodeRecord{
			ID:        r.id,
			ParentID:  r.parentID.String,
			Index:     r.idx,
			Kind:      r.kind,
			Title:     r.title,
			URL:       r.url,
			DateAdded: time.UnixMilli(r.dateAdded).UTC(),
		})
	}
	return out, rows.Err()
}

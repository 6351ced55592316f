// Package trash keeps a log of removed bookmark subtrees so deletions can
// be inspected and restored by hand. It implements bookmarks.Recorder.
package trash

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/othala/internal/bookmarks"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS deleted_items (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT NOT NULL,
	url        TEXT NOT NULL DEFAULT '',
	origin     TEXT NOT NULL DEFAULT '',
	node_count INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	deleted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS deleted_items_by_time ON deleted_items(deleted_at DESC);
`

// Item is one removal: a single node or a whole subtree. Payload holds the
// removed nodes as JSON, root first, so the entry is self-contained even
// after the live tree has moved on.
type Item struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	NodeCount int       `json:"nodeCount"`
	Payload   string    `json:"payload"`
	DeletedAt time.Time `json:"deletedAt"`
}

// Store persists deleted items in their own SQLite database.
type Store struct {
	conn *sql.DB
	log  *slog.Logger
	now  func() time.Time
}

// Open opens or creates the deleted-items database at path.
func Open(path string, log *slog.Logger) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("trash: open %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("trash: apply schema: %w", err)
	}
	return &Store{conn: conn, log: log, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// Record implements bookmarks.Recorder. The slice arrives root first; the
// root names the entry and the whole subtree goes into the payload.
func (s *Store) Record(ctx context.Context, nodes []*bookmarks.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	root := nodes[0]
	payload, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("trash: encode payload: %w", err)
	}
	return s.Add(ctx, Item{
		Title:     root.Title,
		URL:       root.URL,
		Origin:    string(root.ParentID),
		NodeCount: len(nodes),
		Payload:   string(payload),
		DeletedAt: s.now(),
	})
}

// Add inserts one deleted item.
func (s *Store) Add(ctx context.Context, it Item) error {
	deletedAt := it.DeletedAt
	if deletedAt.IsZero() {
		deletedAt = s.now()
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO deleted_items (title, url, origin, node_count, payload, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		it.Title, it.URL, it.Origin, it.NodeCount, it.Payload, deletedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("trash: insert: %w", err)
	}
	return nil
}

// List returns the most recent deletions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, title, url, origin, node_count, payload, deleted_at
		FROM deleted_items
		ORDER BY deleted_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("trash: list: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var deletedAt int64
		if err := rows.Scan(&it.ID, &it.Title, &it.URL, &it.Origin, &it.NodeCount, &it.Payload, &deletedAt); err != nil {
			return nil, fmt.Errorf("trash: scan: %w", err)
		}
		it.DeletedAt = time.UnixMilli(deletedAt).UTC()
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trash: list: %w", err)
	}
	return items, nil
}

// Prune drops everything older than the newest keep entries. Returns how
// many rows were deleted.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.conn.ExecContext(ctx, `
		DELETE FROM deleted_items WHERE id NOT IN (
			SELECT id FROM deleted_items ORDER BY deleted_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("trash: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("trash: prune: %w", err)
	}
	if n > 0 {
		s.log.Debug("pruned deleted items", "removed", n, "kept", keep)
	}
	return n, nil
}

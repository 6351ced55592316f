//go:build !sqlite_fts5

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initSearch(_ *sql.DB) error {
	// FTS5 not compiled in; Search falls back to LIKE over title and url.
	return nil
}

// Search performs a LIKE-based substring search (fallback when FTS5 is not
// compiled in).
func (s *SQLite) Search(ctx context.Context, query string, limit int) ([]NodeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	like := "%" + escapeLike(query) + "%"
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, parent_id, idx, kind, title, url, date_added
		FROM nodes
		WHERE title LIKE ? ESCAPE '\' OR url LIKE ? ESCAPE '\'
		ORDER BY title, id
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("backend: search: %w", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("backend: search: %w", err)
	}
	return recs, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

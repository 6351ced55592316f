//go:build sqlite_fts5

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// initSearch builds the FTS5 index over titles and URLs. Triggers keep it in
// step with the nodes table so every write path, including recursive tree
// deletes, stays covered without extra bookkeeping.
func initSearch(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
			id UNINDEXED,
			title,
			url,
			tokenize = 'unicode61 remove_diacritics 2'
		);

		CREATE TRIGGER IF NOT EXISTS nodes_fts_ai AFTER INSERT ON nodes BEGIN
			INSERT INTO nodes_fts (id, title, url) VALUES (new.id, new.title, new.url);
		END;

		CREATE TRIGGER IF NOT EXISTS nodes_fts_ad AFTER DELETE ON nodes BEGIN
			DELETE FROM nodes_fts WHERE id = old.id;
		END;

		CREATE TRIGGER IF NOT EXISTS nodes_fts_au AFTER UPDATE OF title, url ON nodes BEGIN
			DELETE FROM nodes_fts WHERE id = old.id;
			INSERT INTO nodes_fts (id, title, url) VALUES (new.id, new.title, new.url);
		END;
	`)
	return err
}

// Search performs an FTS5 match over bookmark titles and URLs, best matches
// first.
func (s *SQLite) Search(ctx context.Context, query string, limit int) ([]NodeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT n.id, n.parent_id, n.idx, n.kind, n.title, n.url, n.date_added
		FROM nodes_fts f
		JOIN nodes n ON n.id = f.id
		WHERE nodes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("backend: search: %w", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("backend: search: %w", err)
	}
	return recs, nil
}

// ftsQuery turns free text into an FTS5 match expression: each term quoted
// to neutralize operator syntax, the last one prefix-matched so typing feels
// incremental.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	if len(terms) == 0 {
		return ""
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	parts[len(parts)-1] += "*"
	return strings.Join(parts, " ")
}

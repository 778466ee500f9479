// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
)

// defaultSearchLimit caps SearchSections when the caller passes no limit.
const defaultSearchLimit = 20

// SearchHit is one section matching a full-text query.
type SearchHit struct {
	FlowID    string `json:"flow_id" yaml:"flow_id"`
	FlowTitle string `json:"flow_title" yaml:"flow_title"`
	SectionID string `json:"section_id" yaml:"section_id"`
	Snippet   string `json:"snippet" yaml:"snippet"`
}

// SearchSections runs an FTS5 query over the saved section contents of a
// project. Hits are ranked by relevance.
func (s *Store) SearchSections(ctx context.Context, projectID, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.title, sec.section_id,
			snippet(sections_fts, 0, '[', ']', '...', 12)
		FROM sections_fts
		JOIN sections sec ON sec.rowid = sections_fts.rowid
		JOIN flows f ON f.id = sec.flow_id
		WHERE sections_fts MATCH ? AND f.project_id = ?
		ORDER BY sections_fts.rank
		LIMIT ?`, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("searching sections: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.FlowID, &h.FlowTitle, &h.SectionID, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/pkg/types"
)

// SaveChanges writes the parts of next that differ from base, the project
// as it was loaded. Rows another process changed since the load are left
// alone unless next changed them too, so two commands working on different
// sections of the same project both keep their results. When only section
// statuses changed, they are merged into the stored outline rather than
// replacing it.
func (s *Store) SaveChanges(ctx context.Context, base, next types.Project) error {
	if next.ID == "" {
		return errors.New("project id is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveProjectRow(ctx, tx, base, next); err != nil {
		return err
	}

	baseFlows := make(map[string]types.Flow, len(base.Flows))
	for _, f := range base.Flows {
		baseFlows[f.ID] = f
	}
	written := 0
	for _, f := range next.Flows {
		old, ok := baseFlows[f.ID]
		delete(baseFlows, f.ID)
		n, err := saveFlowChanges(ctx, tx, next.ID, old, f, ok)
		if err != nil {
			return err
		}
		written += n
	}
	for id := range baseFlows {
		if _, err := tx.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting flow %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing project: %w", err)
	}
	klog.V(4).Infof("store: saved project %s (%d rows changed, %d flows removed)", next.ID, written, len(baseFlows))
	return nil
}

func saveProjectRow(ctx context.Context, tx *sql.Tx, base, next types.Project) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, coordinator_prompt, knowledge_files, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at=excluded.updated_at`,
		next.ID, next.Name, next.CoordinatorPrompt, marshalJSON(next.KnowledgeFiles), now,
	)
	if err != nil {
		return fmt.Errorf("upserting project: %w", err)
	}

	columns := []struct {
		name     string
		old, new string
	}{
		{"name", base.Name, next.Name},
		{"coordinator_prompt", base.CoordinatorPrompt, next.CoordinatorPrompt},
		{"knowledge_files", marshalJSON(base.KnowledgeFiles), marshalJSON(next.KnowledgeFiles)},
	}
	for _, c := range columns {
		if c.old == c.new {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE projects SET `+c.name+` = ? WHERE id = ?`, c.new, next.ID); err != nil {
			return fmt.Errorf("updating project %s: %w", c.name, err)
		}
	}
	return nil
}

// saveFlowChanges writes flow f. exists reports whether base held the flow;
// a new flow is written whole.
func saveFlowChanges(ctx context.Context, tx *sql.Tx, projectID string, base, f types.Flow, exists bool) (int, error) {
	if !exists {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO flows (id, project_id, position, title, outline, outline_draft, outliner_messages)
			 VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM flows WHERE project_id = ?), ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				title=excluded.title, outline=excluded.outline,
				outline_draft=excluded.outline_draft, outliner_messages=excluded.outliner_messages`,
			f.ID, projectID, projectID, f.Title, marshalJSON(f.Outline), f.OutlineDraft, marshalJSON(f.OutlinerMessages),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting flow %s: %w", f.ID, err)
		}
		n := 1
		for id, c := range f.Contents {
			if err := upsertSection(ctx, tx, f.ID, id, c); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	}

	n := 0
	columns := []struct {
		name     string
		old, new string
	}{
		{"title", base.Title, f.Title},
		{"outline_draft", base.OutlineDraft, f.OutlineDraft},
		{"outliner_messages", marshalJSON(base.OutlinerMessages), marshalJSON(f.OutlinerMessages)},
	}
	for _, c := range columns {
		if c.old == c.new {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE flows SET `+c.name+` = ? WHERE id = ?`, c.new, f.ID); err != nil {
			return n, fmt.Errorf("updating flow %s %s: %w", f.ID, c.name, err)
		}
		n++
	}

	if marshalJSON(base.Outline) != marshalJSON(f.Outline) {
		tree, err := mergeOutline(ctx, tx, f.ID, base.Outline, f.Outline)
		if err != nil {
			return n, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE flows SET outline = ? WHERE id = ?`, marshalJSON(tree), f.ID); err != nil {
			return n, fmt.Errorf("updating outline of flow %s: %w", f.ID, err)
		}
		n++
	}

	for id, c := range f.Contents {
		if old, ok := base.Contents[id]; ok && sectionJSON(old) == sectionJSON(c) {
			continue
		}
		if err := upsertSection(ctx, tx, f.ID, id, c); err != nil {
			return n, err
		}
		n++
	}
	for id := range base.Contents {
		if _, ok := f.Contents[id]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE flow_id = ? AND section_id = ?`, f.ID, id); err != nil {
			return n, fmt.Errorf("deleting section %s/%s: %w", f.ID, id, err)
		}
		n++
	}
	return n, nil
}

// mergeOutline returns the outline to store for a flow whose tree went from
// base to next. When the shape is unchanged on both sides, only the status
// advances made in next are applied to the stored tree; otherwise next
// replaces it.
func mergeOutline(ctx context.Context, tx *sql.Tx, flowID string, base, next []types.OutlineNode) ([]types.OutlineNode, error) {
	if shape(base) != shape(next) {
		return next, nil
	}
	var raw string
	err := tx.QueryRowContext(ctx, `SELECT outline FROM flows WHERE id = ?`, flowID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return next, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading outline of flow %s: %w", flowID, err)
	}
	var stored []types.OutlineNode
	if err := unmarshalJSON(raw, &stored); err != nil {
		return nil, fmt.Errorf("decoding outline of flow %s: %w", flowID, err)
	}
	if shape(stored) != shape(base) {
		return next, nil
	}

	before := make(map[string]types.SectionStatus)
	outline.Walk(base, func(n types.OutlineNode) { before[n.ID] = n.Status })
	outline.Walk(next, func(n types.OutlineNode) {
		if before[n.ID] != n.Status {
			stored = outline.Advance(stored, n.ID, n.Status)
		}
	})
	return stored, nil
}

// shape encodes a tree's ids and titles without statuses.
func shape(tree []types.OutlineNode) string {
	var parts []string
	outline.Walk(tree, func(n types.OutlineNode) {
		parts = append(parts, n.ID+"\x00"+n.Title)
	})
	data, _ := json.Marshal(parts)
	return string(data)
}

func sectionJSON(c types.SectionContent) string {
	data, _ := json.Marshal(struct {
		Content      string
		Messages     string
		ContextIDs   string
		Research     string
		SystemPrompt string
	}{c.Content, marshalJSON(c.Messages), marshalJSON(c.ContextIDs), marshalJSON(c.ResearchResults), c.SystemPrompt})
	return string(data)
}

func upsertSection(ctx context.Context, tx *sql.Tx, flowID, id string, c types.SectionContent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sections (flow_id, section_id, content, messages, context_ids, research, system_prompt)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(flow_id, section_id) DO UPDATE SET
			content=excluded.content, messages=excluded.messages, context_ids=excluded.context_ids,
			research=excluded.research, system_prompt=excluded.system_prompt`,
		flowID, id, c.Content, marshalJSON(c.Messages), marshalJSON(c.ContextIDs),
		marshalJSON(c.ResearchResults), c.SystemPrompt,
	)
	if err != nil {
		return fmt.Errorf("writing section %s/%s: %w", flowID, id, err)
	}
	return nil
}

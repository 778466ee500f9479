// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists docflow projects in SQLite: projects, their flows,
// section contents, and the CLI session (active project, flow, and
// selection). Session files are never written.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"

	"github.com/pdiddy/docflow/pkg/types"
)

// DefaultPath is the database file used when StoreConfig.Path is empty.
const DefaultPath = ".docflow/docflow.db"

// Session keys.
const (
	KeyProject  = "project"
	KeyFlow     = "flow"
	KeySelected = "selected"
)

// timeFormat is fixed-width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound reports a project id with no stored row.
var ErrNotFound = errors.New("project not found")

// Store manages the docflow SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at cfg.Path and creates the schema if
// it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	klog.V(2).Infof("store: opened %s", path)
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			coordinator_prompt TEXT NOT NULL DEFAULT '',
			knowledge_files TEXT NOT NULL DEFAULT '[]',
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS flows (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			outline TEXT NOT NULL DEFAULT '[]',
			outline_draft TEXT NOT NULL DEFAULT '',
			outliner_messages TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flows_project_id ON flows(project_id)`,
		`CREATE TABLE IF NOT EXISTS sections (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			flow_id TEXT NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
			section_id TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			messages TEXT NOT NULL DEFAULT '[]',
			context_ids TEXT NOT NULL DEFAULT '[]',
			research TEXT NOT NULL DEFAULT '[]',
			system_prompt TEXT NOT NULL DEFAULT '',
			UNIQUE(flow_id, section_id)
		)`,
		`CREATE TABLE IF NOT EXISTS session (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 index over section content, kept in sync by triggers.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='sections_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE sections_fts USING fts5(content, content=sections, content_rowid=rowid)`,
			`CREATE TRIGGER sections_ai AFTER INSERT ON sections BEGIN
				INSERT INTO sections_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER sections_ad AFTER DELETE ON sections BEGIN
				INSERT INTO sections_fts(sections_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
			`CREATE TRIGGER sections_au AFTER UPDATE ON sections BEGIN
				INSERT INTO sections_fts(sections_fts, rowid, content) VALUES('delete', old.rowid, old.content);
				INSERT INTO sections_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}
	return nil
}

// SaveProject writes p and all its flows and sections in one transaction.
// Flows and sections that are no longer part of p are removed. Commands
// that loaded p earlier use SaveChanges instead.
func (s *Store) SaveProject(ctx context.Context, p types.Project) error {
	if p.ID == "" {
		return errors.New("project id is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, coordinator_prompt, knowledge_files, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, coordinator_prompt=excluded.coordinator_prompt,
			knowledge_files=excluded.knowledge_files, updated_at=excluded.updated_at`,
		p.ID, p.Name, p.CoordinatorPrompt, marshalJSON(p.KnowledgeFiles),
		time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("upserting project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM flows WHERE project_id = ?`, p.ID); err != nil {
		return fmt.Errorf("deleting old flows: %w", err)
	}

	flowStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO flows (id, project_id, position, title, outline, outline_draft, outliner_messages)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing flow insert: %w", err)
	}
	defer flowStmt.Close()

	sectionStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sections (flow_id, section_id, content, messages, context_ids, research, system_prompt)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing section insert: %w", err)
	}
	defer sectionStmt.Close()

	for i, f := range p.Flows {
		_, err := flowStmt.ExecContext(ctx,
			f.ID, p.ID, i, f.Title, marshalJSON(f.Outline), f.OutlineDraft, marshalJSON(f.OutlinerMessages),
		)
		if err != nil {
			return fmt.Errorf("inserting flow %s: %w", f.ID, err)
		}
		for id, c := range f.Contents {
			_, err := sectionStmt.ExecContext(ctx,
				f.ID, id, c.Content, marshalJSON(c.Messages), marshalJSON(c.ContextIDs),
				marshalJSON(c.ResearchResults), c.SystemPrompt,
			)
			if err != nil {
				return fmt.Errorf("inserting section %s/%s: %w", f.ID, id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing project: %w", err)
	}
	klog.V(4).Infof("store: saved project %s (%d flows)", p.ID, len(p.Flows))
	return nil
}

// LoadProject reads a project with its flows in creation order. Session
// files come back empty.
func (s *Store) LoadProject(ctx context.Context, id string) (types.Project, error) {
	var (
		p         types.Project
		knowledge string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, coordinator_prompt, knowledge_files FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.CoordinatorPrompt, &knowledge)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Project{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Project{}, fmt.Errorf("querying project: %w", err)
	}
	if err := unmarshalJSON(knowledge, &p.KnowledgeFiles); err != nil {
		return types.Project{}, fmt.Errorf("decoding knowledge files: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, outline, outline_draft, outliner_messages
		 FROM flows WHERE project_id = ? ORDER BY position`, id)
	if err != nil {
		return types.Project{}, fmt.Errorf("querying flows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f                 types.Flow
			tree, messagesRaw string
		)
		if err := rows.Scan(&f.ID, &f.Title, &tree, &f.OutlineDraft, &messagesRaw); err != nil {
			return types.Project{}, fmt.Errorf("scanning flow: %w", err)
		}
		if err := unmarshalJSON(tree, &f.Outline); err != nil {
			return types.Project{}, fmt.Errorf("decoding outline of flow %s: %w", f.ID, err)
		}
		if err := unmarshalJSON(messagesRaw, &f.OutlinerMessages); err != nil {
			return types.Project{}, fmt.Errorf("decoding outliner messages of flow %s: %w", f.ID, err)
		}
		p.Flows = append(p.Flows, f)
	}
	if err := rows.Err(); err != nil {
		return types.Project{}, fmt.Errorf("reading flows: %w", err)
	}

	for i := range p.Flows {
		contents, err := s.loadSections(ctx, p.Flows[i].ID)
		if err != nil {
			return types.Project{}, err
		}
		p.Flows[i].Contents = contents
	}
	return p, nil
}

func (s *Store) loadSections(ctx context.Context, flowID string) (map[string]types.SectionContent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT section_id, content, messages, context_ids, research, system_prompt
		 FROM sections WHERE flow_id = ?`, flowID)
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	contents := make(map[string]types.SectionContent)
	for rows.Next() {
		var (
			id                          string
			c                           types.SectionContent
			messages, refs, researchRaw string
		)
		if err := rows.Scan(&id, &c.Content, &messages, &refs, &researchRaw, &c.SystemPrompt); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		c.Messages = []types.Message{}
		c.ContextIDs = []string{}
		c.ResearchResults = []types.ResearchResult{}
		c.SessionFiles = []types.File{}
		if err := unmarshalJSON(messages, &c.Messages); err != nil {
			return nil, fmt.Errorf("decoding messages of section %s: %w", id, err)
		}
		if err := unmarshalJSON(refs, &c.ContextIDs); err != nil {
			return nil, fmt.Errorf("decoding references of section %s: %w", id, err)
		}
		if err := unmarshalJSON(researchRaw, &c.ResearchResults); err != nil {
			return nil, fmt.Errorf("decoding research of section %s: %w", id, err)
		}
		contents[id] = c
	}
	return contents, rows.Err()
}

// ProjectSummary is one row of ListProjects.
type ProjectSummary struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Flows     int    `json:"flows" yaml:"flows"`
	UpdatedAt string `json:"updated_at" yaml:"updated_at"`
}

// ListProjects returns every project, most recently saved first.
func (s *Store) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.updated_at, count(f.id)
		 FROM projects p LEFT JOIN flows f ON f.project_id = p.id
		 GROUP BY p.id
		 ORDER BY p.updated_at DESC, p.name`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var out []ProjectSummary
	for rows.Next() {
		var ps ProjectSummary
		if err := rows.Scan(&ps.ID, &ps.Name, &ps.UpdatedAt, &ps.Flows); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// DeleteProject removes a project and everything it owns.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// SetSession stores a session value. An empty value removes the key.
func (s *Store) SetSession(ctx context.Context, key, value string) error {
	var err error
	if value == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, key)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO session (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	}
	if err != nil {
		return fmt.Errorf("setting session %s: %w", key, err)
	}
	return nil
}

// Session returns a session value, or "" when the key is not set.
func (s *Store) Session(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading session %s: %w", key, err)
	}
	return v, nil
}

func marshalJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "[]"
	}
	return string(data)
}

func unmarshalJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

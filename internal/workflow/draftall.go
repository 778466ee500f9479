// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/pkg/types"
)

// defaultDraftConcurrency bounds DraftAll when the caller passes no limit.
const defaultDraftConcurrency = 2

// DraftSummary holds counts from a DraftAll run.
type DraftSummary struct {
	Drafted int
	Skipped int
	Failed  int
}

// Total returns the number of sections considered.
func (s DraftSummary) Total() int {
	return s.Drafted + s.Skipped + s.Failed
}

// HasFailures reports whether any section failed.
func (s DraftSummary) HasFailures() bool {
	return s.Failed > 0
}

// DraftAll writes an initial draft for every section of the active flow
// that has no content, at most limit at a time. Each result is applied on
// its own; one failure does not stop the others. Progress lines go to w.
func (e *Engine) DraftAll(ctx context.Context, limit int, w io.Writer) (DraftSummary, error) {
	e.mu.Lock()
	f, err := e.state.Active()
	e.mu.Unlock()
	if err != nil {
		return DraftSummary{}, err
	}
	if !f.Finalized() {
		return DraftSummary{}, ErrNoOutline
	}
	if limit <= 0 {
		limit = defaultDraftConcurrency
	}

	var (
		summary DraftSummary
		pending []types.OutlineNode
	)
	store := Sections(f)
	outline.Walk(f.Outline, func(n types.OutlineNode) {
		if store.Get(n.ID).HasContent() {
			summary.Skipped++
			return
		}
		pending = append(pending, n)
	})

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)
	for _, n := range pending {
		g.Go(func() error {
			content, err := e.DraftSection(ctx, n.ID, "")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Fprintf(w, "failed  %s %s: %v\n", n.ID, n.Title, err)
				summary.Failed++
				return nil
			}
			fmt.Fprintf(w, "drafted %s %s (%d bytes)\n", n.ID, n.Title, len(content))
			summary.Drafted++
			return nil
		})
	}
	_ = g.Wait()
	return summary, ctx.Err()
}

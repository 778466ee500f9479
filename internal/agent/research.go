// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/docflow/pkg/types"
)

const (
	// DefaultPlaceholderURL is used for a result with no matching citation.
	DefaultPlaceholderURL = "#"

	// DefaultSummary is used for a result with no summary line.
	DefaultSummary = "No summary available."
)

// titleLine matches a numbered list item ("1. ", "2) ") or a "Title:"
// label, optionally wrapped in emphasis or behind a bullet.
var titleLine = regexp.MustCompile(`^(?:[-*]\s+)?(?:\d+[.)]\s+|[*_]{0,2}Title[*_]{0,2}:[*_]{0,2}\s*)`)

var summaryLabel = regexp.MustCompile(`^[*_]{0,2}Summary[*_]{0,2}:[*_]{0,2}\s*`)

// ResearchDecoder turns free-text research output into results. It is a
// best-effort text pattern decomposition kept behind this one type so a
// structured output mode can replace it.
type ResearchDecoder struct {
	PlaceholderURL string
	DefaultSummary string

	// NewBatchID returns the prefix shared by every result id in one
	// decode. Defaults to a random UUID.
	NewBatchID func() string
}

// NewResearchDecoder returns a decoder with fallbacks from cfg, defaulting
// any that are unset.
func NewResearchDecoder(cfg types.ResearchConfig) ResearchDecoder {
	d := ResearchDecoder{
		PlaceholderURL: cfg.PlaceholderURL,
		DefaultSummary: cfg.DefaultSummary,
		NewBatchID:     uuid.NewString,
	}
	if d.PlaceholderURL == "" {
		d.PlaceholderURL = DefaultPlaceholderURL
	}
	if d.DefaultSummary == "" {
		d.DefaultSummary = DefaultSummary
	}
	return d
}

type candidate struct {
	title   string
	summary string
}

// Decode extracts at most types.MaxResearchResults results from text, in
// order. The n-th result takes its URL and preferred title from the n-th
// citation when one exists.
func (d ResearchDecoder) Decode(text string, citations []types.Citation) []types.ResearchResult {
	cands := extractCandidates(text)
	if len(cands) > types.MaxResearchResults {
		cands = cands[:types.MaxResearchResults]
	}
	if len(cands) == 0 {
		return []types.ResearchResult{}
	}

	newID := d.NewBatchID
	if newID == nil {
		newID = uuid.NewString
	}
	batch := newID()

	results := make([]types.ResearchResult, len(cands))
	for i, c := range cands {
		r := types.ResearchResult{
			ID:      fmt.Sprintf("%s-%d", batch, i+1),
			Title:   c.title,
			URL:     d.PlaceholderURL,
			Summary: c.summary,
		}
		if r.Summary == "" {
			r.Summary = d.DefaultSummary
		}
		if i < len(citations) {
			if u := strings.TrimSpace(citations[i].URL); u != "" {
				r.URL = u
			}
			if t := strings.TrimSpace(citations[i].Title); t != "" {
				r.Title = t
			}
		}
		results[i] = r
	}
	return results
}

func extractCandidates(text string) []candidate {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	var out []candidate
	for i := 0; i < len(lines); i++ {
		loc := titleLine.FindStringIndex(lines[i])
		if loc == nil {
			continue
		}
		c := candidate{title: stripEmphasis(lines[i][loc[1]:])}
		if c.title == "" {
			continue
		}
		if i+1 < len(lines) && !titleLine.MatchString(lines[i+1]) {
			c.summary = stripEmphasis(summaryLabel.ReplaceAllString(lines[i+1], ""))
			i++
		}
		out = append(out, c)
	}
	return out
}

func stripEmphasis(s string) string {
	s = strings.NewReplacer("**", "", "__", "").Replace(s)
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_"))
}

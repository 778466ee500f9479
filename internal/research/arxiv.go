// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/pdiddy/docflow/internal/agent"
	"github.com/pdiddy/docflow/internal/httputil"
	"github.com/pdiddy/docflow/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// arxivAbsBase prefixes an arXiv id to form the abstract page URL.
const arxivAbsBase = "https://arxiv.org/abs/"

// maxSummary caps the abstract excerpt used as a result summary.
const maxSummary = 400

// ArxivSource queries the arXiv API.
type ArxivSource struct {
	Client    *http.Client
	UserAgent string

	// Decoder supplies the result id prefix and the default summary.
	Decoder agent.ResearchDecoder
}

// Name returns the source identifier.
func (s *ArxivSource) Name() string { return string(types.ResearchArxiv) }

// Search queries arXiv for topic. The coordinator prompt is not used.
func (s *ArxivSource) Search(ctx context.Context, _ string, topic string) ([]types.ResearchResult, error) {
	q := buildArxivQuery(topic)
	if q == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}

	u := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		arxivAPIBase, q, types.MaxResearchResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	klog.V(4).Infof("arxiv: %d entries for %q", len(feed.Entries), topic)

	newID := s.Decoder.NewBatchID
	if newID == nil {
		newID = uuid.NewString
	}
	batch := newID()

	results := []types.ResearchResult{}
	for _, entry := range feed.Entries {
		if len(results) == types.MaxResearchResults {
			break
		}
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}
		r := types.ResearchResult{
			ID:      fmt.Sprintf("%s-%d", batch, len(results)+1),
			Title:   collapseSpace(entry.Title),
			URL:     arxivAbsBase + arxivID,
			Summary: excerpt(collapseSpace(entry.Summary), maxSummary),
		}
		if r.Summary == "" {
			r.Summary = s.Decoder.DefaultSummary
		}
		results = append(results, r)
	}
	return results, nil
}

// buildArxivQuery turns a free-text topic into an all-fields query.
func buildArxivQuery(topic string) string {
	terms := strings.Fields(topic)
	if len(terms) == 0 {
		return ""
	}
	for i, t := range terms {
		terms[i] = url.QueryEscape(t)
	}
	return "all:" + strings.Join(terms, "+AND+all:")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// excerpt cuts s to at most n bytes at a word boundary.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndexByte(s[:n], ' ')
	if cut <= 0 {
		cut = n
	}
	return strings.TrimSpace(s[:cut]) + "..."
}

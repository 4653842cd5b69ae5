// Package report renders audit results as text, JSON or markdown.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/steveyegge/crashaudit/internal/reconcile"
)

// Format selects an output renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatMarkdown:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json or markdown)", s)
	}
}

// CacheNotice describes the snapshot the audit ran against.
type CacheNotice struct {
	FetchedAt time.Time `json:"fetched_at"`
	Age       string    `json:"age"`
	CacheOnly bool      `json:"cache_only,omitempty"` // live fetch failed; ran from cache
}

// Report is the complete audit result handed to a renderer.
type Report struct {
	GeneratedAt     time.Time              `json:"generated_at"`
	Repository      string                 `json:"repository"` // "owner/repo", used for issue URLs
	From            string                 `json:"from,omitempty"`
	To              string                 `json:"to,omitempty"`
	TotalOpenIssues int                    `json:"total_open_issues"`
	Cache           *CacheNotice           `json:"cache,omitempty"`
	Issues          []reconcile.Classified `json:"issues"`
	Counts          reconcile.Counts       `json:"counts"`
}

// IssueURL returns the tracker URL for an issue number.
func (r *Report) IssueURL(n uint64) string {
	return fmt.Sprintf("https://github.com/%s/issues/%d", r.Repository, n)
}

// Render writes the report in the requested format.
func (r *Report) Render(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		return r.renderJSON(w)
	case FormatMarkdown:
		return r.renderMarkdown(w)
	default:
		return r.renderText(w)
	}
}

func (r *Report) renderJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// byClass returns the issues carrying one classification, in input order.
func (r *Report) byClass(c reconcile.Classification) []reconcile.Classified {
	var out []reconcile.Classified
	for _, issue := range r.Issues {
		if issue.Classification == c {
			out = append(out, issue)
		}
	}
	return out
}

// percent avoids division by zero for empty reports.
func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// shortSHA truncates a commit identifier for display.
func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

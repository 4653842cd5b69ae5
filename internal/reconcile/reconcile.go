// Package reconcile joins crash test deletion history against the live
// open-issue set and classifies each affected issue.
//
// Everything here is a pure function of its inputs: no repository, no
// network, no clock. That keeps the decision rule testable in isolation
// from the scanners and clients that feed it.
package reconcile

import (
	"sort"

	"github.com/steveyegge/crashaudit/internal/crashfile"
	"github.com/steveyegge/crashaudit/internal/gitscan"
)

// Classification is the audit verdict for one issue.
type Classification int

const (
	// Synced: every crash test for the issue was deleted and the issue is
	// closed. This is the expected lifecycle.
	Synced Classification = iota

	// OutOfSync: every crash test for the issue was deleted, yet the issue
	// is still open. The primary defect this tool exists to find.
	OutOfSync

	// PartiallyCleaned: some crash tests for the issue remain in the
	// working tree. Informational, not a defect: the issue should still
	// be open while any reproduction remains.
	PartiallyCleaned
)

func (c Classification) String() string {
	switch c {
	case Synced:
		return "synced"
	case OutOfSync:
		return "out-of-sync"
	case PartiallyCleaned:
		return "partially-cleaned"
	default:
		return "unknown"
	}
}

// MarshalText makes classifications render as their names in JSON reports.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// IssueGroup aggregates everything observed for one issue: its deletion
// records and the crash test files for it still present in the working
// tree. Deleted and Remaining are disjoint.
type IssueGroup struct {
	IssueNumber uint64                   `json:"issue_number"`
	Deleted     []gitscan.DeletionRecord `json:"deleted"`
	Remaining   []string                 `json:"remaining,omitempty"`
}

// Classified pairs an IssueGroup with its verdict.
type Classified struct {
	IssueGroup
	Classification Classification `json:"classification"`
}

// GroupDeletions buckets deletion records by issue number and attaches the
// crash test files still present for each of those issues.
//
// A file that was deleted and later re-added counts as remaining, not
// deleted: presence in the current working tree wins over any deletion
// event inside the scan window. Groups are ordered by issue number;
// deletions within a group newest first.
func GroupDeletions(records []gitscan.DeletionRecord, currentFiles []string, m crashfile.Matcher) []IssueGroup {
	present := make(map[string]struct{}, len(currentFiles))
	currentByIssue := make(map[uint64][]string)
	for _, f := range currentFiles {
		present[f] = struct{}{}
		if n, ok := m.IssueNumber(f); ok {
			currentByIssue[n] = append(currentByIssue[n], f)
		}
	}

	byIssue := make(map[uint64][]gitscan.DeletionRecord)
	for _, r := range records {
		if _, reAdded := present[r.FilePath]; reAdded {
			continue
		}
		byIssue[r.IssueNumber] = append(byIssue[r.IssueNumber], r)
	}

	numbers := make([]uint64, 0, len(byIssue))
	for n := range byIssue {
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	groups := make([]IssueGroup, 0, len(numbers))
	for _, n := range numbers {
		deleted := byIssue[n]
		gitscan.SortRecords(deleted)
		remaining := append([]string(nil), currentByIssue[n]...)
		sort.Strings(remaining)
		groups = append(groups, IssueGroup{
			IssueNumber: n,
			Deleted:     deleted,
			Remaining:   remaining,
		})
	}
	return groups
}

// Reconcile classifies every group against the open-issue set. The rule,
// in order of precedence:
//
//  1. Any remaining file -> PartiallyCleaned, even when the issue is open:
//     a partially-deleted issue is expected to be open and is not drift.
//  2. Issue in the open set -> OutOfSync.
//  3. Otherwise -> Synced.
//
// Exactly one classification per group; the three buckets partition the
// input. Neither argument is mutated.
func Reconcile(groups []IssueGroup, open map[uint64]struct{}) []Classified {
	out := make([]Classified, 0, len(groups))
	for _, g := range groups {
		c := Synced
		switch {
		case len(g.Remaining) > 0:
			c = PartiallyCleaned
		default:
			if _, isOpen := open[g.IssueNumber]; isOpen {
				c = OutOfSync
			}
		}
		out = append(out, Classified{IssueGroup: g, Classification: c})
	}
	return out
}

// Counts tallies classifications for summaries and the exit code.
type Counts struct {
	Synced           int `json:"synced"`
	OutOfSync        int `json:"out_of_sync"`
	PartiallyCleaned int `json:"partially_cleaned"`
}

// Total returns the number of classified issues.
func (c Counts) Total() int {
	return c.Synced + c.OutOfSync + c.PartiallyCleaned
}

// Tally counts each classification bucket.
func Tally(classified []Classified) Counts {
	var counts Counts
	for _, c := range classified {
		switch c.Classification {
		case OutOfSync:
			counts.OutOfSync++
		case PartiallyCleaned:
			counts.PartiallyCleaned++
		default:
			counts.Synced++
		}
	}
	return counts
}

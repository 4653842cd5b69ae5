package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/crashaudit/internal/crashfile"
	"github.com/steveyegge/crashaudit/internal/gitscan"
)

func record(issue uint64, path, sha string, day int) gitscan.DeletionRecord {
	return gitscan.DeletionRecord{
		FilePath:    path,
		IssueNumber: issue,
		CommitSHA:   sha,
		CommitDate:  time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC),
	}
}

func TestGroupDeletions(t *testing.T) {
	m := crashfile.NewMatcher("")
	records := []gitscan.DeletionRecord{
		record(100, "tests/crashes/100.rs", "c1", 1),
		record(200, "tests/crashes/200-1.rs", "c2", 2),
	}
	current := []string{"tests/crashes/200-2.rs", "tests/crashes/999.rs"}

	groups := GroupDeletions(records, current, m)
	require.Len(t, groups, 2, "one group per issue with deletions")

	assert.Equal(t, uint64(100), groups[0].IssueNumber)
	assert.Len(t, groups[0].Deleted, 1)
	assert.Empty(t, groups[0].Remaining)

	assert.Equal(t, uint64(200), groups[1].IssueNumber)
	assert.Equal(t, []string{"tests/crashes/200-2.rs"}, groups[1].Remaining)

	// Issue 999 has no deletions, so it forms no group.
	for _, g := range groups {
		assert.NotEqual(t, uint64(999), g.IssueNumber)
	}
}

func TestGroupDeletionsMultiFileIssue(t *testing.T) {
	m := crashfile.NewMatcher("")
	records := []gitscan.DeletionRecord{
		record(300, "tests/crashes/300-1.rs", "c1", 1),
		record(300, "tests/crashes/300-2.rs", "c2", 5),
	}

	groups := GroupDeletions(records, nil, m)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Deleted, 2)
	// Newest deletion first within a group.
	assert.Equal(t, "tests/crashes/300-2.rs", groups[0].Deleted[0].FilePath)
}

func TestGroupDeletionsReAddedFileCountsAsRemaining(t *testing.T) {
	m := crashfile.NewMatcher("")
	records := []gitscan.DeletionRecord{
		record(400, "tests/crashes/400-1.rs", "c1", 1), // later re-added
		record(400, "tests/crashes/400-2.rs", "c2", 2),
	}
	current := []string{"tests/crashes/400-1.rs"}

	groups := GroupDeletions(records, current, m)
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, []string{"tests/crashes/400-1.rs"}, g.Remaining)
	require.Len(t, g.Deleted, 1)
	assert.Equal(t, "tests/crashes/400-2.rs", g.Deleted[0].FilePath)

	// Deleted and Remaining stay disjoint.
	for _, d := range g.Deleted {
		assert.NotContains(t, g.Remaining, d.FilePath)
	}
}

func TestGroupDeletionsAllReAddedFormsNoGroup(t *testing.T) {
	m := crashfile.NewMatcher("")
	records := []gitscan.DeletionRecord{
		record(500, "tests/crashes/500.rs", "c1", 1),
	}
	groups := GroupDeletions(records, []string{"tests/crashes/500.rs"}, m)
	assert.Empty(t, groups, "an issue whose files are all back in the tree is not reported")
}

func TestReconcileRule(t *testing.T) {
	groups := []IssueGroup{
		{IssueNumber: 100}, // closed, fully deleted
		{IssueNumber: 200, Remaining: []string{"tests/crashes/200-2.rs"}}, // open, partially deleted
		{IssueNumber: 300}, // open, fully deleted
	}
	open := map[uint64]struct{}{200: {}, 300: {}}

	classified := Reconcile(groups, open)
	require.Len(t, classified, 3)
	assert.Equal(t, Synced, classified[0].Classification)
	assert.Equal(t, PartiallyCleaned, classified[1].Classification)
	assert.Equal(t, OutOfSync, classified[2].Classification)
}

func TestReconcilePartialPrecedesOpen(t *testing.T) {
	// A group with remaining files is PartiallyCleaned even when its issue
	// is open and even when it is absent from the open set.
	withRemaining := IssueGroup{IssueNumber: 42, Remaining: []string{"tests/crashes/42-2.rs"}}

	open := Reconcile([]IssueGroup{withRemaining}, map[uint64]struct{}{42: {}})
	assert.Equal(t, PartiallyCleaned, open[0].Classification)

	closed := Reconcile([]IssueGroup{withRemaining}, map[uint64]struct{}{})
	assert.Equal(t, PartiallyCleaned, closed[0].Classification)
}

func TestReconcileTotality(t *testing.T) {
	var groups []IssueGroup
	for n := uint64(1); n <= 50; n++ {
		g := IssueGroup{IssueNumber: n}
		if n%3 == 0 {
			g.Remaining = []string{"tests/crashes/x.rs"}
		}
		groups = append(groups, g)
	}
	open := map[uint64]struct{}{}
	for n := uint64(1); n <= 50; n += 2 {
		open[n] = struct{}{}
	}

	classified := Reconcile(groups, open)
	require.Len(t, classified, len(groups), "exactly one verdict per group")

	counts := Tally(classified)
	assert.Equal(t, len(groups), counts.Total(), "buckets partition the input")
}

func TestReconcileEmptyInputs(t *testing.T) {
	assert.Empty(t, Reconcile(nil, nil))
	classified := Reconcile([]IssueGroup{{IssueNumber: 1}}, nil)
	require.Len(t, classified, 1)
	assert.Equal(t, Synced, classified[0].Classification)
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "synced", Synced.String())
	assert.Equal(t, "out-of-sync", OutOfSync.String())
	assert.Equal(t, "partially-cleaned", PartiallyCleaned.String())
}

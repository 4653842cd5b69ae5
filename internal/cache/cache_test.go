package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open_issues.json")
	open := map[uint64]struct{}{
		300: {}, 100: {}, 200: {},
	}
	fetchedAt := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)

	require.NoError(t, Save(path, open, fetchedAt))

	snap := Load(path)
	require.NotNil(t, snap)
	assert.True(t, snap.FetchedAt.Equal(fetchedAt))
	assert.Equal(t, 3, snap.IssueCount)
	assert.Equal(t, open, snap.Set())
}

func TestSaveWritesSortedAscending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open_issues.json")
	open := map[uint64]struct{}{5: {}, 1: {}, 9: {}, 3: {}}

	require.NoError(t, Save(path, open, time.Now()))

	snap := Load(path)
	require.NotNil(t, snap)
	assert.Equal(t, []uint64{1, 3, 5, 9}, snap.IssueNumbers)
}

func TestLoadToleratesUnsortedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open_issues.json")
	doc := `{"fetchedAt":"2026-08-01T00:00:00Z","issueCount":3,"issueNumbers":[9,1,5]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	snap := Load(path)
	require.NotNil(t, snap)
	assert.Equal(t, map[uint64]struct{}{1: {}, 5: {}, 9: {}}, snap.Set())
}

func TestLoadMissingIsMiss(t *testing.T) {
	assert.Nil(t, Load(filepath.Join(t.TempDir(), "nope.json")))
}

func TestLoadCorruptIsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open_issues.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"fetchedAt": "2026-`), 0o644))
	assert.Nil(t, Load(path))
}

func TestInterruptedWriteLeavesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "open_issues.json")
	require.NoError(t, Save(path, map[uint64]struct{}{42: {}}, time.Now()))

	// Simulate a crash mid-write: a partial temp file next to the real
	// snapshot, never renamed into place.
	require.NoError(t, os.WriteFile(path+".tmp.123", []byte(`{"fetchedAt":`), 0o644))

	snap := Load(path)
	require.NotNil(t, snap, "previous snapshot must stay readable")
	assert.Equal(t, []uint64{42}, snap.IssueNumbers)
}

func TestSnapshotAge(t *testing.T) {
	snap := &Snapshot{FetchedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
	now := snap.FetchedAt.Add(90 * time.Minute)
	assert.Equal(t, 90*time.Minute, snap.Age(now))

	// Clock skew never yields a negative age.
	assert.Equal(t, time.Duration(0), snap.Age(snap.FetchedAt.Add(-time.Hour)))
}

func TestCacheFileShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "open_issues.json")
	require.NoError(t, Save(path, map[uint64]struct{}{7: {}}, time.Now()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	for _, key := range []string{"fetchedAt", "issueCount", "issueNumbers"} {
		assert.Contains(t, doc, key)
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1 * time.Second, "1 second"},
		{30 * time.Second, "30 seconds"},
		{90 * time.Second, "1 minute"},
		{2 * time.Minute, "2 minutes"},
		{time.Hour, "1 hour"},
		{2 * time.Hour, "2 hours"},
		{24 * time.Hour, "1 day"},
		{48 * time.Hour, "2 days"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAge(tt.d), "FormatAge(%v)", tt.d)
	}
}

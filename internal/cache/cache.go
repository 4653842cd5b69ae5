// Package cache persists the open-issue snapshot between runs.
//
// The snapshot is a single JSON document. It is immutable once written:
// a refresh replaces the whole file atomically (temp file + rename), so
// an interrupted write can never corrupt the previous snapshot. Staleness
// is never acted on automatically; the caller surfaces the snapshot age
// and the user decides when to refresh.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/steveyegge/crashaudit/internal/debug"
)

// Default location, relative to the working directory.
const (
	DefaultDir  = ".cache"
	DefaultFile = "open_issues.json"
)

// DefaultPath returns the default snapshot path.
func DefaultPath() string {
	return filepath.Join(DefaultDir, DefaultFile)
}

// Snapshot is a point-in-time set of open issue numbers.
//
// IssueCount is informational and redundant with len(IssueNumbers); it
// makes the file self-describing for humans. IssueNumbers is written
// sorted ascending for diff-friendliness but tolerated in any order on
// read.
type Snapshot struct {
	FetchedAt    time.Time `json:"fetchedAt"`
	IssueCount   int       `json:"issueCount"`
	IssueNumbers []uint64  `json:"issueNumbers"`
}

// Set converts the snapshot to a set for O(1) membership checks.
func (s *Snapshot) Set() map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(s.IssueNumbers))
	for _, n := range s.IssueNumbers {
		set[n] = struct{}{}
	}
	return set
}

// Age returns how long ago the snapshot was fetched.
func (s *Snapshot) Age(now time.Time) time.Duration {
	age := now.Sub(s.FetchedAt)
	if age < 0 {
		return 0
	}
	return age
}

// Load reads the snapshot at path. A missing, unreadable or corrupt file
// is a cache miss, not an error: it returns nil and the caller falls
// through to a live fetch. Corruption is reported as a warning so the
// user knows a refresh happened for a reason.
func Load(path string) *Snapshot {
	data, err := os.ReadFile(path) // #nosec G304 -- cache path from config/flags
	if err != nil {
		if !os.IsNotExist(err) {
			debug.Warnf("unreadable cache file %s: %v (treating as cache miss)\n", path, err)
		}
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		debug.Warnf("corrupt cache file %s: %v (treating as cache miss)\n", path, err)
		return nil
	}
	return &snap
}

// Save atomically writes a snapshot of the given open-issue set, replacing
// any previous snapshot only once the new file is fully on disk.
func Save(path string, open map[uint64]struct{}, fetchedAt time.Time) error {
	numbers := make([]uint64, 0, len(open))
	for n := range open {
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

	snap := Snapshot{
		FetchedAt:    fetchedAt.UTC(),
		IssueCount:   len(numbers),
		IssueNumbers: numbers,
	}
	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	// Temp file in the same directory so the rename is atomic.
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath) // no-op after a successful rename
	}()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

// FormatAge renders a duration the way the cache notice shows it:
// the largest whole unit, singular or plural.
func FormatAge(d time.Duration) string {
	secs := int64(d.Seconds())
	switch {
	case secs < 60:
		return plural(secs, "second")
	case secs < 3600:
		return plural(secs/60, "minute")
	case secs < 86400:
		return plural(secs/3600, "hour")
	default:
		return plural(secs/86400, "day")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

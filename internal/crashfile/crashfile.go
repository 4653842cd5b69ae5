// Package crashfile maps crash test file paths to tracker issue numbers.
//
// Crash tests live under tests/crashes/ and are named after the issue they
// reproduce: "tests/crashes/12345.rs" or, when one issue needs several
// reproductions, "tests/crashes/12345-2.rs". The mapping is purely lexical;
// nothing here checks that an issue actually exists.
package crashfile

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultDir is the repository-relative directory holding crash tests.
const DefaultDir = "tests/crashes"

// Matcher recognizes crash test paths under a configured directory.
// The zero value is not usable; construct with NewMatcher.
type Matcher struct {
	dir string // normalized, no trailing separator
}

// NewMatcher returns a Matcher rooted at dir (repository-relative,
// slash-separated). An empty dir falls back to DefaultDir.
func NewMatcher(dir string) Matcher {
	if dir == "" {
		dir = DefaultDir
	}
	return Matcher{dir: strings.TrimSuffix(filepath.ToSlash(dir), "/")}
}

// Dir returns the crash test directory this matcher is rooted at.
func (m Matcher) Dir() string {
	return m.dir
}

// IssueNumber extracts the issue number from a repository-relative path.
// The second return value is false when the path is not a crash test:
// outside the crash directory, wrong extension, or a non-numeric stem.
// Most paths fed to this function do not match, so the rejection path
// allocates nothing.
func (m Matcher) IssueNumber(p string) (uint64, bool) {
	p = filepath.ToSlash(p)
	rest, ok := strings.CutPrefix(p, m.dir+"/")
	if !ok {
		return 0, false
	}
	// Files directly in the crash directory only; subdirectories are
	// other test suites.
	if strings.Contains(rest, "/") {
		return 0, false
	}
	return StemIssueNumber(rest)
}

// StemIssueNumber extracts the issue number from a bare filename.
// Accepted forms: "<digits>.rs" and "<digits>-<variant>.rs".
func StemIssueNumber(name string) (uint64, bool) {
	stem, ok := strings.CutSuffix(name, ".rs")
	if !ok || stem == "" {
		return 0, false
	}
	if n, err := strconv.ParseUint(stem, 10, 64); err == nil {
		return n, true
	}
	// Multi-file issues use a "-<variant>" suffix: 12345-2.rs, 12345-foo.rs.
	head, _, found := strings.Cut(stem, "-")
	if !found || head == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(head, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ListCurrent enumerates the crash test files present in the working tree
// under repoRoot. Returned paths are repository-relative and sorted. A
// missing crash directory is not an error: it yields an empty list, since
// a repository may legitimately have removed the whole suite.
func (m Matcher) ListCurrent(repoRoot string) ([]string, error) {
	dir := filepath.Join(repoRoot, filepath.FromSlash(m.dir))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading crash test directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := StemIssueNumber(e.Name()); ok {
			files = append(files, path.Join(m.dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

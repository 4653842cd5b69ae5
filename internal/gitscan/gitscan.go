// Package gitscan walks a repository's first-parent history and reports
// crash test files deleted along the way.
//
// The scan shells out to git rather than linking a git library: the target
// repositories are large (rust-lang/rust has well over 200k commits on its
// main branch) and git's own pathspec-limited log walk is the only way to
// avoid computing full-tree diffs per commit. Output is consumed as a
// stream so the walk can be abandoned as soon as it steps past the lower
// date bound.
package gitscan

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/crashaudit/internal/crashfile"
	"github.com/steveyegge/crashaudit/internal/debug"
)

// Sentinel errors for unusable repositories.
var (
	// ErrRepositoryNotFound indicates the target path is not a git repository.
	ErrRepositoryNotFound = errors.New("not a git repository")

	// ErrNoCommits indicates the first-parent ancestry is empty, either
	// because the repository has no commits or because the date window
	// excludes all of them.
	ErrNoCommits = errors.New("no commits in scan range")
)

// DeletionRecord is one crash test file removed by one commit.
type DeletionRecord struct {
	FilePath    string    `json:"file_path"`
	IssueNumber uint64    `json:"issue_number"`
	CommitSHA   string    `json:"commit_sha"`
	CommitDate  time.Time `json:"commit_date"`
	PRNumber    uint64    `json:"pr_number,omitempty"` // 0 when the deleting commit is not a bors merge
}

// Options configures a history scan.
type Options struct {
	RepoPath string            // path to the repository working tree
	Matcher  crashfile.Matcher // recognizes crash test paths
	From     *time.Time        // inclusive lower bound (UTC date), nil = unbounded
	To       *time.Time        // inclusive upper bound (UTC date), nil = unbounded

	// Progress, when non-nil, is invoked periodically with the number of
	// deletion commits processed so far.
	Progress func(commits int)
}

// Scanner runs git history scans. Construct with NewScanner.
type Scanner struct {
	gitPath string
}

// NewScanner locates the git executable.
func NewScanner() (*Scanner, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}
	return &Scanner{gitPath: gitPath}, nil
}

// progressInterval controls how often Options.Progress fires.
const progressInterval = 1000

// ScanDeleted returns every crash test deletion reachable from HEAD along
// first-parent ancestry, newest first, optionally restricted to the
// [From, To] commit-date window. The result is deduplicated: one record
// per (file, deleting commit).
//
// Commit dates are assumed non-increasing along first-parent order; the
// walk stops at the first commit older than From. History rewrites that
// violate the assumption under-count older deletions, which is accepted.
func (s *Scanner) ScanDeleted(ctx context.Context, opts Options) ([]DeletionRecord, error) {
	if err := s.checkRepository(ctx, opts.RepoPath); err != nil {
		return nil, err
	}
	if err := s.probeAncestry(ctx, opts); err != nil {
		return nil, err
	}
	return s.walkDeletions(ctx, opts)
}

// Record layout emitted by git log: commits are separated by \x1e, header
// fields by \x1f. The subject line is enough for bors PR extraction.
const logFormat = "%x1e%H%x1f%ct%x1f%s"

// walkDeletions runs the pathspec-limited log walk and parses its output
// incrementally.
func (s *Scanner) walkDeletions(ctx context.Context, opts Options) ([]DeletionRecord, error) {
	// A child context lets us stop git mid-walk once the date window is
	// exhausted without cancelling the caller.
	walkCtx, stopWalk := context.WithCancel(ctx)
	defer stopWalk()

	// #nosec G204 -- repo path and crash dir come from validated CLI input
	cmd := exec.CommandContext(walkCtx, s.gitPath,
		"-C", opts.RepoPath,
		"log", "--first-parent",
		"--diff-filter=DR", "--name-status",
		"--format="+logFormat,
		"--", opts.Matcher.Dir())
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("git log pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting git log: %w", err)
	}

	var records []DeletionRecord
	seen := map[string]struct{}{}
	commits := 0
	stopped := false // set when we cancel the walk at the window edge

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	scanner.Split(splitRecords)

	for scanner.Scan() {
		chunk := scanner.Bytes()
		if len(bytes.TrimSpace(chunk)) == 0 {
			continue
		}
		commit, entries, ok := parseCommitRecord(chunk)
		if !ok {
			debug.Warnf("skipping unreadable commit record in git log output\n")
			continue
		}

		day := dayOf(commit.date)
		if opts.From != nil && day.Before(dayOf(*opts.From)) {
			// Past the lower bound; everything older is out of window.
			stopped = true
			stopWalk()
			break
		}
		if opts.To != nil && day.After(dayOf(*opts.To)) {
			continue
		}

		commits++
		if opts.Progress != nil && commits%progressInterval == 0 {
			opts.Progress(commits)
		}

		prNumber, _ := crashfile.PRNumber(commit.subject)
		for _, oldPath := range entries {
			issue, ok := opts.Matcher.IssueNumber(oldPath)
			if !ok {
				continue
			}
			key := commit.sha + "\x00" + oldPath
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			records = append(records, DeletionRecord{
				FilePath:    oldPath,
				IssueNumber: issue,
				CommitSHA:   commit.sha,
				CommitDate:  commit.date,
				PRNumber:    prNumber,
			})
		}
	}
	if err := scanner.Err(); err != nil && !stopped {
		_ = cmd.Wait()
		return nil, fmt.Errorf("reading git log output: %w", err)
	}

	if err := cmd.Wait(); err != nil && !stopped {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("git log failed: %w", err)
	}
	return records, nil
}

// commitHeader is the parsed %H/%ct/%s triple of one log record.
type commitHeader struct {
	sha     string
	date    time.Time
	subject string
}

// parseCommitRecord parses one \x1e-delimited log record into its header
// and the old paths of its D/R name-status entries.
func parseCommitRecord(chunk []byte) (commitHeader, []string, bool) {
	header, rest, _ := bytes.Cut(chunk, []byte{'\n'})
	fields := strings.SplitN(string(header), "\x1f", 3)
	if len(fields) != 3 {
		return commitHeader{}, nil, false
	}
	epoch, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return commitHeader{}, nil, false
	}
	hdr := commitHeader{
		sha:     fields[0],
		date:    time.Unix(epoch, 0).UTC(),
		subject: fields[2],
	}

	var oldPaths []string
	for _, line := range strings.Split(string(rest), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		status, paths, found := strings.Cut(line, "\t")
		if !found {
			continue
		}
		switch {
		case status == "D":
			oldPaths = append(oldPaths, paths)
		case strings.HasPrefix(status, "R"):
			// R<score>\told\tnew: the file left its old path; only the
			// old path matters for deletion accounting.
			oldPath, _, ok := strings.Cut(paths, "\t")
			if ok {
				oldPaths = append(oldPaths, oldPath)
			}
		}
	}
	return hdr, oldPaths, true
}

// splitRecords is a bufio.SplitFunc yielding \x1e-delimited log records.
func splitRecords(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0x1e); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// checkRepository verifies the path is a readable git repository.
func (s *Scanner) checkRepository(ctx context.Context, repoPath string) error {
	if info, err := os.Stat(repoPath); err != nil || !info.IsDir() {
		return fmt.Errorf("%s: %w", repoPath, ErrRepositoryNotFound)
	}
	cmd := exec.CommandContext(ctx, s.gitPath, "-C", repoPath, "rev-parse", "--git-dir")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if strings.Contains(stderr.String(), "not a git repository") {
			return fmt.Errorf("%s: %w", repoPath, ErrRepositoryNotFound)
		}
		return fmt.Errorf("validating repository %s: %v: %w", repoPath, err, ErrRepositoryNotFound)
	}
	return nil
}

// probeAncestry fails with ErrNoCommits when first-parent ancestry has no
// commit inside the date window (or the repository has no commits at all).
func (s *Scanner) probeAncestry(ctx context.Context, opts Options) error {
	args := []string{"-C", opts.RepoPath, "log", "--first-parent", "-1", "--format=%H"}
	if opts.From != nil {
		args = append(args, "--since="+dayOf(*opts.From).Format(time.RFC3339))
	}
	if opts.To != nil {
		until := dayOf(*opts.To).Add(24*time.Hour - time.Second) // inclusive day bound
		args = append(args, "--until="+until.Format(time.RFC3339))
	}
	cmd := exec.CommandContext(ctx, s.gitPath, args...)
	out, err := cmd.Output()
	if err != nil {
		// A repository initialized but never committed to fails here.
		return fmt.Errorf("%s: %w", opts.RepoPath, ErrNoCommits)
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return fmt.Errorf("%s: empty ancestry in scan window: %w", opts.RepoPath, ErrNoCommits)
	}
	return nil
}

// dayOf truncates a timestamp to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SortRecords orders records newest-first, then by path, for stable output.
func SortRecords(records []DeletionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CommitDate.Equal(records[j].CommitDate) {
			return records[i].CommitDate.After(records[j].CommitDate)
		}
		if records[i].CommitSHA != records[j].CommitSHA {
			return records[i].CommitSHA < records[j].CommitSHA
		}
		return records[i].FilePath < records[j].FilePath
	})
}

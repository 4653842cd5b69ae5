package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/crashaudit/internal/cache"
	"github.com/steveyegge/crashaudit/internal/config"
	"github.com/steveyegge/crashaudit/internal/crashfile"
	"github.com/steveyegge/crashaudit/internal/debug"
	"github.com/steveyegge/crashaudit/internal/github"
	"github.com/steveyegge/crashaudit/internal/gitscan"
	"github.com/steveyegge/crashaudit/internal/reconcile"
	"github.com/steveyegge/crashaudit/internal/report"
	"github.com/steveyegge/crashaudit/internal/telemetry"
)

// auditParams carries everything one audit run needs. The GitHub client and
// clock are injected so tests can point the pipeline at a local server and a
// fixed time.
type auditParams struct {
	RepoPath  string
	Cfg       *config.Config
	From      *time.Time
	To        *time.Time
	Refresh   bool
	Client    *github.Client
	CachePath string
	Now       func() time.Time
}

// runAudit executes the full pipeline: scan history for deleted crash tests,
// resolve the open-issue set (cache or live fetch), reconcile, and assemble
// the report. Fatal errors are prefixed with the failing stage.
func runAudit(ctx context.Context, p auditParams) (*report.Report, error) {
	inst := telemetry.NewAuditInstruments()
	matcher := crashfile.NewMatcher(p.Cfg.CrashDir)

	scanCtx, scanDone := inst.Stage(ctx, "scan")
	records, err := scanHistory(scanCtx, p, matcher)
	scanDone(err)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	inst.RecordScan(ctx, len(records))

	current, err := matcher.ListCurrent(p.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	fetchCtx, fetchDone := inst.Stage(ctx, "fetch")
	open, notice, err := resolveOpenIssues(fetchCtx, p)
	fetchDone(err)
	if err != nil {
		return nil, err
	}
	inst.RecordOpenIssues(ctx, len(open), notice != nil)

	_, recDone := inst.Stage(ctx, "reconcile")
	groups := reconcile.GroupDeletions(records, current, matcher)
	classified := reconcile.Reconcile(groups, open)
	counts := reconcile.Tally(classified)
	recDone(nil)
	inst.RecordDrift(ctx, counts.OutOfSync+counts.PartiallyCleaned)

	rep := &report.Report{
		GeneratedAt:     p.Now(),
		Repository:      p.Cfg.Slug(),
		TotalOpenIssues: len(open),
		Cache:           notice,
		Issues:          classified,
		Counts:          counts,
	}
	if p.From != nil {
		rep.From = p.From.Format("2006-01-02")
	}
	if p.To != nil {
		rep.To = p.To.Format("2006-01-02")
	}
	return rep, nil
}

func scanHistory(ctx context.Context, p auditParams, matcher crashfile.Matcher) ([]gitscan.DeletionRecord, error) {
	scanner, err := gitscan.NewScanner()
	if err != nil {
		return nil, err
	}
	return scanner.ScanDeleted(ctx, gitscan.Options{
		RepoPath: p.RepoPath,
		Matcher:  matcher,
		From:     p.From,
		To:       p.To,
		Progress: func(commits int) {
			debug.Logf("processed %d deletion commits...\n", commits)
		},
	})
}

// resolveOpenIssues returns the open-issue set the reconciler runs against.
//
// An existing snapshot is used as-is regardless of age unless --refresh-cache
// was given; staleness is the user's call, surfaced via the cache notice in
// the report. When a forced or cache-miss fetch fails permanently (auth or
// rate limit) and a snapshot exists, the run degrades to cache-only mode with
// a visible warning instead of aborting.
func resolveOpenIssues(ctx context.Context, p auditParams) (map[uint64]struct{}, *report.CacheNotice, error) {
	now := p.Now()

	if !p.Refresh {
		if snap := cache.Load(p.CachePath); snap != nil {
			notice := &report.CacheNotice{
				FetchedAt: snap.FetchedAt,
				Age:       cache.FormatAge(snap.Age(now)),
			}
			return snap.Set(), notice, nil
		}
	}

	open, err := p.Client.FetchOpenIssueNumbers(ctx)
	if err != nil {
		if errors.Is(err, github.ErrRateLimited) || errors.Is(err, github.ErrAuth) {
			if snap := cache.Load(p.CachePath); snap != nil {
				age := cache.FormatAge(snap.Age(now))
				debug.Warnf("live fetch failed (%v); using cached snapshot from %s ago\n", err, age)
				notice := &report.CacheNotice{
					FetchedAt: snap.FetchedAt,
					Age:       age,
					CacheOnly: true,
				}
				return snap.Set(), notice, nil
			}
		}
		return nil, nil, fmt.Errorf("fetch: %w", err)
	}

	if err := cache.Save(p.CachePath, open, now); err != nil {
		// A broken cache only costs the next run a re-fetch.
		debug.Warnf("failed to save issue cache: %v\n", err)
	}
	return open, nil, nil
}

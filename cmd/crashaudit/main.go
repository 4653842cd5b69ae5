package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/steveyegge/crashaudit/internal/config"
	"github.com/steveyegge/crashaudit/internal/debug"
	"github.com/steveyegge/crashaudit/internal/github"
	"github.com/steveyegge/crashaudit/internal/reconcile"
	"github.com/steveyegge/crashaudit/internal/report"
	"github.com/steveyegge/crashaudit/internal/telemetry"
)

var (
	fromFlag      string
	toFlag        string
	refreshCache  bool
	tokenFlag     string
	formatFlag    string
	verboseFlag   bool
	quietFlag     bool
	ownerFlag     string
	repoFlag      string
	crashDirFlag  string
	cachePathFlag string
)

// Exit codes. Drift is advisory; operational failures get a distinct code so
// CI can tell "issues need attention" apart from "the audit itself broke".
const (
	exitOK          = 0
	exitDrift       = 1
	exitOperational = 2
)

// exitCode is set by the root command and applied in main after Execute.
var exitCode = exitOK

// exitCodeFor maps reconciliation counts to a process exit code. Partially
// cleaned issues are informational while a repro remains, so only fully
// deleted tests on open issues raise the advisory code.
func exitCodeFor(counts reconcile.Counts) int {
	if counts.OutOfSync > 0 {
		return exitDrift
	}
	return exitOK
}

var rootCmd = &cobra.Command{
	Use:   "crashaudit [repo-path]",
	Short: "Reconcile the crash test corpus with open tracker issues",
	Long: `crashaudit walks a repository's history for deleted crash regression
tests, fetches the tracker's open issues, and reports issues whose tests were
removed while the issue is still open (or removed only partially).`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath := "."
		if len(args) == 1 {
			repoPath = args[0]
		}
		return runRoot(cmd.Context(), repoPath)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&fromFlag, "from", "", "Only consider deletions on or after this date (YYYY-MM-DD)")
	f.StringVar(&toFlag, "to", "", "Only consider deletions on or before this date (YYYY-MM-DD)")
	f.BoolVar(&refreshCache, "refresh-cache", false, "Re-fetch open issues even when a cached snapshot exists")
	f.StringVar(&tokenFlag, "github-token", "", "GitHub API token (defaults to $GITHUB_TOKEN; unauthenticated if unset)")
	f.StringVar(&formatFlag, "format", "", "Report format: text, json, or markdown")
	f.StringVar(&ownerFlag, "owner", "", "Tracker repository owner (overrides config)")
	f.StringVar(&repoFlag, "repo", "", "Tracker repository name (overrides config)")
	f.StringVar(&crashDirFlag, "crash-dir", "", "Crash test directory relative to the repo root (overrides config)")
	f.StringVar(&cachePathFlag, "cache-path", "", "Open-issue snapshot location (overrides config)")

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
}

// newEnv builds the environment-variable view used for settings that may not
// appear on the command line. The token deliberately also honors the bare
// GITHUB_TOKEN name that CI systems already export.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CRASHAUDIT")
	v.AutomaticEnv()
	_ = v.BindEnv("github-token", "CRASHAUDIT_GITHUB_TOKEN", "GITHUB_TOKEN")
	return v
}

func resolveToken(v *viper.Viper) string {
	if tokenFlag != "" {
		return tokenFlag
	}
	return v.GetString("github-token")
}

// parseDateFlag parses an inclusive ISO date bound. Empty means unbounded.
func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s date %q (want YYYY-MM-DD)", name, value)
	}
	return &t, nil
}

func runRoot(ctx context.Context, repoPath string) error {
	cfg := config.LoadWithEnv(repoPath)
	if ownerFlag != "" {
		cfg.Owner = ownerFlag
	}
	if repoFlag != "" {
		cfg.Repo = repoFlag
	}
	if crashDirFlag != "" {
		cfg.CrashDir = crashDirFlag
	}
	if cachePathFlag != "" {
		cfg.CachePath = cachePathFlag
	}

	formatName := formatFlag
	if formatName == "" {
		formatName = cfg.Format
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	from, err := parseDateFlag("from", fromFlag)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", toFlag)
	if err != nil {
		return err
	}
	if from != nil && to != nil && from.After(*to) {
		return fmt.Errorf("--from %s is after --to %s", fromFlag, toFlag)
	}

	if err := telemetry.Init(ctx, "crashaudit", Version); err != nil {
		debug.Warnf("telemetry disabled: %v\n", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	token := resolveToken(newEnv())
	if token == "" {
		debug.Logf("no GitHub token configured; using the unauthenticated API quota\n")
	}
	client := github.NewClient(token, cfg.Owner, cfg.Repo)

	cachePath := cfg.CachePath
	if !filepath.IsAbs(cachePath) {
		cachePath = filepath.Join(repoPath, cachePath)
	}

	rep, err := runAudit(ctx, auditParams{
		RepoPath:  repoPath,
		Cfg:       cfg,
		From:      from,
		To:        to,
		Refresh:   refreshCache,
		Client:    client,
		CachePath: cachePath,
		Now:       time.Now,
	})
	if err != nil {
		return err
	}

	if format == report.FormatText && rep.Cache == nil {
		debug.PrintNormal("Fetched %d open issues from %s\n\n", rep.TotalOpenIssues, cfg.Slug())
	}

	if err := rep.Render(os.Stdout, format); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	// Machine formats keep stdout clean, so surface the advisory on stderr
	// where CI logs will show it next to the exit code.
	if format != report.FormatText && !debug.IsQuiet() && rep.Counts.OutOfSync > 0 {
		fmt.Fprintf(os.Stderr, "%d out-of-sync issue(s) found\n", rep.Counts.OutOfSync)
	}
	exitCode = exitCodeFor(rep.Counts)
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(exitOperational)
	}
	cancel()
	os.Exit(exitCode)
}

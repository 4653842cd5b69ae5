package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/steveyegge/crashaudit/internal/reconcile"
	"github.com/steveyegge/crashaudit/internal/ui"
)

const rule = "─────────────────────────────────────────────────"

func (r *Report) renderText(w io.Writer) error {
	var b strings.Builder

	if r.Cache != nil {
		notice := fmt.Sprintf("Open-issue cache last updated %s ago (%s)",
			r.Cache.Age, r.Cache.FetchedAt.Format("2006-01-02 15:04 MST"))
		if r.Cache.CacheOnly {
			notice += " — live fetch unavailable, results may be stale"
			b.WriteString(ui.WarnStyle.Render(notice))
		} else {
			b.WriteString(ui.MutedStyle.Render(notice))
		}
		b.WriteString("\n")
		b.WriteString(ui.MutedStyle.Render("Use --refresh-cache to update"))
		b.WriteString("\n\n")
	}

	outOfSync := r.byClass(reconcile.OutOfSync)
	partial := r.byClass(reconcile.PartiallyCleaned)

	if len(outOfSync) > 0 {
		b.WriteString(ui.HeaderStyle.Render("Out-of-sync issues (crash test deleted, issue still open)"))
		b.WriteString("\n\n")
		for _, issue := range outOfSync {
			for _, d := range issue.Deleted {
				line := fmt.Sprintf("  %s Issue #%d: %s deleted in %s (%s)",
					ui.IconWarn, issue.IssueNumber, d.FilePath,
					shortSHA(d.CommitSHA), d.CommitDate.Format("2006-01-02"))
				if d.PRNumber != 0 {
					line += fmt.Sprintf(" via PR #%d", d.PRNumber)
				}
				b.WriteString(ui.FailStyle.Render(line))
				b.WriteString("\n")
			}
			b.WriteString(ui.AccentStyle.Render("    " + r.IssueURL(issue.IssueNumber)))
			b.WriteString("\n\n")
		}
	}

	if len(partial) > 0 {
		b.WriteString(ui.HeaderStyle.Render("Partially cleaned issues (some crash tests remain)"))
		b.WriteString("\n\n")
		for _, issue := range partial {
			b.WriteString(fmt.Sprintf("  %s Issue #%d: %d deleted, %d remaining (%s)\n",
				ui.IconInfo, issue.IssueNumber, len(issue.Deleted), len(issue.Remaining),
				strings.Join(issue.Remaining, ", ")))
		}
		b.WriteString("\n")
	}

	total := r.Counts.Total()
	b.WriteString(rule + "\n")
	b.WriteString("Summary:\n")
	if r.From != "" || r.To != "" {
		from, to := r.From, r.To
		if from == "" {
			from = "beginning"
		}
		if to == "" {
			to = "present"
		}
		b.WriteString(fmt.Sprintf("  Scan window: %s to %s\n", from, to))
	}
	b.WriteString(fmt.Sprintf("  Issues with deleted crash tests: %d\n", total))
	b.WriteString(fmt.Sprintf("  Open issues in %s: %d\n", r.Repository, r.TotalOpenIssues))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s %d out of sync (%.1f%%)\n",
		ui.IconWarn, r.Counts.OutOfSync, percent(r.Counts.OutOfSync, total)))
	b.WriteString(fmt.Sprintf("  %s %d properly synced (%.1f%%)\n",
		ui.IconPass, r.Counts.Synced, percent(r.Counts.Synced, total)))
	b.WriteString(fmt.Sprintf("  %s %d partially cleaned (%.1f%%)\n",
		ui.IconInfo, r.Counts.PartiallyCleaned, percent(r.Counts.PartiallyCleaned, total)))
	b.WriteString(rule + "\n")

	if r.Counts.OutOfSync == 0 {
		b.WriteString("\n")
		b.WriteString(ui.PassStyle.Render(ui.IconPass + " All deleted crash tests have properly closed issues."))
		b.WriteString("\n")
	} else {
		b.WriteString("\n")
		b.WriteString(ui.FailStyle.Render(fmt.Sprintf(
			"%s Found %d out-of-sync issue(s) that need attention.", ui.IconWarn, r.Counts.OutOfSync)))
		b.WriteString("\n\nEach out-of-sync issue should either:\n")
		b.WriteString("  1. have its crash test restored (if it was removed by mistake), or\n")
		b.WriteString("  2. be closed (if the underlying bug is actually fixed).\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

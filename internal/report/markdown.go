package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/steveyegge/crashaudit/internal/reconcile"
)

func (r *Report) renderMarkdown(w io.Writer) error {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Crash test audit: %s\n\n", r.Repository))
	b.WriteString(fmt.Sprintf("Generated %s.\n", r.GeneratedAt.Format("2006-01-02 15:04 MST")))
	if r.Cache != nil {
		b.WriteString(fmt.Sprintf("Open-issue data fetched %s ago", r.Cache.Age))
		if r.Cache.CacheOnly {
			b.WriteString(" (live fetch unavailable, cache-only run)")
		}
		b.WriteString(".\n")
	}
	b.WriteString("\n")

	outOfSync := r.byClass(reconcile.OutOfSync)
	if len(outOfSync) > 0 {
		b.WriteString("## Out-of-sync issues\n\n")
		b.WriteString("Crash test deleted while the issue is still open.\n\n")
		b.WriteString("| Issue | File | Deleted in | Date | PR |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, issue := range outOfSync {
			for _, d := range issue.Deleted {
				pr := "—"
				if d.PRNumber != 0 {
					pr = fmt.Sprintf("#%d", d.PRNumber)
				}
				b.WriteString(fmt.Sprintf("| [#%d](%s) | `%s` | `%s` | %s | %s |\n",
					issue.IssueNumber, r.IssueURL(issue.IssueNumber), d.FilePath,
					shortSHA(d.CommitSHA), d.CommitDate.Format("2006-01-02"), pr))
			}
		}
		b.WriteString("\n")
	}

	partial := r.byClass(reconcile.PartiallyCleaned)
	if len(partial) > 0 {
		b.WriteString("## Partially cleaned issues\n\n")
		b.WriteString("Some, but not all, crash tests for these issues were removed; the issue is expected to stay open.\n\n")
		for _, issue := range partial {
			b.WriteString(fmt.Sprintf("- [#%d](%s): %d deleted, remaining: %s\n",
				issue.IssueNumber, r.IssueURL(issue.IssueNumber),
				len(issue.Deleted), codeList(issue.Remaining)))
		}
		b.WriteString("\n")
	}

	total := r.Counts.Total()
	b.WriteString("## Summary\n\n")
	b.WriteString(fmt.Sprintf("- Issues with deleted crash tests: **%d**\n", total))
	b.WriteString(fmt.Sprintf("- Open issues in %s: %d\n", r.Repository, r.TotalOpenIssues))
	b.WriteString(fmt.Sprintf("- Out of sync: **%d** (%.1f%%)\n", r.Counts.OutOfSync, percent(r.Counts.OutOfSync, total)))
	b.WriteString(fmt.Sprintf("- Properly synced: %d (%.1f%%)\n", r.Counts.Synced, percent(r.Counts.Synced, total)))
	b.WriteString(fmt.Sprintf("- Partially cleaned: %d (%.1f%%)\n", r.Counts.PartiallyCleaned, percent(r.Counts.PartiallyCleaned, total)))

	_, err := io.WriteString(w, b.String())
	return err
}

func codeList(files []string) string {
	quoted := make([]string, len(files))
	for i, f := range files {
		quoted[i] = "`" + f + "`"
	}
	return strings.Join(quoted, ", ")
}

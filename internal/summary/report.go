package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/chilltask/internal/store"
)

var categoryHeadings = map[string]string{
	CategoryReadyForTesting: "✅ *Ready for Testing:*",
	CategoryInProgress:      "🔨 *In Progress:*",
	CategoryBlocked:         "🚧 *Blocked:*",
	CategoryBacklog:         "📋 *Backlog:*",
}

// FormatReport renders the delta as a Slack mrkdwn status report.
func FormatReport(repoKey string, d Delta, now time.Time) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("📊 *%s* - Issue Status Report", repoKey))
	lines = append(lines, fmt.Sprintf("_%s_\n", now.Format("3:04 PM MST")))

	for _, key := range categoryOrder {
		cd := d.Categories[key]
		lines = append(lines, fmt.Sprintf("%s %d issues (%s)", categoryHeadings[key], cd.Count, formatDelta(cd.Delta)))
	}

	if highlights := formatHighlights(d); highlights != "" {
		lines = append(lines, "", highlights)
	}
	return strings.Join(lines, "\n")
}

// formatHighlights lists issues newly ready for testing, the ones the
// report exists to surface.
func formatHighlights(d Delta) string {
	ready := d.Categories[CategoryReadyForTesting]
	items := append(append([]store.SnapshotItem{}, ready.New...), ready.Moved...)
	if len(items) == 0 || d.FirstRun {
		return ""
	}

	var b strings.Builder
	b.WriteString("*Newly ready for testing:*")
	for _, item := range items {
		fmt.Fprintf(&b, "\n• <%s|#%d> %s", item.URL, item.Number, item.Title)
	}
	return b.String()
}

func formatDelta(n int) string {
	switch {
	case n > 0:
		return fmt.Sprintf("+%d", n)
	case n < 0:
		return fmt.Sprintf("%d", n)
	default:
		return "no change"
	}
}

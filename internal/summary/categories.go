// Package summary categorizes a repository's open issues by label,
// diffs the result against the previously stored snapshot, and renders
// the change as a chat status report.
package summary

import (
	"strings"

	"github.com/chilltask/internal/github"
	"github.com/chilltask/internal/store"
)

// Category keys as stored in snapshot records. Stable identifiers, not
// display strings.
const (
	CategoryReadyForTesting = "readyForTesting"
	CategoryInProgress      = "inProgress"
	CategoryBlocked         = "blocked"
	CategoryBacklog         = "backlog"
)

// Categorize buckets issues by label. Labels are matched by substring
// on their lowercased names so variants like "status:blocked" and
// "Ready for Testing" all land in the right bucket. Priority when
// multiple match: blocked > ready-for-testing > in-progress > backlog.
func Categorize(issues []github.Issue) map[string][]store.SnapshotItem {
	categories := map[string][]store.SnapshotItem{
		CategoryReadyForTesting: {},
		CategoryInProgress:      {},
		CategoryBlocked:         {},
		CategoryBacklog:         {},
	}

	for _, issue := range issues {
		item := store.SnapshotItem{Number: issue.Number, Title: issue.Title, URL: issue.URL}
		key := categoryFor(issue.LabelNames())
		categories[key] = append(categories[key], item)
	}
	return categories
}

func categoryFor(labels []string) string {
	var blocked, ready, inProgress bool
	for _, label := range labels {
		l := strings.ToLower(label)
		if strings.Contains(l, "blocked") && !strings.Contains(l, "unblocked") {
			blocked = true
		}
		if strings.Contains(l, "ready") && strings.Contains(l, "test") {
			ready = true
		}
		if strings.Contains(l, "in-progress") || strings.Contains(l, "in progress") {
			inProgress = true
		}
	}

	switch {
	case blocked:
		return CategoryBlocked
	case ready:
		return CategoryReadyForTesting
	case inProgress:
		return CategoryInProgress
	default:
		return CategoryBacklog
	}
}

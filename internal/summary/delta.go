package summary

import "github.com/chilltask/internal/store"

// CategoryDelta describes how one category changed between two
// snapshot generations.
type CategoryDelta struct {
	Count int
	Delta int

	// New holds issues that were not in any category last time.
	New []store.SnapshotItem

	// Moved holds issues that entered this category from a different
	// one. Only tracked for ready-for-testing, the category people
	// act on.
	Moved []store.SnapshotItem
}

// Delta is the full between-snapshots diff for one repository.
type Delta struct {
	Categories map[string]CategoryDelta
	FirstRun   bool
}

// ComputeDelta diffs the current categorization against the previous
// snapshot. A nil previous means first run: every count is reported as
// a gain from zero and every issue as new.
func ComputeDelta(current map[string][]store.SnapshotItem, previous map[string][]store.SnapshotItem) Delta {
	if previous == nil {
		d := Delta{Categories: map[string]CategoryDelta{}, FirstRun: true}
		for _, key := range categoryOrder {
			items := current[key]
			d.Categories[key] = CategoryDelta{Count: len(items), Delta: len(items), New: items}
		}
		return d
	}

	prevIDs := map[string]map[int]bool{}
	allPrev := map[int]bool{}
	for _, key := range categoryOrder {
		ids := map[int]bool{}
		for _, item := range previous[key] {
			ids[item.Number] = true
			allPrev[item.Number] = true
		}
		prevIDs[key] = ids
	}

	d := Delta{Categories: map[string]CategoryDelta{}}
	for _, key := range categoryOrder {
		items := current[key]
		cd := CategoryDelta{Count: len(items), Delta: len(items) - len(previous[key])}
		for _, item := range items {
			if !allPrev[item.Number] {
				cd.New = append(cd.New, item)
			} else if key == CategoryReadyForTesting && !prevIDs[key][item.Number] {
				cd.Moved = append(cd.Moved, item)
			}
		}
		d.Categories[key] = cd
	}
	return d
}

// categoryOrder is the display order of the report.
var categoryOrder = []string{
	CategoryReadyForTesting,
	CategoryInProgress,
	CategoryBlocked,
	CategoryBacklog,
}

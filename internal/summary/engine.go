package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chilltask/internal/github"
	"github.com/chilltask/internal/store"
)

// IssueLister is the slice of the repo host client the engine needs.
type IssueLister interface {
	ListOpenIssues(ctx context.Context, owner, repo string) ([]github.Issue, error)
}

// Engine computes issue status reports and advances the stored
// snapshot. Snapshots hold at most one record per repository key:
// each run deletes the previous generation before writing the new one,
// and self-heals if earlier crashes left several behind.
type Engine struct {
	issues    IssueLister
	snapshots store.SnapshotStore
	now       func() time.Time
}

// NewEngine creates an Engine. nowFn may be nil, defaulting to
// time.Now.
func NewEngine(issues IssueLister, snapshots store.SnapshotStore, nowFn func() time.Time) *Engine {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Engine{issues: issues, snapshots: snapshots, now: nowFn}
}

// Report is the outcome of one engine run for one repository.
type Report struct {
	RepoKey string
	Delta   Delta
	Message string
}

// Run fetches the repository's open issues, categorizes them, diffs
// against the stored snapshot, and replaces it. The snapshot only
// advances after a successful fetch; a repo-host failure leaves the
// previous generation in place so the next run reports the full
// accumulated change.
func (e *Engine) Run(ctx context.Context, owner, repo string) (Report, error) {
	repoKey := owner + "/" + repo

	issues, err := e.issues.ListOpenIssues(ctx, owner, repo)
	if err != nil {
		return Report{}, fmt.Errorf("list open issues for %s: %w", repoKey, err)
	}
	current := Categorize(issues)

	previous, stale, err := e.loadPrevious(ctx, repoKey)
	if err != nil {
		return Report{}, err
	}

	var prevCategories map[string][]store.SnapshotItem
	if previous != nil {
		prevCategories = previous.Categories
	}
	delta := ComputeDelta(current, prevCategories)

	// Delete-then-create keeps the one-snapshot-per-repo invariant
	// even if the create below fails: the next run just sees a first
	// run again instead of two competing generations.
	for _, id := range stale {
		if err := e.snapshots.DeleteSnapshot(ctx, id); err != nil {
			return Report{}, fmt.Errorf("delete stale snapshot %d: %w", id, err)
		}
	}
	if previous != nil {
		if err := e.snapshots.DeleteSnapshot(ctx, previous.ID); err != nil {
			return Report{}, fmt.Errorf("delete previous snapshot %d: %w", previous.ID, err)
		}
	}
	if err := e.snapshots.CreateSnapshot(ctx, store.SnapshotRecord{
		RepoKey:    repoKey,
		TakenAt:    e.now().UTC(),
		Categories: current,
	}); err != nil {
		return Report{}, fmt.Errorf("create snapshot for %s: %w", repoKey, err)
	}

	return Report{
		RepoKey: repoKey,
		Delta:   delta,
		Message: FormatReport(repoKey, delta, e.now()),
	}, nil
}

// loadPrevious returns the newest snapshot for the repo plus the ids
// of any older duplicates that need clearing.
func (e *Engine) loadPrevious(ctx context.Context, repoKey string) (*store.SnapshotRecord, []int64, error) {
	records, err := e.snapshots.ListSnapshots(ctx, repoKey)
	if err != nil {
		return nil, nil, fmt.Errorf("list snapshots for %s: %w", repoKey, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	newest := records[0]
	var stale []int64
	for _, rec := range records[1:] {
		stale = append(stale, rec.ID)
	}
	if len(stale) > 0 {
		log.Warn().Str("repo", repoKey).Int("extra", len(stale)).Msg("multiple snapshots found, keeping newest")
	}
	return &newest, stale, nil
}

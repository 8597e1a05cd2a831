package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotRecord is the persisted categorization of a repository's
// open issues as of the last report run. At most one record should
// exist per repository key; the delta engine enforces that with
// delete-before-create.
type SnapshotRecord struct {
	ID         int64
	RepoKey    string
	TakenAt    time.Time
	Categories map[string][]SnapshotItem
}

// SnapshotItem is one tracked issue inside a snapshot category.
type SnapshotItem struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// SnapshotStore is the subset of the store the delta engine needs.
// Split out so engine tests can run against a fake.
type SnapshotStore interface {
	ListSnapshots(ctx context.Context, repoKey string) ([]SnapshotRecord, error)
	CreateSnapshot(ctx context.Context, rec SnapshotRecord) error
	DeleteSnapshot(ctx context.Context, id int64) error
}

// ListSnapshots returns all snapshot records for a repository key,
// newest first.
func (s *Store) ListSnapshots(ctx context.Context, repoKey string) ([]SnapshotRecord, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, repo_key, taken_at, categories
        FROM issue_snapshots
        WHERE repo_key = $1
        ORDER BY taken_at DESC
    `, repoKey)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var rec SnapshotRecord
		var categories []byte
		if err := rows.Scan(&rec.ID, &rec.RepoKey, &rec.TakenAt, &categories); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal(categories, &rec.Categories); err != nil {
			return nil, fmt.Errorf("decode snapshot categories: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateSnapshot persists a new snapshot record.
func (s *Store) CreateSnapshot(ctx context.Context, rec SnapshotRecord) error {
	categories, err := json.Marshal(rec.Categories)
	if err != nil {
		return fmt.Errorf("encode snapshot categories: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
        INSERT INTO issue_snapshots (repo_key, taken_at, categories)
        VALUES ($1, $2, $3)
    `, rec.RepoKey, rec.TakenAt, categories)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	return nil
}

// DeleteSnapshot removes a snapshot record by id.
func (s *Store) DeleteSnapshot(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM issue_snapshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	return nil
}

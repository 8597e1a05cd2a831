package store

import (
	"context"
	"fmt"
	"time"
)

// ChannelMapping links a Slack channel to the repository, branch and
// folder its conversations are archived into. Mappings are managed by
// the admin surface; the core only reads them and bumps the sync
// counters after successful writes.
type ChannelMapping struct {
	ID           int64
	ChannelID    string
	RepoOwner    string
	RepoName     string
	Branch       string
	TargetFolder string
	Active       bool
	MessageCount int64
	LastSyncedAt *time.Time
}

// RepoKey returns the owner/name key used by the snapshot store.
func (m ChannelMapping) RepoKey() string {
	return m.RepoOwner + "/" + m.RepoName
}

// ListActiveByChannel returns the active mappings for a channel.
func (s *Store) ListActiveByChannel(ctx context.Context, channelID string) ([]ChannelMapping, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, channel_id, repo_owner, repo_name, branch, target_folder, active, message_count, last_synced_at
        FROM channel_mappings
        WHERE channel_id = $1 AND active = true
        ORDER BY id
    `, channelID)
	if err != nil {
		return nil, fmt.Errorf("list channel mappings: %w", err)
	}
	defer rows.Close()

	var out []ChannelMapping
	for rows.Next() {
		var m ChannelMapping
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.RepoOwner, &m.RepoName, &m.Branch, &m.TargetFolder, &m.Active, &m.MessageCount, &m.LastSyncedAt); err != nil {
			return nil, fmt.Errorf("scan channel mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListActive returns every active mapping, for the scheduled report run.
func (s *Store) ListActive(ctx context.Context) ([]ChannelMapping, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, channel_id, repo_owner, repo_name, branch, target_folder, active, message_count, last_synced_at
        FROM channel_mappings
        WHERE active = true
        ORDER BY id
    `)
	if err != nil {
		return nil, fmt.Errorf("list active mappings: %w", err)
	}
	defer rows.Close()

	var out []ChannelMapping
	for rows.Next() {
		var m ChannelMapping
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.RepoOwner, &m.RepoName, &m.Branch, &m.TargetFolder, &m.Active, &m.MessageCount, &m.LastSyncedAt); err != nil {
			return nil, fmt.Errorf("scan channel mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordSync bumps the mapping's message counter and last-sync time
// after a successful archive write.
func (s *Store) RecordSync(ctx context.Context, mappingID int64, messages int64) error {
	_, err := s.pool.Exec(ctx, `
        UPDATE channel_mappings
        SET message_count = message_count + $1, last_synced_at = now()
        WHERE id = $2
    `, messages, mappingID)
	if err != nil {
		return fmt.Errorf("record sync for mapping %d: %w", mappingID, err)
	}
	return nil
}

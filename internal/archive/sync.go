// Package archive performs idempotent create-or-append writes of
// conversation transcripts into a target repository. Duplicate
// delivery of the same thread is a no-op because the filename embeds
// the thread key; concurrent appends to the same day-file are guarded
// by the repo host's version token.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/chilltask/internal/github"
	"github.com/chilltask/internal/slack"
	"github.com/chilltask/internal/store"
)

// Outcome reports what a sync call did to the target file.
type Outcome int

const (
	Created Outcome = iota
	Skipped
	Appended
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Skipped:
		return "skipped"
	case Appended:
		return "appended"
	}
	return "unknown"
}

// Mode selects the policy when the target file already exists.
type Mode int

const (
	// ModeSkip is for batch thread archiving: the filename already
	// encodes the thread key, so presence means this exact thread was
	// archived before.
	ModeSkip Mode = iota

	// ModeAppend is for live single-message archiving where several
	// messages land in the same day-file.
	ModeAppend
)

// appendSeparator joins appended entries inside a day-file.
const appendSeparator = "\n---\n\n"

// ContentStore is the slice of the repo host the syncer writes through.
type ContentStore interface {
	GetFile(ctx context.Context, owner, repo, path, branch string) (*github.RepositoryFile, error)
	PutFile(ctx context.Context, owner, repo string, file github.RepositoryFile, message string) error
}

// MappingStore records successful sync activity on the channel mapping.
type MappingStore interface {
	RecordSync(ctx context.Context, mappingID int64, messages int64) error
}

// SyncRequest describes one file write.
type SyncRequest struct {
	Owner         string
	Repo          string
	Branch        string
	Path          string
	Content       string
	CommitMessage string
	Mode          Mode
}

// Syncer writes transcripts into repositories.
type Syncer struct {
	contents ContentStore
	mappings MappingStore
}

// NewSyncer creates a Syncer.
func NewSyncer(contents ContentStore, mappings MappingStore) *Syncer {
	return &Syncer{contents: contents, mappings: mappings}
}

// SyncFile performs one idempotent create-or-append write. Calling it
// twice with identical input leaves the repository unchanged after the
// first success (skip mode) or converges to content carrying each
// distinct entry exactly once (append mode). Read failures other than
// not-found, and all write failures, propagate to the caller's retry
// orchestrator instead of being swallowed here.
func (s *Syncer) SyncFile(ctx context.Context, req SyncRequest) (Outcome, error) {
	existing, err := s.contents.GetFile(ctx, req.Owner, req.Repo, req.Path, req.Branch)
	if err != nil {
		return Skipped, fmt.Errorf("read %s@%s: %w", req.Path, req.Branch, err)
	}

	if existing == nil {
		file := github.RepositoryFile{Path: req.Path, Branch: req.Branch, Content: req.Content}
		if err := s.contents.PutFile(ctx, req.Owner, req.Repo, file, req.CommitMessage); err != nil {
			return Skipped, fmt.Errorf("create %s@%s: %w", req.Path, req.Branch, err)
		}
		return Created, nil
	}

	if req.Mode == ModeSkip {
		log.Debug().Str("path", req.Path).Msg("file exists, thread already archived")
		return Skipped, nil
	}

	// Already contains this exact entry: re-delivery of a message we
	// appended earlier.
	if strings.Contains(existing.Content, req.Content) {
		return Skipped, nil
	}

	merged := strings.TrimRight(existing.Content, "\n") + appendSeparator + req.Content
	file := github.RepositoryFile{Path: req.Path, Branch: req.Branch, SHA: existing.SHA, Content: merged}
	if err := s.contents.PutFile(ctx, req.Owner, req.Repo, file, req.CommitMessage); err != nil {
		// A version-token mismatch lands here as a retryable conflict.
		return Skipped, fmt.Errorf("append %s@%s: %w", req.Path, req.Branch, err)
	}
	return Appended, nil
}

// BatchResult summarizes an ArchiveThreads run.
type BatchResult struct {
	Created int
	Skipped int
	Failed  int
}

// ArchiveThreads archives every thread in the batch into the mapped
// repository, one file per thread, skip mode. One thread's failure is
// counted and logged, never propagated to its siblings.
func (s *Syncer) ArchiveThreads(ctx context.Context, mapping store.ChannelMapping, threads map[string][]slack.Message, names map[string]string) BatchResult {
	var result BatchResult
	var archived int64

	for _, key := range slack.SortedThreadKeys(threads) {
		thread := threads[key]
		doc := slack.FormatThread(thread, names)
		if doc == "" {
			continue
		}

		outcome, err := s.SyncFile(ctx, SyncRequest{
			Owner:         mapping.RepoOwner,
			Repo:          mapping.RepoName,
			Branch:        mapping.Branch,
			Path:          slack.FileName(mapping.TargetFolder, thread),
			Content:       doc,
			CommitMessage: fmt.Sprintf("Archive thread %s from %s", key, mapping.ChannelID),
			Mode:          ModeSkip,
		})
		if err != nil {
			result.Failed++
			log.Error().Str("thread", key).Str("channel", mapping.ChannelID).Err(err).Msg("thread archive failed")
			continue
		}

		switch outcome {
		case Created:
			result.Created++
			archived += int64(len(thread))
		case Skipped:
			result.Skipped++
		}
	}

	if archived > 0 {
		if err := s.mappings.RecordSync(ctx, mapping.ID, archived); err != nil {
			log.Warn().Int64("mapping", mapping.ID).Err(err).Msg("failed to record sync counters")
		}
	}
	return result
}

// ArchiveMessage appends one live message to the channel's day-file.
func (s *Syncer) ArchiveMessage(ctx context.Context, mapping store.ChannelMapping, msg slack.Message, names map[string]string) (Outcome, error) {
	doc := slack.FormatThread([]slack.Message{msg}, names)
	outcome, err := s.SyncFile(ctx, SyncRequest{
		Owner:         mapping.RepoOwner,
		Repo:          mapping.RepoName,
		Branch:        mapping.Branch,
		Path:          DayFileName(mapping.TargetFolder, msg),
		Content:       doc,
		CommitMessage: fmt.Sprintf("Archive message %s from %s", msg.Ts, mapping.ChannelID),
		Mode:          ModeAppend,
	})
	if err != nil {
		return outcome, err
	}

	if outcome != Skipped {
		if err := s.mappings.RecordSync(ctx, mapping.ID, 1); err != nil {
			log.Warn().Int64("mapping", mapping.ID).Err(err).Msg("failed to record sync counters")
		}
	}
	return outcome, nil
}

// DayFileName is the live-archiving path: one file per channel per day.
func DayFileName(folder string, msg slack.Message) string {
	return path.Join(folder, slack.DateOf(msg)+".md")
}

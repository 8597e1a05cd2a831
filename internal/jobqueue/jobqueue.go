/*
Package jobqueue provides the River-based job queue behind the webhook
fast-ack path: handlers persist the raw event and enqueue a job, and
the workers here do the slow archive and report work asynchronously.

For configuration options and tuning parameters, see queue_config.go.
*/
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/chilltask/internal/archive"
	"github.com/chilltask/internal/faults"
	"github.com/chilltask/internal/slack"
	"github.com/chilltask/internal/store"
	"github.com/chilltask/internal/summary"
)

// ArchiveEventJobArgs points a worker at a persisted inbound chat
// event. The payload itself stays in the buffer table so the job row
// remains small.
type ArchiveEventJobArgs struct {
	EventID string `json:"event_id"`
}

// Kind returns the job kind for River.
func (ArchiveEventJobArgs) Kind() string {
	return "archive_event"
}

// IssueReportJobArgs triggers one scheduled issue status report run
// across all mapped repositories.
type IssueReportJobArgs struct{}

// Kind returns the job kind for River.
func (IssueReportJobArgs) Kind() string {
	return "issue_report"
}

// ChannelSyncJobArgs triggers a history backfill of one channel, used
// after repository pushes that may have altered archived files.
type ChannelSyncJobArgs struct {
	ChannelID string `json:"channel_id"`
}

// Kind returns the job kind for River.
func (ChannelSyncJobArgs) Kind() string {
	return "channel_sync"
}

// ArchiveEventWorker archives one live chat message into every
// repository mapped to its channel.
type ArchiveEventWorker struct {
	river.WorkerDefaults[ArchiveEventJobArgs]
	store  *store.Store
	chat   *slack.Client
	syncer *archive.Syncer
	config *QueueConfig
}

// Timeout bounds a single archive run.
func (w *ArchiveEventWorker) Timeout(*river.Job[ArchiveEventJobArgs]) time.Duration {
	return w.config.JobTimeout
}

// Work loads the persisted event, archives the message for each active
// mapping, and clears the buffer row. Validation failures discard the
// job immediately; transient repo-host failures surface to River's
// retry schedule.
func (w *ArchiveEventWorker) Work(ctx context.Context, job *river.Job[ArchiveEventJobArgs]) error {
	ev, err := w.store.GetEvent(ctx, job.Args.EventID)
	if err != nil {
		// The buffer row expired or was already processed.
		log.Warn().Str("event", job.Args.EventID).Err(err).Msg("inbound event missing, discarding job")
		return river.JobCancel(err)
	}

	event, err := slack.DecodeEvent(ev.RawPayload)
	if err != nil {
		return river.JobCancel(fmt.Errorf("decode event %s: %w", ev.ID, err))
	}
	msg, ok := event.(slack.MessageEvent)
	if !ok {
		return river.JobCancel(fmt.Errorf("event %s is not a message event", ev.ID))
	}

	mappings, err := w.store.ListActiveByChannel(ctx, msg.Channel)
	if err != nil {
		return fmt.Errorf("list mappings for %s: %w", msg.Channel, err)
	}
	if len(mappings) == 0 {
		log.Debug().Str("channel", msg.Channel).Msg("no active mappings, dropping event")
		return w.store.DeleteEvent(ctx, ev.ID)
	}

	names := w.chat.ResolveNames(ctx, []slack.Message{msg.Message})
	for _, mapping := range mappings {
		outcome, err := w.syncer.ArchiveMessage(ctx, mapping, msg.Message, names)
		if err != nil {
			if !faults.Retryable(err) {
				return river.JobCancel(fmt.Errorf("archive message %s: %w", msg.Ts, err))
			}
			return fmt.Errorf("archive message %s into %s: %w", msg.Ts, mapping.RepoKey(), err)
		}
		log.Info().
			Str("channel", msg.Channel).
			Str("repo", mapping.RepoKey()).
			Str("outcome", outcome.String()).
			Msg("message archived")
	}

	return w.store.DeleteEvent(ctx, ev.ID)
}

// IssueReportWorker runs the scheduled issue status report for every
// mapped repository and posts the results to the report channel.
type IssueReportWorker struct {
	river.WorkerDefaults[IssueReportJobArgs]
	store         *store.Store
	chat          *slack.Client
	engine        *summary.Engine
	reportChannel string
	config        *QueueConfig
}

func (w *IssueReportWorker) Timeout(*river.Job[IssueReportJobArgs]) time.Duration {
	return w.config.JobTimeout
}

// Work reports each distinct repository once even when several
// channels map to it. One repository's failure is logged and the rest
// still report; the job only fails if every repository failed.
func (w *IssueReportWorker) Work(ctx context.Context, _ *river.Job[IssueReportJobArgs]) error {
	mappings, err := w.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active mappings: %w", err)
	}

	if deleted, err := w.store.DeleteExpiredEvents(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to clear expired events")
	} else if deleted > 0 {
		log.Debug().Int64("deleted", deleted).Msg("cleared expired events")
	}

	seen := map[string]bool{}
	var attempted, failed int
	for _, mapping := range mappings {
		if seen[mapping.RepoKey()] {
			continue
		}
		seen[mapping.RepoKey()] = true
		attempted++

		report, err := w.engine.Run(ctx, mapping.RepoOwner, mapping.RepoName)
		if err != nil {
			failed++
			log.Error().Str("repo", mapping.RepoKey()).Err(err).Msg("issue report failed")
			continue
		}
		if err := w.chat.PostMessage(ctx, w.reportChannel, report.Message); err != nil {
			failed++
			log.Error().Str("repo", mapping.RepoKey()).Err(err).Msg("failed to post issue report")
		}
	}

	if attempted > 0 && failed == attempted {
		return fmt.Errorf("all %d issue reports failed", failed)
	}
	return nil
}

// ChannelSyncWorker backfills a channel's history into its mapped
// repositories, skipping threads that are already archived.
type ChannelSyncWorker struct {
	river.WorkerDefaults[ChannelSyncJobArgs]
	store  *store.Store
	chat   *slack.Client
	syncer *archive.Syncer
	config *QueueConfig
}

func (w *ChannelSyncWorker) Timeout(*river.Job[ChannelSyncJobArgs]) time.Duration {
	return 3 * w.config.JobTimeout
}

func (w *ChannelSyncWorker) Work(ctx context.Context, job *river.Job[ChannelSyncJobArgs]) error {
	mappings, err := w.store.ListActiveByChannel(ctx, job.Args.ChannelID)
	if err != nil {
		return fmt.Errorf("list mappings for %s: %w", job.Args.ChannelID, err)
	}
	if len(mappings) == 0 {
		return nil
	}

	var messages []slack.Message
	pager := w.chat.History(job.Args.ChannelID)
	for {
		page, more, err := pager.Next(ctx)
		if err != nil {
			return fmt.Errorf("fetch history for %s: %w", job.Args.ChannelID, err)
		}
		messages = append(messages, page...)
		if !more {
			break
		}
	}

	threads := slack.GroupThreads(messages)
	names := w.chat.ResolveNames(ctx, messages)
	for _, mapping := range mappings {
		result := w.syncer.ArchiveThreads(ctx, mapping, threads, names)
		log.Info().
			Str("channel", job.Args.ChannelID).
			Str("repo", mapping.RepoKey()).
			Int("created", result.Created).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Msg("channel sync complete")
	}
	return nil
}

// JobQueue manages the River client and its workers.
type JobQueue struct {
	client *river.Client[pgx.Tx]
	config *QueueConfig
}

// Deps carries the shared services the workers need.
type Deps struct {
	Store         *store.Store
	Chat          *slack.Client
	Syncer        *archive.Syncer
	Engine        *summary.Engine
	ReportChannel string
}

// NewJobQueue creates the queue with all workers registered and the
// periodic report job scheduled.
func NewJobQueue(deps Deps, config *QueueConfig) (*JobQueue, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, &ArchiveEventWorker{
		store: deps.Store, chat: deps.Chat, syncer: deps.Syncer, config: config,
	})
	river.AddWorker(workers, &IssueReportWorker{
		store: deps.Store, chat: deps.Chat, engine: deps.Engine,
		reportChannel: deps.ReportChannel, config: config,
	})
	river.AddWorker(workers, &ChannelSyncWorker{
		store: deps.Store, chat: deps.Chat, syncer: deps.Syncer, config: config,
	})

	periodic := []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(config.ReportInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return IssueReportJobArgs{}, &river.InsertOpts{Queue: QueueReports}
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		),
	}

	client, err := river.NewClient(riverpgxv5.New(deps.Store.Pool()), &river.Config{
		Queues:       config.RiverQueueConfig(),
		Workers:      workers,
		PeriodicJobs: periodic,
		MaxAttempts:  config.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{client: client, config: config}, nil
}

// Start starts the job queue workers.
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers, waiting for in-flight jobs.
func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}

// EnqueueArchiveEvent queues processing of a persisted inbound event.
func (jq *JobQueue) EnqueueArchiveEvent(ctx context.Context, eventID string) error {
	_, err := jq.client.Insert(ctx, ArchiveEventJobArgs{EventID: eventID}, nil)
	if err != nil {
		return fmt.Errorf("failed to queue archive job: %w", err)
	}
	return nil
}

// EnqueueChannelSync queues a history backfill for a channel.
func (jq *JobQueue) EnqueueChannelSync(ctx context.Context, channelID string) error {
	_, err := jq.client.Insert(ctx, ChannelSyncJobArgs{ChannelID: channelID}, nil)
	if err != nil {
		return fmt.Errorf("failed to queue channel sync job: %w", err)
	}
	return nil
}

// EnqueueIssueReport queues an immediate report run outside the
// schedule, used by the report command.
func (jq *JobQueue) EnqueueIssueReport(ctx context.Context) error {
	_, err := jq.client.Insert(ctx, IssueReportJobArgs{}, &river.InsertOpts{Queue: QueueReports})
	if err != nil {
		return fmt.Errorf("failed to queue issue report job: %w", err)
	}
	return nil
}

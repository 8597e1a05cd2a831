/*
Package jobqueue configuration - tunable parameters for the River job
queue backing the archive and report pipelines.

Queues:
  - default: event archiving jobs enqueued by the webhook handlers
  - reports: the periodic issue status report, kept on its own queue so
    a burst of chat events never delays the schedule
*/
package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueReports is the dedicated queue for scheduled report jobs.
const QueueReports = "reports"

// QueueConfig holds all configurable parameters for the job queue.
type QueueConfig struct {
	// MaxWorkers is the number of concurrent workers on the default
	// queue. Archive jobs are I/O bound on the chat and repo host
	// APIs, so a handful is plenty.
	MaxWorkers int

	// MaxRetries is the maximum attempts per job before River parks it
	// in the discarded state.
	MaxRetries int

	// JobTimeout bounds a single job run.
	JobTimeout time.Duration

	// ReportInterval is the cadence of the scheduled issue status
	// report.
	ReportInterval time.Duration

	// EventTTL is how long raw inbound events stay in the buffer table
	// after receipt.
	EventTTL time.Duration
}

// DefaultQueueConfig returns the default configuration.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxWorkers:     10,
		MaxRetries:     10,
		JobTimeout:     2 * time.Minute,
		ReportInterval: time.Hour,
		EventTTL:       24 * time.Hour,
	}
}

// DevelopmentQueueConfig fails faster and uses fewer workers.
func DevelopmentQueueConfig() *QueueConfig {
	config := DefaultQueueConfig()
	config.MaxWorkers = 3
	config.MaxRetries = 3
	config.JobTimeout = 30 * time.Second
	return config
}

// RiverQueueConfig converts our config to River's queue configuration
// format.
func (c *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {MaxWorkers: c.MaxWorkers},
		QueueReports:       {MaxWorkers: 1},
	}
}

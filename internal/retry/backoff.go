// Package retry wraps fallible, possibly-slow operations with bounded
// retries, exponential backoff, and a hard deadline. Every outbound
// network call (Slack, GitHub, the store) goes through Do so a single
// slow dependency cannot cascade into an unbounded handler runtime.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chilltask/internal/faults"
)

// ErrDeadlineExceeded is returned when the whole retry sequence runs
// past its configured deadline, regardless of attempts remaining.
var ErrDeadlineExceeded = errors.New("retry: operation timed out")

// Config configures retry behavior with exponential backoff
type Config struct {
	MaxAttempts int           // Total tries including the first (default: 3)
	BaseDelay   time.Duration // Delay before the first retry (default: 1s)
	MaxDelay    time.Duration // Cap on any single delay (default: 30s)
	Multiplier  float64       // Exponential backoff multiplier (default: 2.0)
	Jitter      bool          // Random jitter to prevent thundering herd
	Deadline    time.Duration // Hard cap on the whole sequence (default: 25s)
}

// Result contains information about the retry operation
type Result struct {
	Attempts      int           // Total number of attempts made
	TotalDuration time.Duration // Total time spent on all attempts
	Err           error         // Last error encountered, nil on success
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
		Deadline:    25 * time.Second,
	}
}

// Do executes op with exponential backoff. Validation and auth faults
// abort immediately with no retry; everything else is retried up to
// MaxAttempts. The whole sequence races against Deadline: a breach
// surfaces as ErrDeadlineExceeded.
func Do(ctx context.Context, cfg Config, name string, op func(context.Context) error) Result {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}

	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}

	startTime := time.Now()
	result := Result{}

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt + 1

		err := op(ctx)
		if err == nil {
			result.Err = nil
			result.TotalDuration = time.Since(startTime)
			if attempt > 0 {
				log.Debug().Str("op", name).Int("attempts", result.Attempts).
					Dur("elapsed", result.TotalDuration).Msg("operation succeeded after retries")
			}
			return result
		}

		result.Err = err

		// The deadline breach wins over whatever error the aborted
		// attempt reported.
		if ctx.Err() != nil {
			result.Err = ErrDeadlineExceeded
			result.TotalDuration = time.Since(startTime)
			log.Warn().Str("op", name).Int("attempts", result.Attempts).Msg("operation timed out")
			return result
		}

		// Caller faults are not the network's fault. Abort.
		if !faults.Retryable(err) {
			result.TotalDuration = time.Since(startTime)
			log.Debug().Str("op", name).Err(err).Msg("non-retryable error, aborting")
			return result
		}

		if attempt == cfg.MaxAttempts-1 {
			result.TotalDuration = time.Since(startTime)
			log.Warn().Str("op", name).Int("attempts", result.Attempts).Err(err).
				Msg("operation failed, retries exhausted")
			return result
		}

		delay := calculateDelay(cfg, attempt)
		log.Debug().Str("op", name).Int("attempt", attempt+1).Dur("delay", delay).
			Err(err).Msg("operation failed, retrying")

		select {
		case <-ctx.Done():
			result.Err = ErrDeadlineExceeded
			result.TotalDuration = time.Since(startTime)
			log.Warn().Str("op", name).Int("attempts", result.Attempts).Msg("operation timed out during backoff")
			return result
		case <-time.After(delay):
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// calculateDelay calculates the delay for the next retry attempt using exponential backoff
func calculateDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))

	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		// Up to 10% random jitter
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}

	return time.Duration(delay)
}

// Package worker drains the intake stream through the triage pipeline.
package worker

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"

	"complaint_triage/adapter/out/messaging"
	"complaint_triage/core/port/in"
	"complaint_triage/pkg/apperr"
)

// =============================================================================
// Intake Source
// =============================================================================

// IntakeSource is the consumer-group view of the intake stream.
type IntakeSource interface {
	Read(ctx context.Context, count int) ([]*messaging.IntakeMessage, error)
	ClaimStale(ctx context.Context, count int) ([]*messaging.IntakeMessage, error)
	Ack(ctx context.Context, id string) error
	DeadLetter(ctx context.Context, id, reason string) error
}

// IntakeConfig holds intake worker configuration.
type IntakeConfig struct {
	MaxPerCycle int           // 사이클당 최대 처리 건수
	Workers     int           // 동시 처리 워커 수
	JobTimeout  time.Duration // 건별 타임아웃
	IdleBackoff time.Duration // 빈 사이클 또는 읽기 오류 후 대기
}

// DefaultIntakeConfig returns default intake configuration.
func DefaultIntakeConfig() IntakeConfig {
	return IntakeConfig{
		MaxPerCycle: 50,
		Workers:     5,
		JobTimeout:  2 * time.Minute,
		IdleBackoff: time.Second,
	}
}

func (c IntakeConfig) withDefaults() IntakeConfig {
	d := DefaultIntakeConfig()
	if c.MaxPerCycle <= 0 {
		c.MaxPerCycle = d.MaxPerCycle
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.Workers > c.MaxPerCycle {
		c.Workers = c.MaxPerCycle
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.IdleBackoff <= 0 {
		c.IdleBackoff = d.IdleBackoff
	}
	return c
}

// CycleStats summarizes one intake cycle.
type CycleStats struct {
	Read          int
	Processed     int
	Duplicates    int
	Failed        int
	DeadLettered  int
	Skipped       int
	Fallbacks     int
	Notifications int
}

type cycleCounters struct {
	processed, duplicates, failed, deadLettered, fallbacks, notifications int64
}

// =============================================================================
// Intake Worker
// =============================================================================

// IntakeWorker runs intake cycles: claim stale, read fresh, process on a
// bounded pool, ack what finished.
type IntakeWorker struct {
	source IntakeSource
	triage in.TriageUseCase
	cfg    IntakeConfig
	log    zerolog.Logger

	cycles    int64
	processed int64
	failed    int64
}

// NewIntakeWorker creates a new IntakeWorker.
func NewIntakeWorker(source IntakeSource, triage in.TriageUseCase, cfg IntakeConfig, log zerolog.Logger) *IntakeWorker {
	return &IntakeWorker{
		source: source,
		triage: triage,
		cfg:    cfg.withDefaults(),
		log:    log.With().Str("component", "intake_worker").Logger(),
	}
}

// Run loops over cycles until ctx is cancelled.
func (w *IntakeWorker) Run(ctx context.Context) error {
	w.log.Info().
		Int("max_per_cycle", w.cfg.MaxPerCycle).
		Int("workers", w.cfg.Workers).
		Msg("intake worker started")

	for {
		if ctx.Err() != nil {
			w.log.Info().
				Int64("cycles", atomic.LoadInt64(&w.cycles)).
				Int64("processed", atomic.LoadInt64(&w.processed)).
				Int64("failed", atomic.LoadInt64(&w.failed)).
				Msg("intake worker stopped")
			return ctx.Err()
		}

		stats, err := w.RunCycle(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("intake cycle failed")
		}
		if err != nil || stats.Read == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(w.cfg.IdleBackoff):
			}
		}
	}
}

// RunCycle processes at most MaxPerCycle messages. Cancelling ctx stops
// new submissions; messages already handed to the pool finish on a
// detached context.
func (w *IntakeWorker) RunCycle(ctx context.Context) (CycleStats, error) {
	atomic.AddInt64(&w.cycles, 1)

	msgs, err := w.source.ClaimStale(ctx, w.cfg.MaxPerCycle)
	if err != nil {
		w.log.Warn().Err(err).Msg("error claiming pending messages")
		msgs = nil
	}
	if remaining := w.cfg.MaxPerCycle - len(msgs); remaining > 0 && ctx.Err() == nil {
		fresh, err := w.source.Read(ctx, remaining)
		if err != nil && len(msgs) == 0 {
			return CycleStats{}, err
		}
		msgs = append(msgs, fresh...)
	}

	stats := CycleStats{Read: len(msgs)}
	if len(msgs) == 0 {
		return stats, nil
	}

	var counters cycleCounters
	detached := context.WithoutCancel(ctx)

	wg := pool.New[*messaging.IntakeMessage](w.cfg.Workers, pool.WorkerFunc[*messaging.IntakeMessage](
		func(_ context.Context, msg *messaging.IntakeMessage) error {
			w.process(detached, msg, &counters)
			return nil
		})).WithContinueOnError()

	if err := wg.Go(detached); err != nil {
		return stats, err
	}

	for _, msg := range msgs {
		// 취소 시 남은 메시지는 pending으로 남아 다음 사이클에서 재처리
		if ctx.Err() != nil {
			stats.Skipped++
			continue
		}
		wg.Submit(msg)
	}

	if err := wg.Close(detached); err != nil {
		w.log.Warn().Err(err).Msg("intake pool finished with error")
	}

	stats.Processed = int(counters.processed)
	stats.Duplicates = int(counters.duplicates)
	stats.Failed = int(counters.failed)
	stats.DeadLettered = int(counters.deadLettered)
	stats.Fallbacks = int(counters.fallbacks)
	stats.Notifications = int(counters.notifications)

	atomic.AddInt64(&w.processed, int64(stats.Processed+stats.Duplicates))
	atomic.AddInt64(&w.failed, int64(stats.Failed))

	w.log.Info().
		Int("read", stats.Read).
		Int("processed", stats.Processed).
		Int("duplicates", stats.Duplicates).
		Int("failed", stats.Failed).
		Int("dead_lettered", stats.DeadLettered).
		Int("skipped", stats.Skipped).
		Msg("intake cycle complete")
	return stats, nil
}

// process runs one message through the pipeline. Client errors are
// poison and go to the DLQ; anything else stays pending for a retry.
func (w *IntakeWorker) process(ctx context.Context, msg *messaging.IntakeMessage, c *cycleCounters) {
	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	res, err := w.safeTriage(jobCtx, msg)
	if err != nil {
		status := apperr.GetHTTPStatus(err)
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			atomic.AddInt64(&c.deadLettered, 1)
			if dlqErr := w.source.DeadLetter(ctx, msg.ID, err.Error()); dlqErr != nil {
				w.log.Error().Err(dlqErr).Str("id", msg.ID).Msg("error moving message to DLQ")
			}
			return
		}

		atomic.AddInt64(&c.failed, 1)
		w.log.Error().
			Err(err).
			Str("id", msg.ID).
			Str("key", msg.Submission.Key).
			Int64("deliveries", msg.Deliveries).
			Msg("intake message failed, left pending")
		return
	}

	if res.AlreadyProcessed {
		atomic.AddInt64(&c.duplicates, 1)
	} else {
		atomic.AddInt64(&c.processed, 1)
		if res.Classification != nil && res.Classification.IsFallback() {
			atomic.AddInt64(&c.fallbacks, 1)
		}
		if res.Notification != nil && res.Notification.AnySent() {
			atomic.AddInt64(&c.notifications, 1)
		}
	}

	if err := w.source.Ack(ctx, msg.ID); err != nil {
		w.log.Error().Err(err).Str("id", msg.ID).Msg("error acknowledging message")
	}
}

func (w *IntakeWorker) safeTriage(ctx context.Context, msg *messaging.IntakeMessage) (res *in.TriageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperr.Internal("intake handler panic")
			w.log.Error().Interface("panic", r).Str("id", msg.ID).Msg("recovered intake panic")
		}
	}()
	return w.triage.ClassifyAndRoute(ctx, msg.Submission)
}

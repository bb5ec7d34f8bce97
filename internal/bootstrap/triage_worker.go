package bootstrap

import (
	"context"
	"errors"
	"sync"

	"complaint_triage/adapter/in/worker"
	"complaint_triage/adapter/out/messaging"
	"complaint_triage/config"
	"complaint_triage/pkg/logger"
)

// Worker drains the intake stream through the triage pipeline.
type Worker struct {
	intake   *worker.IntakeWorker
	consumer *messaging.IntakeConsumer
	deps     *Dependencies
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}
	w, err := newWorker(cfg, deps)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return w, cleanup, nil
}

// NewWorkerWithDeps builds the worker over connections the caller owns, so
// it can share them with the API.
func NewWorkerWithDeps(cfg *config.Config, deps *Dependencies) (*Worker, error) {
	return newWorker(cfg, deps)
}

func newWorker(cfg *config.Config, deps *Dependencies) (*Worker, error) {
	if deps.Redis == nil {
		return nil, errors.New("intake worker requires Redis")
	}

	zlog := logger.Default().WithField("worker_id", cfg.WorkerID).Zerolog()

	consumer := messaging.NewIntakeConsumer(deps.Redis, &messaging.ConsumerConfig{
		Consumer:        cfg.WorkerID,
		Logger:          zlog,
		Block:           cfg.IntakeBlock,
		PendingIdleTime: cfg.IntakePendingIdle,
		MaxRetries:      cfg.IntakeMaxRetries,
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := consumer.EnsureGroup(ctx); err != nil {
		cancel()
		return nil, err
	}

	intake := worker.NewIntakeWorker(consumer, deps.TriageService, worker.IntakeConfig{
		MaxPerCycle: cfg.IntakeMaxPerCycle,
		Workers:     cfg.IntakeWorkers,
	}, zlog)

	logger.Info("intake worker configured (stream=%s, consumer=%s)", messaging.StreamIntake, cfg.WorkerID)

	return &Worker{
		intake:   intake,
		consumer: consumer,
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start blocks until Stop is called and in-flight complaints finish.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.intake.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("intake worker exited")
		}
	}()

	<-w.ctx.Done()
	w.wg.Wait()
}

// Stop cancels the read loop and waits for in-flight complaints.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}

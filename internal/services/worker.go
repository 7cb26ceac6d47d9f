package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"train-design-backend/internal/design"
)

// synthesisJob carries everything a worker needs to run the asynchronous
// half of an edit. The ledger id is the job's identity; the job's only
// channel back to the rest of the system is writing a terminal status.
type synthesisJob struct {
	HistoryID int64
	UserID    uuid.UUID
	SessionID int64
	Delta     design.Delta
	Previous  design.Snapshot
	Merged    design.Snapshot
}

// WorkerPool bounds the number of concurrent outbound synthesizer calls. It
// replaces ad hoc goroutine spawning: submissions enqueue, a fixed set of
// workers drains.
type WorkerPool struct {
	jobs   chan synthesisJob
	run    func(context.Context, synthesisJob)
	logger *zap.Logger

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWorkerPool(workers, queueSize int, run func(context.Context, synthesisJob), logger *zap.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	p := &WorkerPool{
		jobs:   make(chan synthesisJob, queueSize),
		run:    run,
		logger: logger,
		group:  group,
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		group.Go(p.worker)
	}
	return p
}

func (p *WorkerPool) worker() error {
	for job := range p.jobs {
		p.run(p.ctx, job)
	}
	return nil
}

// Enqueue hands a job to the pool without blocking. It reports false when
// the queue is full; the caller decides how to fail the ledger entry.
func (p *WorkerPool) Enqueue(job synthesisJob) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		p.logger.Warn("synthesis queue full, rejecting job",
			zap.Int64("history_id", job.HistoryID))
		return false
	}
}

// Shutdown stops accepting jobs and waits for queued work to drain. Jobs
// already running finish; there is no cancellation of in-flight synthesis.
func (p *WorkerPool) Shutdown() {
	close(p.jobs)
	_ = p.group.Wait()
	p.cancel()
}

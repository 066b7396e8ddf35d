package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/SaKinLord/ai-email-agent-sub000/adapter/in/worker"
	"github.com/SaKinLord/ai-email-agent-sub000/config"
	"github.com/SaKinLord/ai-email-agent-sub000/internal/stream"
	"github.com/SaKinLord/ai-email-agent-sub000/pkg/logger"
)

// Worker is the background process: the job pool, the Redis Stream
// consumer feeding it, the action drain loop, and the periodic triggers.
type Worker struct {
	deps     *Dependencies
	pool     *worker.Pool
	consumer *stream.Consumer
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWorker assembles the worker around an existing dependency graph.
func NewWorker(cfg *config.Config, deps *Dependencies) *Worker {
	handler := worker.NewHandler(deps.Pipeline, deps.Retrainer, deps.Scheduler)

	poolConfig := worker.DefaultPoolConfig()
	if cfg.WorkerMin > 0 {
		poolConfig.MinWorkers = cfg.WorkerMin
	}
	if cfg.WorkerMax > 0 {
		poolConfig.MaxWorkers = cfg.WorkerMax
	}
	if cfg.WorkerQueueSize > 0 {
		poolConfig.QueueSize = cfg.WorkerQueueSize
	}

	pool := worker.NewPool(handler, poolConfig, deps.ZLog)

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		deps:   deps,
		pool:   pool,
		ctx:    ctx,
		cancel: cancel,
	}

	if deps.Stream != nil {
		w.consumer = stream.NewConsumer(deps.Stream, pool, cfg.WorkerID)
		logger.Info("Redis Stream consumer configured as %s", cfg.WorkerID)
	} else {
		logger.Warn("Redis not available, worker runs on internal ticks only")
	}

	return w
}

// Start runs the pool, the consumer, the action drain loop, and the
// periodic triggers, then blocks until Stop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pool.Start()
	}()

	if w.consumer != nil {
		w.consumer.Start(w.ctx)
	}

	// Action drain loop
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.deps.ActionWorker.Run(w.ctx)
	}()

	if w.deps.Cfg.SchedulerEnabled {
		w.wg.Add(2)
		go func() {
			defer w.wg.Done()
			w.tickInboxScans()
		}()
		go func() {
			defer w.wg.Done()
			w.tickAutonomousRuns()
		}()
	}

	<-w.ctx.Done()
}

// Stop shuts everything down and waits.
func (w *Worker) Stop() {
	w.cancel()
	w.pool.Stop()
	w.wg.Wait()
}

// Submit hands a job to the pool directly, bypassing the stream.
func (w *Worker) Submit(msg *worker.Message) bool {
	if msg.IsPriority() {
		return w.pool.SubmitPriority(msg)
	}
	return w.pool.Submit(msg)
}

// GetMetrics returns pool metrics.
func (w *Worker) GetMetrics() worker.PoolMetrics {
	return w.pool.GetMetrics()
}

// tickInboxScans enqueues an inbox scan for every known user on the
// pipeline cadence. With Redis the job goes over the stream so any
// worker may pick it up; without it the job is submitted in-process.
func (w *Worker) tickInboxScans() {
	ticker := time.NewTicker(w.deps.Cfg.PipelineTick)
	defer ticker.Stop()

	logger.Info("Inbox scan trigger started (every %v)", w.deps.Cfg.PipelineTick)
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			userIDs, err := w.deps.TokenStore.ListUserIDs(w.ctx)
			if err != nil {
				logger.Error("Could not list users for inbox scan: %v", err)
				continue
			}
			for _, userID := range userIDs {
				if w.deps.Producer != nil {
					if _, err := w.deps.Producer.PublishInboxScan(w.ctx, userID, 0); err != nil {
						logger.Warn("Inbox scan publish failed for %s: %v", userID, err)
					}
					continue
				}
				msg := worker.NewMessage(worker.JobInboxScan, map[string]any{"user_id": userID})
				if !w.pool.Submit(msg) {
					logger.Warn("Pool rejected inbox scan for %s", userID)
				}
			}
		}
	}
}

// tickAutonomousRuns enqueues one all-users autonomous pass on the
// scheduler cadence. Per-task gating happens inside the scheduler.
func (w *Worker) tickAutonomousRuns() {
	ticker := time.NewTicker(w.deps.Cfg.AutonomousTick)
	defer ticker.Stop()

	logger.Info("Autonomous trigger started (every %v)", w.deps.Cfg.AutonomousTick)
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if w.deps.Producer != nil {
				if _, err := w.deps.Producer.PublishAutonomousRun(w.ctx, ""); err != nil {
					logger.Warn("Autonomous run publish failed: %v", err)
				}
				continue
			}
			msg := worker.NewMessage(worker.JobAutonomousRun, map[string]any{})
			if !w.pool.Submit(msg) {
				logger.Warn("Pool rejected autonomous run")
			}
		}
	}
}

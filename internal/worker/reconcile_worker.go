package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aryan0dhankhar/doorgate/internal/domain"
	"github.com/aryan0dhankhar/doorgate/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/doorgate/internal/observability/metrics"
)

// ErrReconcileInProgress is returned when a cycle is already running here or on another replica
var ErrReconcileInProgress = errors.New("reconciliation already in progress")

const lockKey = "doorgate:reconcile"

// Reconciler runs one reconciliation cycle
type Reconciler interface {
	Reconcile(ctx context.Context) (*domain.ReconcileReport, error)
}

// Locker serializes cycles across replicas
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// ReconcileWorker runs reconciliation once at start and then on a fixed
// interval, independent of request handling. At most one cycle runs at a time.
type ReconcileWorker struct {
	reconciler Reconciler
	locker     Locker
	interval   time.Duration
	timeout    time.Duration
	logger     *slog.Logger

	running sync.Mutex
	mu      sync.Mutex
	last    *domain.ReconcileReport
}

// NewReconcileWorker creates a new worker. locker may be nil for a single replica.
func NewReconcileWorker(
	reconciler Reconciler,
	locker Locker,
	interval time.Duration,
	timeout time.Duration,
	logger *slog.Logger,
) *ReconcileWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ReconcileWorker{
		reconciler: reconciler,
		locker:     locker,
		interval:   interval,
		timeout:    timeout,
		logger:     logger,
	}
}

// Start runs the first cycle immediately, schedules the rest, and blocks
// until ctx is done. It waits for the startup cycle and any in-flight
// scheduled cycle before returning.
func (w *ReconcileWorker) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", w.interval), func() {
		w.runScheduled(ctx, "scheduled")
	}); err != nil {
		return fmt.Errorf("schedule reconciliation: %w", err)
	}

	w.logger.Info("reconcile worker started", slog.Duration("interval", w.interval))
	var startup sync.WaitGroup
	startup.Add(1)
	go func() {
		defer startup.Done()
		w.runScheduled(ctx, "startup")
	}()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	startup.Wait()
	w.logger.Info("reconcile worker stopped")
	return nil
}

// RunNow runs a cycle synchronously on behalf of an operator
func (w *ReconcileWorker) RunNow(ctx context.Context) (*domain.ReconcileReport, error) {
	return w.run(ctx, "manual")
}

// LastReport returns the report of the most recent completed cycle, or nil
func (w *ReconcileWorker) LastReport() *domain.ReconcileReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *ReconcileWorker) runScheduled(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.run(ctx, trigger); errors.Is(err, ErrReconcileInProgress) {
		w.logger.Info("skipping reconciliation tick, previous cycle still running", slog.String("trigger", trigger))
	}
}

func (w *ReconcileWorker) run(ctx context.Context, trigger string) (*domain.ReconcileReport, error) {
	if !w.running.TryLock() {
		return nil, ErrReconcileInProgress
	}
	defer w.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if w.locker != nil {
		unlock, err := w.locker.TryLock(ctx, lockKey, w.timeout)
		switch {
		case errors.Is(err, redis.ErrLockHeld):
			return nil, ErrReconcileInProgress
		case err != nil:
			w.logger.Warn("distributed lock unavailable, proceeding with local lock only", slog.String("error", err.Error()))
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := unlock(releaseCtx); err != nil {
					w.logger.Warn("failed to release reconcile lock", slog.String("error", err.Error()))
				}
			}()
		}
	}

	start := time.Now()
	report, err := w.reconciler.Reconcile(ctx)
	result := "success"
	switch {
	case err != nil:
		result = "aborted"
	case report != nil && report.Failures > 0:
		result = "partial"
	}
	metrics.ObserveReconcile(trigger, result, time.Since(start))

	if err != nil {
		w.logger.Error("reconciliation aborted", slog.String("trigger", trigger), slog.String("error", err.Error()))
		return report, err
	}

	w.mu.Lock()
	w.last = report
	w.mu.Unlock()
	return report, nil
}

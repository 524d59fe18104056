package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ReconcilerConfig sizes the background reconciliation pool.
type ReconcilerConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 200 * time.Millisecond
	}
	if c.MaxBackoff < c.Backoff {
		c.MaxBackoff = 10 * c.Backoff
	}
	return c
}

type reconcileJob struct {
	ID         string
	WorkID     string
	Generation int
}

type inflightJob struct {
	generation int
	cancel     context.CancelFunc
}

// Reconciler updates the materials linked to a work after the work's quantity
// changed. Jobs are keyed by (work id, generation): a job whose generation is
// no longer current is a no-op, and queuing a newer generation cancels the
// older job if it is still running. Failures are logged and never surface to
// the edit that queued them.
type Reconciler struct {
	store Store
	cfg   ReconcilerConfig
	jobs  chan reconcileJob

	mu       sync.Mutex
	latest   map[string]int
	inflight map[string]inflightJob
	running  bool
	cancel   context.CancelFunc
	group    *errgroup.Group
	done     chan struct{}
}

func NewReconciler(store Store, cfg ReconcilerConfig) *Reconciler {
	cfg = cfg.withDefaults()
	return &Reconciler{
		store:    store,
		cfg:      cfg,
		jobs:     make(chan reconcileJob, cfg.QueueSize),
		latest:   make(map[string]int),
		inflight: make(map[string]inflightJob),
	}
}

// Start launches the workers. They run until ctx is cancelled or Stop is called.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		id := i
		group.Go(func() error {
			r.runWorker(gctx, id)
			return nil
		})
	}
	r.running = true
	r.done = make(chan struct{})
	r.cancel = cancel
	r.group = group
	log.Info().Int("workers", r.cfg.Workers).Msg("reconciler: started")
}

// Stop cancels in-flight jobs and waits for the workers to exit. Jobs still
// queued are dropped; Recalc repairs anything they would have done.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel, group := r.cancel, r.group
	close(r.done)
	r.mu.Unlock()

	cancel()
	_ = group.Wait()
	log.Info().Msg("reconciler: stopped")
}

// Enqueue queues reconciliation of workID at generation without blocking the
// caller. An older generation than one already seen is ignored, and a job that
// finds the queue full is dropped for Recalc to repair.
func (r *Reconciler) Enqueue(workID string, generation int) {
	r.mu.Lock()
	if seen, ok := r.latest[workID]; ok && generation < seen {
		r.mu.Unlock()
		log.Debug().Str("work_id", workID).Int("generation", generation).Msg("reconciler: ignoring outdated job")
		return
	}
	r.latest[workID] = generation
	if job, ok := r.inflight[workID]; ok && job.generation < generation {
		job.cancel()
	}
	running, done := r.running, r.done
	r.mu.Unlock()

	if !running {
		log.Warn().Str("work_id", workID).Int("generation", generation).Msg("reconciler: not running, job dropped")
		return
	}

	job := reconcileJob{ID: uuid.NewString(), WorkID: workID, Generation: generation}
	select {
	case r.jobs <- job:
	case <-done:
	default:
		log.Warn().Str("work_id", workID).Int("generation", generation).Msg("reconciler: queue full, job dropped")
	}
}

func (r *Reconciler) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.jobs:
			r.process(ctx, id, job)
		}
	}
}

func (r *Reconciler) process(parent context.Context, worker int, job reconcileJob) {
	r.mu.Lock()
	if job.Generation < r.latest[job.WorkID] {
		r.mu.Unlock()
		log.Debug().Str("job_id", job.ID).Str("work_id", job.WorkID).Msg("reconciler: superseded before start")
		return
	}
	ctx, cancel := context.WithCancel(parent)
	r.inflight[job.WorkID] = inflightJob{generation: job.Generation, cancel: cancel}
	r.mu.Unlock()

	defer func() {
		cancel()
		r.mu.Lock()
		if cur, ok := r.inflight[job.WorkID]; ok && cur.generation == job.Generation {
			delete(r.inflight, job.WorkID)
		}
		r.mu.Unlock()
	}()

	updated, err := r.withRetry(ctx, job)
	switch {
	case err == nil:
		log.Info().
			Str("job_id", job.ID).
			Int("worker", worker).
			Str("work_id", job.WorkID).
			Int("generation", job.Generation).
			Int("updated", updated).
			Msg("reconciler: work reconciled")
	case errors.Is(err, ErrStaleReconciliation), errors.Is(err, context.Canceled):
		log.Debug().Str("job_id", job.ID).Str("work_id", job.WorkID).Msg("reconciler: superseded")
	default:
		log.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("work_id", job.WorkID).
			Int("generation", job.Generation).
			Msg("reconciler: giving up")
	}
}

// withRetry runs ReconcileWork up to MaxAttempts times with exponential
// backoff. Staleness, overflow and missing records are not retried.
func (r *Reconciler) withRetry(ctx context.Context, job reconcileJob) (int, error) {
	var lastErr error
	wait := r.cfg.Backoff
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
			if wait > r.cfg.MaxBackoff {
				wait = r.cfg.MaxBackoff
			}
		}

		updated, err := r.ReconcileWork(ctx, job.WorkID, job.Generation)
		if err == nil {
			return updated, nil
		}
		if permanent(err) || ctx.Err() != nil {
			return 0, err
		}
		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("job_id", job.ID).
			Str("work_id", job.WorkID).
			Msg("reconciler: attempt failed, retrying")
	}
	return 0, lastErr
}

func permanent(err error) bool {
	var overflow *OverflowError
	var dangling *DanglingLinkError
	var verr *ValidationError
	return errors.Is(err, ErrStaleReconciliation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrMissingExchangeRate) ||
		errors.As(err, &overflow) ||
		errors.As(err, &dangling) ||
		errors.As(err, &verr)
}

// ReconcileWork re-derives every material linked to workID from fresh state
// and persists the ones whose quantity or total changed. It returns
// ErrStaleReconciliation without writing when the work's generation moved on.
func (r *Reconciler) ReconcileWork(ctx context.Context, workID string, generation int) (int, error) {
	updated := 0
	err := r.store.RunInTransaction(ctx, func(tx Store) error {
		updated = 0
		work, err := tx.Item(ctx, workID)
		if err != nil {
			return err
		}
		if work.Generation != generation {
			return ErrStaleReconciliation
		}

		links, err := tx.LinksByWork(ctx, workID)
		if err != nil {
			return err
		}
		for i := range links {
			if err := ctx.Err(); err != nil {
				return err
			}
			material, err := tx.Item(ctx, links[i].MaterialItemID)
			if errors.Is(err, ErrNotFound) {
				log.Warn().Str("link_id", links[i].ID).Msg("reconciler: link without material")
				continue
			}
			if err != nil {
				return err
			}
			prevQuantity, prevTotal := material.Quantity, material.TotalAmount
			if err := derive(&material, &links[i], &work); err != nil {
				return err
			}
			if material.Quantity.Equal(prevQuantity) && material.TotalAmount.Equal(prevTotal) {
				continue
			}
			if err := tx.UpdateItem(ctx, &material); err != nil {
				return err
			}
			updated++
		}

		if updated > 0 {
			if _, err := refreshPosition(ctx, tx, work.PositionID); err != nil {
				return err
			}
		}
		return nil
	})
	return updated, err
}

// Package ratingqueue owns the ordered queue of pending rating jobs and the
// single consumer that drains it. Sequential processing is the pipeline's
// core correctness mechanism: no two rating mutations are ever in flight at
// once, so rating records need no row-level locking against ourselves.
package ratingqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	ratingservice "github.com/FAForever/rating-server/app/modules/rating/application"
	ratingdomain "github.com/FAForever/rating-server/app/modules/rating/domain"
	ratingdb "github.com/FAForever/rating-server/app/modules/rating/infrastructure/repositories"
	"github.com/FAForever/rating-server/internal/observability/attr"
	"github.com/FAForever/rating-server/internal/observability/metrics"
)

// ErrServiceNotReady is returned by Enqueue before Initialize or once
// shutdown has begun. Callers are expected to drop the job, not retry.
var ErrServiceNotReady = errors.New("rating worker not ready")

// State is the worker lifecycle:
// Stopped -> Initializing -> Running -> Draining -> Stopped.
type State int

const (
	StateStopped State = iota
	StateInitializing
	StateRunning
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options tune the worker.
type Options struct {
	// RefreshInterval is how often the leaderboard table is reloaded from
	// storage while running. Zero disables refresh.
	RefreshInterval time.Duration
}

// Worker is the process-scoped rating worker queue: one unbounded FIFO of
// RatingJobs and exactly one consumer goroutine. Enqueue is safe for
// concurrent producers and never blocks on I/O.
type Worker struct {
	service ratingservice.Service
	repo    ratingdb.Repository
	logger  *slog.Logger
	metrics *metrics.RatingMetrics
	tracer  trace.Tracer
	opts    Options

	mu           sync.Mutex
	state        State
	queue        []ratingdomain.RatingJob
	leaderboards map[ratingdomain.RatingType]*ratingdb.Leaderboard

	wake   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// NewWorker builds a stopped worker. Call Initialize to start it.
func NewWorker(
	service ratingservice.Service,
	repo ratingdb.Repository,
	logger *slog.Logger,
	m *metrics.RatingMetrics,
	tracer trace.Tracer,
	opts Options,
) *Worker {
	return &Worker{
		service: service,
		repo:    repo,
		logger:  logger,
		metrics: m,
		tracer:  tracer,
		opts:    opts,
		wake:    make(chan struct{}, 1),
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Initialize loads the known leaderboards into memory and starts the single
// consumer. It is an error to initialize a worker that is not stopped.
func (w *Worker) Initialize(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateStopped {
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("cannot initialize rating worker in state %s", state)
	}
	w.state = StateInitializing
	w.mu.Unlock()

	leaderboards, err := w.loadLeaderboards(ctx)
	if err != nil {
		w.mu.Lock()
		w.state = StateStopped
		w.mu.Unlock()
		return fmt.Errorf("failed to load leaderboards: %w", err)
	}

	// The consumer outlives the initialize call; it is stopped by Kill or
	// once a drain completes.
	runCtx, cancel := context.WithCancel(context.Background())

	w.mu.Lock()
	// A Kill during the leaderboard load moves the state off Initializing;
	// that wins and the consumer must not start.
	if w.state != StateInitializing {
		w.mu.Unlock()
		cancel()
		return fmt.Errorf("rating worker stopped during initialization")
	}
	w.leaderboards = leaderboards
	w.cancel = cancel
	w.done = make(chan struct{})
	w.state = StateRunning
	w.mu.Unlock()

	go w.run(runCtx)
	if w.opts.RefreshInterval > 0 {
		go w.refreshLoop(runCtx)
	}

	w.logger.InfoContext(ctx, "Rating worker started",
		attr.Int("leaderboards", len(leaderboards)),
	)
	return nil
}

// Enqueue appends a job to the queue and returns without waiting for it to
// be processed. Fails fast once the worker is not running.
func (w *Worker) Enqueue(job ratingdomain.RatingJob) error {
	w.mu.Lock()
	if w.state != StateRunning {
		w.mu.Unlock()
		return ErrServiceNotReady
	}
	w.queue = append(w.queue, job)
	w.metrics.QueueBacklog.Set(float64(len(w.queue)))
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Shutdown stops accepting new jobs and blocks until every queued job has
// been fully processed (or the context expires). Queued jobs are never
// silently lost by a graceful shutdown.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	switch w.state {
	case StateStopped:
		w.mu.Unlock()
		return nil
	case StateRunning, StateDraining:
		w.state = StateDraining
	default:
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("cannot shut down rating worker in state %s", state)
	}
	done := w.done
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("rating worker drain interrupted: %w", ctx.Err())
	}

	w.mu.Lock()
	w.state = StateStopped
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()
	return nil
}

// Kill cancels the consumer immediately. Queued-but-unprocessed jobs are
// abandoned.
func (w *Worker) Kill() {
	w.mu.Lock()
	if w.state == StateStopped {
		w.mu.Unlock()
		return
	}
	w.state = StateStopped
	w.queue = nil
	w.metrics.QueueBacklog.Set(0)
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// run is the single consumer loop: strictly FIFO, one job fully processed
// before the next starts.
func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		job, ok, draining := w.next()
		if ok {
			w.process(ctx, job)
			continue
		}
		if draining {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}
	}
}

func (w *Worker) next() (ratingdomain.RatingJob, bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return ratingdomain.RatingJob{}, false, w.state == StateDraining
	}
	job := w.queue[0]
	w.queue = w.queue[1:]
	w.metrics.QueueBacklog.Set(float64(len(w.queue)))
	return job, true, false
}

// process rates one job. Per-job failures never propagate: a malformed or
// malicious match report must not stop rating of subsequent matches.
// Transient storage faults are retried by the service itself, scoped to the
// failing persistence pass.
func (w *Worker) process(ctx context.Context, job ratingdomain.RatingJob) {
	ctx = attr.WithCorrelationID(ctx, uuid.NewString())
	ctx, span := w.tracer.Start(ctx, "ProcessRatingJob", trace.WithAttributes(
		attribute.Int64("game_id", int64(job.GameID)),
		attribute.String("rating_type", string(job.RatingType)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		w.metrics.RatingDuration.Observe(time.Since(start).Seconds())
	}()
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(ctx, "Panic while rating game",
				attr.ExtractCorrelationID(ctx),
				attr.GameID("game_id", int64(job.GameID)),
				attr.Any("panic", r),
			)
			w.metrics.JobsTotal.WithLabelValues(metrics.ResultDropped).Inc()
		}
	}()

	leaderboard, global := w.lookupLeaderboards(job.RatingType)

	if err := w.service.RateGame(ctx, job, leaderboard, global); err != nil {
		// The game is left unrated.
		span.RecordError(err)
		w.logger.WarnContext(ctx, "Dropping unratable game",
			attr.ExtractCorrelationID(ctx),
			attr.GameID("game_id", int64(job.GameID)),
			attr.String("rating_type", string(job.RatingType)),
			attr.Error(err),
		)
		w.metrics.JobsTotal.WithLabelValues(metrics.ResultDropped).Inc()
		return
	}
	w.metrics.JobsTotal.WithLabelValues(metrics.ResultRated).Inc()
}

func (w *Worker) lookupLeaderboards(ratingType ratingdomain.RatingType) (*ratingdb.Leaderboard, *ratingdb.Leaderboard) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.leaderboards[ratingType], w.leaderboards[ratingdomain.RatingTypeGlobal]
}

func (w *Worker) loadLeaderboards(ctx context.Context) (map[ratingdomain.RatingType]*ratingdb.Leaderboard, error) {
	rows, err := w.repo.GetLeaderboards(ctx, nil)
	if err != nil {
		return nil, err
	}
	leaderboards := make(map[ratingdomain.RatingType]*ratingdb.Leaderboard, len(rows))
	for i := range rows {
		lb := rows[i]
		leaderboards[ratingdomain.RatingType(lb.TechnicalName)] = &lb
	}
	return leaderboards, nil
}

// refreshLoop periodically reloads the leaderboard table so rating types
// added at runtime become rateable without a restart.
func (w *Worker) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		leaderboards, err := w.loadLeaderboards(ctx)
		if err != nil {
			w.logger.WarnContext(ctx, "Failed to refresh leaderboards", attr.Error(err))
			continue
		}
		w.mu.Lock()
		w.leaderboards = leaderboards
		w.mu.Unlock()
	}
}

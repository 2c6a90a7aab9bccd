package ratingservice

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"

	ratingdomain "github.com/FAForever/rating-server/app/modules/rating/domain"
	ratingdb "github.com/FAForever/rating-server/app/modules/rating/infrastructure/repositories"
	"github.com/FAForever/rating-server/internal/eventbus"
	"github.com/FAForever/rating-server/internal/observability/metrics"
)

const (
	defaultRetryBudget = 3
	defaultRetryDelay  = 250 * time.Millisecond
)

// Options tune the RatingService. Zero values fall back to defaults.
type Options struct {
	// RetryBudget is how many extra attempts a single persistence pass
	// gets when it hits a transient lock/deadlock class fault.
	RetryBudget int
	// RetryDelay is the pause between those attempts.
	RetryDelay time.Duration
	// IsTransient classifies retryable errors. Defaults to the Postgres
	// lock/deadlock classifier.
	IsTransient func(error) bool
	// InitialRating is the flat default prior for players with no rating
	// anywhere. Zero falls back to mean 1500, deviation 500.
	InitialRating ratingdomain.Rating
}

// RatingService implements the Service interface.
type RatingService struct {
	repo           ratingdb.Repository
	db             *bun.DB
	eventBus       eventbus.EventBus
	logger         *slog.Logger
	metrics        *metrics.RatingMetrics
	tracer         trace.Tracer
	playerCallback PlayerRatingCallback

	retryBudget int
	retryDelay  time.Duration
	isTransient func(error) bool

	initialMean      float64
	initialDeviation float64
}

// NewRatingService creates a new RatingService. playerCallback may be nil.
func NewRatingService(
	repo ratingdb.Repository,
	db *bun.DB,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	m *metrics.RatingMetrics,
	tracer trace.Tracer,
	playerCallback PlayerRatingCallback,
	opts Options,
) *RatingService {
	if opts.RetryBudget <= 0 {
		opts.RetryBudget = defaultRetryBudget
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.IsTransient == nil {
		opts.IsTransient = IsTransientStorageError
	}
	if opts.InitialRating.Mean == 0 {
		opts.InitialRating.Mean = DefaultMean
	}
	if opts.InitialRating.Deviation == 0 {
		opts.InitialRating.Deviation = DefaultDeviation
	}
	return &RatingService{
		repo:             repo,
		db:               db,
		eventBus:         eventBus,
		logger:           logger,
		metrics:          m,
		tracer:           tracer,
		playerCallback:   playerCallback,
		retryBudget:      opts.RetryBudget,
		retryDelay:       opts.RetryDelay,
		isTransient:      opts.IsTransient,
		initialMean:      opts.InitialRating.Mean,
		initialDeviation: opts.InitialRating.Deviation,
	}
}

// runInTx ensures the operation runs within a transaction when a live
// database is wired in.
func (s *RatingService) runInTx(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error {
	if s.db == nil {
		return fn(ctx, nil)
	}
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx)
	})
}

package rating

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"

	ratingservice "github.com/FAForever/rating-server/app/modules/rating/application"
	ratingdomain "github.com/FAForever/rating-server/app/modules/rating/domain"
	ratingqueue "github.com/FAForever/rating-server/app/modules/rating/infrastructure/queue"
	ratingdb "github.com/FAForever/rating-server/app/modules/rating/infrastructure/repositories"
	"github.com/FAForever/rating-server/config"
	"github.com/FAForever/rating-server/internal/eventbus"
	"github.com/FAForever/rating-server/internal/observability/metrics"
)

// Module bundles the rating pipeline: service, repository and worker queue.
type Module struct {
	Service ratingservice.Service
	Worker  *ratingqueue.Worker

	logger *slog.Logger
}

// NewModule wires the rating module. playerCallback may be nil when no live
// player registry is attached.
func NewModule(
	cfg *config.Config,
	db *bun.DB,
	repo ratingdb.Repository,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	m *metrics.RatingMetrics,
	tracer trace.Tracer,
	playerCallback ratingservice.PlayerRatingCallback,
) *Module {
	service := ratingservice.NewRatingService(repo, db, eventBus, logger, m, tracer, playerCallback,
		ratingservice.Options{
			RetryBudget:   cfg.Rating.RetryBudget,
			RetryDelay:    cfg.Rating.RetryDelay,
			InitialRating: ratingdomain.Rating{Mean: cfg.Rating.InitialMean, Deviation: cfg.Rating.InitialDeviation},
		})
	worker := ratingqueue.NewWorker(service, repo, logger, m, tracer, ratingqueue.Options{
		RefreshInterval: cfg.Rating.LeaderboardRefreshInterval,
	})
	return &Module{
		Service: service,
		Worker:  worker,
		logger:  logger,
	}
}

// Run initializes the worker and blocks until the context is canceled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) error {
	if wg != nil {
		defer wg.Done()
	}
	if err := m.Worker.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize rating worker: %w", err)
	}
	m.logger.InfoContext(ctx, "Rating module running")
	<-ctx.Done()
	return nil
}

// Close drains the worker gracefully; if the context expires first the
// worker is killed and remaining jobs are abandoned.
func (m *Module) Close(ctx context.Context) error {
	if err := m.Worker.Shutdown(ctx); err != nil {
		m.logger.WarnContext(ctx, "Graceful drain failed, killing rating worker")
		m.Worker.Kill()
		return err
	}
	return nil
}

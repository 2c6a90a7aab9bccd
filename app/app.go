package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/FAForever/rating-server/app/modules/rating"
	"github.com/FAForever/rating-server/config"
	"github.com/FAForever/rating-server/db/bundb"
	"github.com/FAForever/rating-server/internal/eventbus"
	"github.com/FAForever/rating-server/internal/observability/metrics"
)

// App wires configuration, storage, the event bus and the rating module.
type App struct {
	Cfg          *config.Config
	Logger       *slog.Logger
	RatingModule *rating.Module

	db            *bundb.DBService
	eventBus      eventbus.EventBus
	metricsServer *http.Server
}

// NewApp initializes the application with the necessary services and
// configuration.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		slog.String("service", "rating-server"),
		slog.String("environment", cfg.Observability.Environment),
	)

	dbService, err := bundb.NewBunDBService(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database service: %w", err)
	}

	eventBus, err := eventbus.NewNATSEventBus(cfg.NATS.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ratingMetrics := metrics.NewRatingMetrics(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.Observability.MetricsAddress, Handler: mux}

	tracer := otel.Tracer("rating-server")

	ratingModule := rating.NewModule(
		cfg,
		dbService.GetDB(),
		dbService.RatingDB,
		eventBus,
		logger,
		ratingMetrics,
		tracer,
		nil,
	)

	return &App{
		Cfg:           cfg,
		Logger:        logger,
		RatingModule:  ratingModule,
		db:            dbService,
		eventBus:      eventBus,
		metricsServer: metricsServer,
	}, nil
}

// Run blocks until the context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.RatingModule.Run(ctx, nil)
	})
	g.Go(func() error {
		err := a.metricsServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return a.metricsServer.Shutdown(context.Background())
	})

	return g.Wait()
}

// Close drains the rating worker, then releases infrastructure.
func (a *App) Close(ctx context.Context) {
	if err := a.RatingModule.Close(ctx); err != nil {
		a.Logger.Warn("Rating module shutdown failed", slog.String("error", err.Error()))
	}
	if err := a.eventBus.Close(); err != nil {
		a.Logger.Warn("Event bus close failed", slog.String("error", err.Error()))
	}
	if err := a.db.GetDB().Close(); err != nil {
		a.Logger.Warn("Database close failed", slog.String("error", err.Error()))
	}
}

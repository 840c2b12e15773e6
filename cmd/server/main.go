package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/tiergate/modules/billing"
	"github.com/dmitrymomot/tiergate/pkg/config"
	"github.com/dmitrymomot/tiergate/pkg/httpserver"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/pkg/reqmeta"
	"github.com/dmitrymomot/tiergate/svc/app"
)

type serverConfig struct {
	Logger  logger.Config
	HTTP    httpserver.Config
	App     app.Config
	Billing billing.Config
}

func main() {
	var cfg serverConfig
	config.MustLoad(&cfg)

	if err := run(cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfg serverConfig) error {
	log := logger.New(append(logger.FromConfig(cfg.Logger),
		logger.WithContextExtractors(reqmeta.LoggerExtractor()),
	)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg.App, log)
	defer a.Close()
	if err != nil {
		log.ErrorContext(ctx, "failed to initialize services", logger.Error(err))
		return err
	}

	r := chi.NewRouter()
	r.Use(reqmeta.Middleware, middleware.Recoverer)
	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, a.Checks()...))
	opts := billing.RouterOptions{
		Config:     cfg.Billing,
		Provider:   a.Provider,
		Checkout:   a.Checkout,
		Reconciler: a.Reconciler,
		Resolver:   a.Resolver,
		Guard:      a.Guard,
		Identity:   a.Identity,
		Usage:      a.Usage,
		Logger:     log,
	}
	if a.Limiter != nil {
		opts.RateLimiter = a.Limiter
	}
	r.Mount("/", billing.Router(opts))

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStopHook(a.Close),
	)
	if err := srv.Run(ctx, r); err != nil {
		log.ErrorContext(ctx, "server stopped with error", logger.Error(err))
		return err
	}
	return nil
}

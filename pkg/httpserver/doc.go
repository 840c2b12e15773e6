// Package httpserver runs an http.Handler with configured timeouts and
// graceful shutdown, and provides liveness and readiness handlers.
//
// Run blocks until the context is cancelled or the process receives
// SIGINT or SIGTERM, then drains in-flight requests within the shutdown
// timeout and calls the registered stop hooks.
//
// # Configuration
//
// Config is loaded from the environment. Zero values keep the defaults:
//
//	HTTP_ADDR                 listen address (default :8080)
//	HTTP_READ_HEADER_TIMEOUT  default 5s
//	HTTP_READ_TIMEOUT         default 15s
//	HTTP_WRITE_TIMEOUT        default 15s
//	HTTP_IDLE_TIMEOUT         default 60s
//	HTTP_SHUTDOWN_TIMEOUT     drain budget (default 10s)
//
// # Usage
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithStopHook(a.Close),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// Options passed to NewFromConfig are applied after the config, so they
// win. New builds a server from options alone. Addr waits for the
// listener and returns its address, which tests use with ":0".
//
// # Health
//
// LivenessHandler always answers 200 {"status":"alive"}. ReadinessHandler
// runs each Check with a two second timeout and answers 503 with
// {"status":"not_ready"} when any fails. The body names each check as "ok"
// or "failing"; errors are logged, never returned to the caller.
//
//	r.Get("/healthz", httpserver.LivenessHandler())
//	r.Get("/readyz", httpserver.ReadinessHandler(log,
//		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
//		httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)},
//	))
//
// # Errors
//
// Run wraps listener errors with ErrStart and returns ErrStart joined with
// ErrAlreadyRunning when called twice. Shutdown wraps drain failures with
// ErrShutdown.
package httpserver

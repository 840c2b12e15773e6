// Package redis provides helpers for connecting to a Redis server and
// checking its health.
//
// The package wraps the go-redis client and adds:
//
//   - Connect, which parses a connection URL and pings the server with
//     retries until it answers or the connect timeout elapses.
//   - Healthcheck, a readiness check that fits httpserver.Check.
//
// Higher level caching built on the client lives in pkg/cache, and the
// shared rate limit buckets in pkg/ratelimit reuse the same client.
//
// # Configuration
//
// Config is populated from the environment with pkg/config:
//
//	REDIS_URL              redis://:password@localhost:6379/0 (required)
//	REDIS_RETRY_ATTEMPTS   ping attempts before giving up (default 3)
//	REDIS_RETRY_INTERVAL   pause between attempts (default 2s)
//	REDIS_CONNECT_TIMEOUT  overall budget for Connect (default 15s)
//
// Use rediss:// for TLS connections.
//
// # Usage
//
// Load the configuration and connect:
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Wrap the client for entitlement and profile caching:
//
//	c := cache.NewRedis(client, cache.WithLogger(log))
//
// Register the readiness check:
//
//	checks := []httpserver.Check{{Name: "redis", Fn: redis.Healthcheck(client)}}
//	r.Get("/readyz", httpserver.ReadinessHandler(log, checks...))
//
// # Errors
//
// Connect returns ErrEmptyConnectionURL for a blank URL and
// ErrFailedToParseRedisConnString when the URL does not parse. When the
// server never answers it returns ErrRedisNotReady joined with the last
// ping error or the context error. Healthcheck failures wrap
// ErrHealthcheckFailed. All of them are joined with errors.Join, so
// errors.Is works on both the sentinel and the go-redis cause.
package redis

// Package ratelimit implements a token bucket limiter with in-memory and
// Redis backed state, plus chi-compatible HTTP middleware.
//
// A bucket holds up to Capacity tokens and regains RefillRate tokens every
// RefillInterval. Requests that find too few tokens are denied without
// draining the bucket further.
//
// # Configuration
//
// Config carries env tags without a prefix. The server nests it under
// RATE_LIMIT_:
//
//	RATE_LIMIT_CAPACITY         bucket size, zero disables limiting (default 0)
//	RATE_LIMIT_REFILL_RATE      tokens added per interval (default 1)
//	RATE_LIMIT_REFILL_INTERVAL  refill period (default 1s)
//
// Enabled reports whether a config asks for limiting. NewBucket rejects a
// config with any non-positive field with ErrInvalidConfig.
//
// # Stores
//
// NewRedisStore keeps state in Redis hashes updated by a Lua script, so
// every replica draws from the same buckets. Keys are prefixed with
// "ratelimit:" unless WithKeyPrefix says otherwise, and each call is bound
// by WithStoreTimeout (default 250ms). Buckets expire once they would have
// refilled completely.
//
// NewMemoryStore keeps buckets in a map and prunes idle ones every five
// minutes. WithCleanupInterval(0) disables the background goroutine; call
// Close to stop it.
//
// # Usage
//
//	store := ratelimit.NewRedisStore(client)
//	limiter, err := ratelimit.NewBucket(store, ratelimit.Config{
//		Capacity:       60,
//		RefillRate:     1,
//		RefillInterval: time.Second,
//	})
//	if err != nil {
//		return err
//	}
//
//	r.Use(ratelimit.Middleware(limiter,
//		ratelimit.Prefixed("api", ratelimit.Composite(
//			ratelimit.ByHeader("X-User-ID"),
//			ratelimit.ByIP(),
//		)),
//		ratelimit.WithLogger(log),
//	))
//
// Outside HTTP, call the bucket directly:
//
//	res, err := limiter.AllowN(ctx, "export:"+userID, 5)
//	if err == nil && !res.Allowed() {
//		time.Sleep(res.RetryAfter)
//	}
//
// # Keys
//
// ByIP uses the client address resolved by reqmeta. ByHeader reads a
// trimmed header value. Prefixed scopes a key so route groups keep
// separate buckets, and Composite joins the non-empty parts of several
// keys, hashing results longer than 64 bytes. An empty key skips limiting
// for that request.
//
// # Middleware
//
// Every checked response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Denied requests get 429 with Retry-After in whole
// seconds. The middleware fails open: when the store cannot be reached the
// request is served and the error is logged.
//
// # Errors
//
// NewBucket returns ErrInvalidConfig. AllowN returns ErrInvalidTokenCount
// when n is not positive. Store failures are joined with
// ErrStoreUnavailable.
package ratelimit

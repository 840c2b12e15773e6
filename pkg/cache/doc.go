// Package cache fronts the persistent store with a best-effort key-value
// cache for entitlements, user profiles, usage counters and webhook
// delivery counts.
//
// Two implementations share the Cache contract:
//
//   - Redis wraps a go-redis UniversalClient and is shared by every
//     replica.
//   - Memory is an in-process LRU with per-key expiry for tests and
//     single-instance deployments.
//
// Cache never fails its caller. Transport errors are logged and reported
// as a miss from Get or as false from the writes, so callers fall back to
// the store. Nothing in the cache is authoritative.
//
// # Configuration
//
// Redis runs every call under its own timeout (WithOpTimeout, default
// 500ms) and walks DeletePattern with SCAN using WithScanBatch as the
// COUNT hint (default 100). The server command reads both from
// CACHE_OP_TIMEOUT and CACHE_SCAN_BATCH. Memory holds 10000 entries unless
// WithCapacity says otherwise; the server reads MEMORY_CACHE_SIZE and
// rejects values below one.
//
// # Usage
//
//	client, err := redis.Connect(ctx, redisCfg)
//	if err != nil {
//		return err
//	}
//	c := cache.NewRedis(client,
//		cache.WithLogger(log),
//		cache.WithOpTimeout(500*time.Millisecond),
//	)
//
// In tests:
//
//	c := cache.NewMemory(cache.WithCapacity(100), cache.WithClock(clock.Now))
//
// Structured values go through the JSON helpers. A value that does not
// decode is treated as a miss:
//
//	cache.SetJSON(ctx, c, cache.UserKey(u.ID), u, time.Hour)
//	u, ok := cache.GetJSON[identity.User](ctx, c, cache.UserKey(id))
//
// # Keys
//
// Keys are built with the helpers in keys.go so every package agrees on
// the layout:
//
//	user:<id>                     cached profile
//	subscription:<id>             resolved entitlement
//	subscription_gen:<id>         entitlement generation, never expires
//	usage:<id>:<metric>           mirrored usage counter
//	webhook:<provider>:<event id> delivery count
//
// UsagePattern escapes glob characters in the user id before building the
// pattern for DeletePattern.
//
// # Entitlement invalidation
//
// A reader that loads an entitlement from the store can finish after a
// writer has changed the subscription and dropped the cached value. To
// keep such a reader from caching what it read, entitlements are stamped
// with a per-user generation:
//
//	gen := cache.Generation(ctx, c, cache.SubscriptionGenerationKey(userID))
//	// read the store, then cache the value together with gen
//
// Writers call InvalidateSubscription, which increments the generation
// before deleting the cached value. Readers treat an entry whose stamp
// differs from the current generation as a miss. InvalidateSubscription
// reports false when either step fails.
package cache

package cache

import (
	"context"
	"strconv"
)

// Generation reads a counter maintained with Increment. Absent or
// malformed counters read as zero.
//
// Readers snapshot the generation before loading from the source of truth
// and store it next to the value. Writers bump it before deleting the
// value, so a reader that raced a write leaves behind an entry whose
// generation no longer matches and is treated as a miss.
func Generation(ctx context.Context, c Cache, key string) int64 {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// InvalidateSubscription bumps the user's entitlement generation and drops
// the cached entitlement. It reports false when either step failed.
func InvalidateSubscription(ctx context.Context, c Cache, userID string) bool {
	_, bumped := c.Increment(ctx, SubscriptionGenerationKey(userID))
	deleted := c.Delete(ctx, SubscriptionKey(userID))
	return bumped && deleted
}

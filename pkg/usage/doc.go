// Package usage keeps lazily created, increment-only usage counters per
// user and metric type.
//
// A counter row is created at zero on first read or increment. Rows may
// carry an optional limit, set by operators directly in storage; a row
// without a limit is unbounded. Counters never decrease and nothing in
// this package resets them.
//
// # Usage
//
//	svc := usage.NewService(store, c,
//		usage.WithLogger(log),
//		usage.WithTimeout(2*time.Second),
//	)
//
// Check the limit before serving a metered call, then count it:
//
//	ok, err := svc.Allowed(ctx, userID, usage.MetricAPICalls)
//	if err == nil && !ok {
//		return handler.JSONError(http.StatusTooManyRequests, "Usage limit exceeded")
//	}
//	m, err := svc.Increment(ctx, userID, usage.MetricAPICalls)
//
// Allowed and Increment are separate store calls, so concurrent callers
// can overshoot a limit slightly. Use IncrementBy for batched units. Get
// returns the full Metric, and Metric.Remaining reports -1 for unbounded
// counters.
//
// # Cache mirror
//
// Every read and write mirrors the current value into the cache under
// cache.UsageKey. Cached returns that value without a store round trip and
// is meant for display only; the store stays authoritative. Deleting a
// user drops all of their mirrored counters.
//
// # Errors
//
// ErrMissingUser and ErrInvalidMetric report blank arguments. Store
// failures are joined with ErrPersistenceFailure. Each store call runs
// under the service timeout, two seconds by default.
package usage

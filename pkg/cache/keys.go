package cache

import "strings"

// UserKey caches the user profile.
func UserKey(userID string) string {
	return "user:" + userID
}

// SubscriptionKey caches the resolved entitlement of a user.
func SubscriptionKey(userID string) string {
	return "subscription:" + userID
}

// SubscriptionGenerationKey counts entitlement invalidations of a user. It
// carries no expiry so a counter cannot restart while entries stamped with
// an old value are still cached.
func SubscriptionGenerationKey(userID string) string {
	return "subscription_gen:" + userID
}

// UsageKey caches a single usage counter.
func UsageKey(userID, metric string) string {
	return "usage:" + userID + ":" + metric
}

// UsagePattern matches every usage counter of a user.
func UsagePattern(userID string) string {
	return "usage:" + escapeGlob(userID) + ":*"
}

// DeliveryKey counts webhook deliveries per provider event id.
func DeliveryKey(provider, eventID string) string {
	return "webhook:" + provider + ":" + eventID
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

package ratelimit

import (
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/tiergate/pkg/reqmeta"
)

// maxKeyLength caps composite keys before they are hashed.
const maxKeyLength = 64

// KeyFunc extracts a rate limit key from the request. An empty key skips
// limiting for that request.
type KeyFunc func(r *http.Request) string

// ByIP keys on the resolved client address.
func ByIP() KeyFunc {
	return func(r *http.Request) string {
		if m := reqmeta.FromContext(r.Context()); m.ClientIP != "" {
			return m.ClientIP
		}
		return reqmeta.ClientIP(r)
	}
}

// ByHeader keys on a request header, such as the authenticated user id.
func ByHeader(name string) KeyFunc {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(name))
	}
}

// Prefixed scopes another KeyFunc so route groups do not share buckets.
func Prefixed(prefix string, fn KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		if key := fn(r); key != "" {
			return prefix + ":" + key
		}
		return ""
	}
}

// Composite joins the non-empty parts of several keys. Results longer than
// maxKeyLength are replaced by their FNV-1a hash in base 36.
func Composite(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return ""
		}

		combined := strings.Join(parts, ":")
		if len(combined) <= maxKeyLength {
			return combined
		}
		h := fnv.New64a()
		_, _ = h.Write([]byte(combined))
		return strconv.FormatUint(h.Sum64(), 36)
	}
}

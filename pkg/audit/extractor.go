package audit

import (
	"context"

	"github.com/dmitrymomot/tiergate/pkg/reqmeta"
)

// RequestMetaExtractor copies request id, client ip and user agent
// captured by reqmeta.Middleware.
func RequestMetaExtractor() ContextExtractor {
	return func(ctx context.Context, e *Entry) {
		m := reqmeta.FromContext(ctx)
		e.RequestID = m.RequestID
		e.IPAddress = m.ClientIP
		e.UserAgent = m.UserAgent
	}
}

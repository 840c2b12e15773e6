// Package reqmeta attaches per-request metadata (request id, client ip and
// user agent) to the request context so that logs and audit entries can
// reference it without threading *http.Request through the domain layer.
//
// # Usage
//
// Install the middleware first so everything downstream sees the values:
//
//	r := chi.NewRouter()
//	r.Use(reqmeta.Middleware, middleware.Recoverer)
//
// Middleware keeps a well formed X-Request-ID from the caller (up to 128
// characters of letters, digits, '-' and '_'), generates a UUID
// otherwise, and echoes the id on the response.
//
// Read the values back anywhere a request context flows:
//
//	m := reqmeta.FromContext(ctx)
//	log.InfoContext(ctx, "checkout", slog.String("ip", m.ClientIP))
//
// LoggerExtractor adds request_id to every record logged with such a
// context, and audit.RequestMetaExtractor copies all three values into
// audit entries.
//
// # Client address
//
// ClientIP prefers CF-Connecting-IP and DO-Connecting-IP, then the first
// valid X-Forwarded-For entry, then X-Real-IP, and finally RemoteAddr.
// Invalid values are skipped. The headers are trusted as sent, so deploy
// behind a proxy that sets them.
package reqmeta

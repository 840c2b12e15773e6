// Package logger builds *slog.Logger instances with functional options,
// consistent attribute helpers, and injection of values stored in
// context.Context.
//
// New picks a text or JSON handler and wraps it with LogHandlerDecorator,
// which runs every registered ContextExtractor before delegating, so
// request scoped values such as the request id land on every record
// logged with a *Context method.
//
// # Configuration
//
// Config is loaded from the environment:
//
//	APP_ENV    production and staging log JSON at info or above,
//	           anything else logs text at debug (default development)
//	APP_NAME   service attribute (default tiergate)
//	LOG_LEVEL  minimum level (default info)
//
// FromConfig turns a Config into options for New.
//
// # Usage
//
//	log := logger.New(append(logger.FromConfig(cfg.Logger),
//		logger.WithContextExtractors(reqmeta.LoggerExtractor()),
//	)...)
//
//	log.InfoContext(ctx, "subscription applied",
//		logger.UserID(userID),
//		logger.SubscriptionID(subID),
//		logger.EventKind("activated"),
//	)
//
// Libraries accept an optional logger and scope it to their component:
//
//	s.log = log.With(logger.Component("usage"))
//
// Nop returns a logger that discards everything and is the default for
// optional logger dependencies and tests.
//
// # Attribute helpers
//
// Error, UserID, SubscriptionID, PaymentID, EventKind, EventID, Provider,
// Plan, RequestID and Component keep attribute keys uniform across
// packages. Helpers for identifiers return an empty attribute for an empty
// value, which slog drops.
//
// # Options
//
// WithLevel, WithFormat, WithOutput, WithAttr, WithContextExtractors and
// WithEnvironment configure New. WithFormat panics on an unknown format.
package logger

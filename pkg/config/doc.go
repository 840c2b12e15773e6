// Package config loads application configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11. The
// optional .env file is read once per process, then each configuration
// struct is populated from its `env` and `envDefault` field tags. Fields
// tagged `required` make Load fail, which lets services refuse to start
// with a partial configuration.
//
// # Usage
//
// Declare a struct with env tags and load it:
//
//	type Config struct {
//		WebhookSecret string        `env:"RAZORPAY_WEBHOOK_SECRET,required"`
//		CacheTTL      time.Duration `env:"ENTITLEMENT_CACHE_TTL" envDefault:"5m"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Commands that cannot start without configuration use MustLoad, which
// panics on error:
//
//	var cfg serverConfig
//	config.MustLoad(&cfg)
//
// Nested structs are composed with envPrefix, the way the server command
// combines the packages of this module:
//
//	type serverConfig struct {
//		HTTP    httpserver.Config
//		Logger  logger.Config
//		App     app.Config
//		Billing billing.Config
//	}
//
// and app.Config nests ratelimit.Config under `envPrefix:"RATE_LIMIT_"`.
//
// # Options
//
//   - WithPrefix scopes every tag of the target, so WithPrefix("BILLING_")
//     reads `env:"SECRET"` from BILLING_SECRET.
//   - WithEnvFiles replaces the default .env file. Missing files are not
//     an error.
//   - WithEnviron parses from a map instead of the process environment,
//     which keeps tests free of global state.
//
// For example:
//
//	err := config.Load(&cfg, config.WithEnviron(map[string]string{
//		"RAZORPAY_WEBHOOK_SECRET": "secret",
//	}))
//
// Variables already set in the process win over values from .env files.
//
// # Errors
//
// Load returns ErrNilPointer for a nil target and ErrParsingConfig joined
// with the caarlos0/env error when a variable is missing or malformed.
package config

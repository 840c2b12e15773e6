package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Config defines a token bucket. A zero Capacity disables limiting when
// the config comes from the environment, see Enabled.
type Config struct {
	Capacity       int           `env:"CAPACITY" envDefault:"0"`
	RefillRate     int           `env:"REFILL_RATE" envDefault:"1"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL" envDefault:"1s"`
}

// Enabled reports whether the config asks for any limiting at all.
func (c Config) Enabled() bool { return c.Capacity > 0 }

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// ttl is how long an idle bucket needs to refill completely, plus one
// interval of slack. Stores may forget a bucket after that.
func (c Config) ttl() time.Duration {
	intervals := (c.Capacity + c.RefillRate - 1) / c.RefillRate
	return time.Duration(intervals+1) * c.RefillInterval
}

// Result is the outcome of a single check.
type Result struct {
	Limit int
	// Remaining is negative when the request was denied.
	Remaining int
	ResetAt   time.Time
	// RetryAfter is zero for allowed requests.
	RetryAfter time.Duration
}

func (r Result) Allowed() bool { return r.Remaining >= 0 }

// Store keeps bucket state. Take refills the bucket as of now and removes
// n tokens when at least n are available. It returns the tokens left, or
// the shortfall as a negative number when the request is denied.
type Store interface {
	Take(ctx context.Context, key string, n int, now time.Time, cfg Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

// refill applies the elapsed intervals to a bucket and takes n tokens.
// Shared by the stores that keep state in process.
func refill(tokens int, last, now time.Time, n int, cfg Config) (int, time.Time, int) {
	if elapsed := now.Sub(last); elapsed >= cfg.RefillInterval {
		// Capped so large gaps cannot overflow the multiplication.
		intervals := min(int64(elapsed/cfg.RefillInterval), int64(cfg.Capacity/cfg.RefillRate+1))
		tokens = min(tokens+int(intervals)*cfg.RefillRate, cfg.Capacity)
		last = now
	}
	remaining := tokens - n
	if remaining >= 0 {
		tokens = remaining
	}
	return tokens, last, remaining
}

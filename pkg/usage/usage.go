package usage

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/dmitrymomot/tiergate/pkg/cache"
	"github.com/dmitrymomot/tiergate/pkg/logger"
)

// MetricAPICalls counts granted calls to feature-gated endpoints.
const MetricAPICalls = "api_calls"

var (
	ErrInvalidMetric      = errors.New("usage: metric type is required")
	ErrMissingUser        = errors.New("usage: user id is required")
	ErrPersistenceFailure = errors.New("usage: persistence failure")
)

// Metric is a per (user, metric type) counter. It only ever grows.
type Metric struct {
	UserID       string
	MetricType   string
	CurrentValue int64
	// LimitValue is nil when the metric is unbounded.
	LimitValue *int64
	ResetDate  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Remaining returns how much is left before the limit, or -1 when unbounded.
func (m Metric) Remaining() int64 {
	if m.LimitValue == nil {
		return -1
	}
	return max(*m.LimitValue-m.CurrentValue, 0)
}

// Store persists metrics. Both methods create the row when missing.
type Store interface {
	GetOrCreateMetric(ctx context.Context, userID, metricType string) (Metric, error)
	// IncrementMetric atomically adds by and returns the updated metric.
	IncrementMetric(ctx context.Context, userID, metricType string, by int64) (Metric, error)
}

// Service records usage. Counter values are mirrored in the cache as a
// read hint; the store stays authoritative.
type Service struct {
	store   Store
	cache   cache.Cache
	log     *slog.Logger
	timeout time.Duration
	ttl     time.Duration
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService panics if store or cache is nil.
func NewService(store Store, c cache.Cache, opts ...Option) *Service {
	if store == nil {
		panic("usage: store is required")
	}
	if c == nil {
		panic("usage: cache is required")
	}
	s := &Service{
		store:   store,
		cache:   c,
		log:     slog.Default(),
		timeout: 2 * time.Second,
		ttl:     cache.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("usage"))
	return s
}

// Get returns the metric, creating it at zero on first read.
func (s *Service) Get(ctx context.Context, userID, metricType string) (Metric, error) {
	if err := validate(userID, metricType); err != nil {
		return Metric{}, err
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	m, err := s.store.GetOrCreateMetric(opCtx, userID, metricType)
	if err != nil {
		return Metric{}, errors.Join(ErrPersistenceFailure, err)
	}
	s.mirror(ctx, m)
	return m, nil
}

// Increment adds one to the metric, creating it when missing.
func (s *Service) Increment(ctx context.Context, userID, metricType string) (Metric, error) {
	return s.IncrementBy(ctx, userID, metricType, 1)
}

// IncrementBy adds by (which must be positive) to the metric.
func (s *Service) IncrementBy(ctx context.Context, userID, metricType string, by int64) (Metric, error) {
	if err := validate(userID, metricType); err != nil {
		return Metric{}, err
	}
	if by <= 0 {
		return Metric{}, errors.New("usage: increment must be positive")
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	m, err := s.store.IncrementMetric(opCtx, userID, metricType, by)
	if err != nil {
		return Metric{}, errors.Join(ErrPersistenceFailure, err)
	}
	s.mirror(ctx, m)
	return m, nil
}

// Allowed reports whether one more unit fits under the metric's limit.
// Check and increment are separate store calls, so concurrent callers may
// overshoot a limit by their number.
func (s *Service) Allowed(ctx context.Context, userID, metricType string) (bool, error) {
	m, err := s.Get(ctx, userID, metricType)
	if err != nil {
		return false, err
	}
	return m.LimitValue == nil || m.CurrentValue < *m.LimitValue, nil
}

// Cached returns the last mirrored counter value without touching the store.
func (s *Service) Cached(ctx context.Context, userID, metricType string) (int64, bool) {
	raw, ok := s.cache.Get(ctx, cache.UsageKey(userID, metricType))
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *Service) mirror(ctx context.Context, m Metric) {
	key := cache.UsageKey(m.UserID, m.MetricType)
	if !s.cache.Set(ctx, key, []byte(strconv.FormatInt(m.CurrentValue, 10)), s.ttl) {
		s.log.DebugContext(ctx, "usage mirror skipped", logger.UserID(m.UserID), slog.String("metric", m.MetricType))
	}
}

func validate(userID, metricType string) error {
	if userID == "" {
		return ErrMissingUser
	}
	if metricType == "" {
		return ErrInvalidMetric
	}
	return nil
}

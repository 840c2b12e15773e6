package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ContextExtractor fills entry fields from the request context.
type ContextExtractor func(ctx context.Context, e *Entry)

// Logger builds entries from context and options and hands them to Storage.
type Logger struct {
	storage    Storage
	extractors []ContextExtractor
	now        func() time.Time
}

// Option configures Logger.
type Option func(*Logger)

// WithExtractors registers context extractors, run in order.
func WithExtractors(ex ...ContextExtractor) Option {
	return func(l *Logger) {
		for _, fn := range ex {
			if fn != nil {
				l.extractors = append(l.extractors, fn)
			}
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger panics if storage is nil.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &Logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log appends one entry. Storage errors are returned to the caller.
func (l *Logger) Log(ctx context.Context, action Action, opts ...EntryOption) error {
	e := Entry{
		ID:        uuid.New(),
		Action:    action,
		CreatedAt: l.now().UTC(),
	}
	for _, ex := range l.extractors {
		ex(ctx, &e)
	}
	for _, opt := range opts {
		opt(&e)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := l.storage.StoreAuditEntry(ctx, e); err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

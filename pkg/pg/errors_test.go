package pg_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/tiergate/pkg/pg"
)

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	wrap := func(code string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code})
	}

	tests := []struct {
		name      string
		err       error
		notFound  bool
		duplicate bool
		fk        bool
		retryable bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("boom")},
		{name: "pgx no rows", err: pgx.ErrNoRows, notFound: true},
		{name: "sql no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), notFound: true},
		{name: "unique", err: wrap("23505"), duplicate: true},
		{name: "foreign key", err: wrap("23503"), fk: true},
		{name: "serialization", err: wrap("40001"), retryable: true},
		{name: "deadlock", err: wrap("40P01"), retryable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.notFound, pg.IsNotFoundError(tt.err))
			assert.Equal(t, tt.duplicate, pg.IsDuplicateKeyError(tt.err))
			assert.Equal(t, tt.fk, pg.IsForeignKeyViolationError(tt.err))
			assert.Equal(t, tt.retryable, pg.IsRetryableError(tt.err))
		})
	}
}

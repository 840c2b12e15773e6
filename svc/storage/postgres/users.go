package postgres

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/tiergate/pkg/identity"
	"github.com/dmitrymomot/tiergate/pkg/pg"
)

func (s *Store) GetUser(ctx context.Context, id string) (identity.User, error) {
	const q = `SELECT id, email, first_name, last_name, created_at, updated_at FROM users WHERE id = $1`

	var u identity.User
	err := s.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return identity.User{}, identity.ErrUserNotFound
	}
	if err != nil {
		return identity.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// UpsertUser reports created=true when the row did not exist. xmax is
// zero only for freshly inserted tuples.
func (s *Store) UpsertUser(ctx context.Context, u identity.User) (bool, error) {
	const q = `
		INSERT INTO users (id, email, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0)`

	now := s.now().UTC()
	created := u.CreatedAt
	if created.IsZero() {
		created = now
	}

	var inserted bool
	if err := s.db.QueryRowContext(ctx, q, u.ID, u.Email, u.FirstName, u.LastName, created, now).Scan(&inserted); err != nil {
		return false, fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return inserted, nil
}

// DeleteUser removes the user. Subscriptions, payments and usage metrics
// go with it through ON DELETE CASCADE; audit rows stay.
func (s *Store) DeleteUser(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete user %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user %s: %w", id, err)
	}
	return n > 0, nil
}

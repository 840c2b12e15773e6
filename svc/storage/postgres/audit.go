package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrymomot/tiergate/pkg/audit"
)

func (s *Store) StoreAuditEntry(ctx context.Context, e audit.Entry) error {
	const q = `
		INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, details, ip_address, user_agent, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var details any
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = string(raw)
	}

	_, err := s.db.ExecContext(ctx, q,
		e.ID, toNullString(e.UserID), string(e.Action),
		toNullString(e.ResourceType), toNullString(e.ResourceID), details,
		toNullString(e.IPAddress), toNullString(e.UserAgent), toNullString(e.RequestID),
		e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("store audit entry %s: %w", e.Action, err)
	}
	return nil
}

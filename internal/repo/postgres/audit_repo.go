package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Record appends an audit entry. The log is append-only; nothing in this
// repo updates or deletes rows.
func (r *AuditRepo) Record(ctx context.Context, tx pgx.Tx, actorID int64, action, entityRef string, payload map[string]any) error {
	if actorID <= 0 || strings.TrimSpace(action) == "" {
		return fmt.Errorf("invalid audit payload")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	const query = `
INSERT INTO audit_log (
	actor_id,
	action,
	entity_ref,
	payload,
	created_at
) VALUES ($1, $2, $3, $4, NOW())
`

	if tx != nil {
		if _, err := tx.Exec(ctx, query, actorID, action, entityRef, body); err != nil {
			return fmt.Errorf("record audit entry: %w", err)
		}
		return nil
	}

	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if _, err := r.pool.Exec(ctx, query, actorID, action, entityRef, body); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}

	return nil
}

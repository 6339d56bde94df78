package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Create(ctx context.Context, tx pgx.Tx, userID int64, ntype, title, body string, metadata map[string]any) error {
	if userID <= 0 || strings.TrimSpace(ntype) == "" {
		return fmt.Errorf("invalid notification payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal notification metadata: %w", err)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO notifications (
	user_id,
	type,
	title,
	body,
	metadata,
	created_at
) VALUES ($1, $2, $3, $4, $5, NOW())
`, userID, ntype, title, body, meta); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	return nil
}

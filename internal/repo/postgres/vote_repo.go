package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VoteRepo struct {
	pool *pgxpool.Pool
}

func NewVoteRepo(pool *pgxpool.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

type VoteRecord struct {
	ID            int64
	SenderID      int64
	ReceiverID    int64
	Message       string
	PointsAwarded int
	CreatedAt     time.Time
}

func (r *VoteRepo) Create(ctx context.Context, tx pgx.Tx, senderID, receiverID int64, message string, points int, now time.Time) (VoteRecord, error) {
	if senderID <= 0 || receiverID <= 0 || strings.TrimSpace(message) == "" || points <= 0 {
		return VoteRecord{}, fmt.Errorf("invalid vote payload")
	}
	if tx == nil {
		return VoteRecord{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec VoteRecord
	err := tx.QueryRow(ctx, `
INSERT INTO votes (
	sender_id,
	receiver_id,
	message,
	points_awarded,
	created_at
) VALUES ($1, $2, $3, $4, $5)
RETURNING id, sender_id, receiver_id, message, points_awarded, created_at
`, senderID, receiverID, strings.TrimSpace(message), points, now.UTC()).Scan(
		&rec.ID,
		&rec.SenderID,
		&rec.ReceiverID,
		&rec.Message,
		&rec.PointsAwarded,
		&rec.CreatedAt,
	)
	if err != nil {
		return VoteRecord{}, fmt.Errorf("create vote: %w", err)
	}

	return rec, nil
}

func (r *VoteRepo) AttachTags(ctx context.Context, tx pgx.Tx, voteID int64, tagIDs []int64) error {
	if voteID <= 0 {
		return fmt.Errorf("invalid vote id")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if len(tagIDs) == 0 {
		return nil
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO vote_tags (vote_id, tag_id)
SELECT $1, tag_id FROM UNNEST($2::bigint[]) AS tag_id
ON CONFLICT DO NOTHING
`, voteID, tagIDs); err != nil {
		return fmt.Errorf("attach vote tags: %w", err)
	}

	return nil
}

// FindLatestBetween returns the most recent vote from senderID to receiverID
// created at or after since. Used for reciprocal detection inside the issuing
// transaction.
func (r *VoteRepo) FindLatestBetween(ctx context.Context, tx pgx.Tx, senderID, receiverID int64, since time.Time) (VoteRecord, bool, error) {
	if senderID <= 0 || receiverID <= 0 {
		return VoteRecord{}, false, fmt.Errorf("invalid reciprocal lookup payload")
	}
	if tx == nil {
		return VoteRecord{}, false, fmt.Errorf("transaction is required")
	}

	var rec VoteRecord
	err := tx.QueryRow(ctx, `
SELECT id, sender_id, receiver_id, message, points_awarded, created_at
FROM votes
WHERE sender_id = $1 AND receiver_id = $2 AND created_at >= $3
ORDER BY created_at DESC, id DESC
LIMIT 1
`, senderID, receiverID, since.UTC()).Scan(
		&rec.ID,
		&rec.SenderID,
		&rec.ReceiverID,
		&rec.Message,
		&rec.PointsAwarded,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VoteRecord{}, false, nil
		}
		return VoteRecord{}, false, fmt.Errorf("lookup reciprocal vote: %w", err)
	}

	return rec, true, nil
}

// CountSameTeamSince counts votes the sender issued to receivers on the given
// team since the month start. The cap check reads live rows rather than a
// dedicated counter so the arithmetic stays exact even if tracking rows are
// pruned mid-month.
func (r *VoteRepo) CountSameTeamSince(ctx context.Context, senderID, teamID int64, since time.Time) (int, error) {
	if senderID <= 0 || teamID <= 0 {
		return 0, fmt.Errorf("invalid same-team count payload")
	}
	if r.pool == nil {
		return 0, nil
	}

	var count int
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM votes v
JOIN users u ON u.id = v.receiver_id
WHERE v.sender_id = $1 AND u.team_id = $2 AND v.created_at >= $3
`, senderID, teamID, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count same-team votes: %w", err)
	}

	return count, nil
}

func (r *VoteRepo) ListSent(ctx context.Context, senderID int64, limit, offset int) ([]VoteRecord, error) {
	return r.list(ctx, "sender_id", senderID, limit, offset)
}

func (r *VoteRepo) ListReceived(ctx context.Context, receiverID int64, limit, offset int) ([]VoteRecord, error) {
	return r.list(ctx, "receiver_id", receiverID, limit, offset)
}

func (r *VoteRepo) CountSent(ctx context.Context, senderID int64) (int, error) {
	return r.count(ctx, "sender_id", senderID)
}

func (r *VoteRepo) CountReceived(ctx context.Context, receiverID int64) (int, error) {
	return r.count(ctx, "receiver_id", receiverID)
}

func (r *VoteRepo) list(ctx context.Context, column string, userID int64, limit, offset int) ([]VoteRecord, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if r.pool == nil {
		return []VoteRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
SELECT id, sender_id, receiver_id, message, points_awarded, created_at
FROM votes
WHERE %s = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, column), userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	items := make([]VoteRecord, 0, limit)
	for rows.Next() {
		var rec VoteRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.SenderID,
			&rec.ReceiverID,
			&rec.Message,
			&rec.PointsAwarded,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		items = append(items, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate votes: %w", rows.Err())
	}

	return items, nil
}

func (r *VoteRepo) count(ctx context.Context, column string, userID int64) (int, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return 0, nil
	}

	var total int
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`
SELECT COUNT(*) FROM votes WHERE %s = $1
`, column), userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}

	return total, nil
}

// ListBetween returns all votes created within [from, to), oldest first.
// Used by the monthly CSV export.
func (r *VoteRepo) ListBetween(ctx context.Context, from, to time.Time) ([]VoteRecord, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("invalid export window")
	}
	if r.pool == nil {
		return []VoteRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, sender_id, receiver_id, message, points_awarded, created_at
FROM votes
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at ASC, id ASC
`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list votes between: %w", err)
	}
	defer rows.Close()

	items := make([]VoteRecord, 0, 64)
	for rows.Next() {
		var rec VoteRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.SenderID,
			&rec.ReceiverID,
			&rec.Message,
			&rec.PointsAwarded,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan exported vote: %w", err)
		}
		items = append(items, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate exported votes: %w", rows.Err())
	}

	return items, nil
}

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

type TrackingRepo struct {
	pool *pgxpool.Pool
}

func NewTrackingRepo(pool *pgxpool.Pool) *TrackingRepo {
	return &TrackingRepo{pool: pool}
}

type VoteTrackingRecord struct {
	SenderID      int64
	ReceiverID    int64
	MonthYear     string
	VoteCount     int
	LastVoteAt    time.Time
	CooldownUntil *time.Time
}

func (r *TrackingRepo) GetPair(ctx context.Context, senderID, receiverID int64, monthYear string) (VoteTrackingRecord, bool, error) {
	if senderID <= 0 || receiverID <= 0 || strings.TrimSpace(monthYear) == "" {
		return VoteTrackingRecord{}, false, fmt.Errorf("invalid tracking lookup payload")
	}
	if r.pool == nil {
		return VoteTrackingRecord{}, false, nil
	}

	var rec VoteTrackingRecord
	err := r.pool.QueryRow(ctx, `
SELECT sender_id, receiver_id, month_year, vote_count, last_vote_at, cooldown_until
FROM vote_tracking
WHERE sender_id = $1 AND receiver_id = $2 AND month_year = $3
LIMIT 1
`, senderID, receiverID, monthYear).Scan(
		&rec.SenderID,
		&rec.ReceiverID,
		&rec.MonthYear,
		&rec.VoteCount,
		&rec.LastVoteAt,
		&rec.CooldownUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VoteTrackingRecord{}, false, nil
		}
		return VoteTrackingRecord{}, false, fmt.Errorf("get vote tracking: %w", err)
	}

	return rec, true, nil
}

func (r *TrackingRepo) GetWeeklyCount(ctx context.Context, senderID int64, weekYear string) (int, error) {
	if senderID <= 0 || strings.TrimSpace(weekYear) == "" {
		return 0, fmt.Errorf("invalid weekly tracking lookup payload")
	}
	if r.pool == nil {
		return 0, nil
	}

	var count int
	err := r.pool.QueryRow(ctx, `
SELECT vote_count
FROM weekly_vote_tracking
WHERE sender_id = $1 AND week_year = $2
LIMIT 1
`, senderID, weekYear).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get weekly vote tracking: %w", err)
	}

	return count, nil
}

// IncrementPair bumps the per-(sender, receiver, month) counter. Once the
// post-increment count reaches personCap the cooldown timestamp is set; an
// already-set cooldown is left untouched. The upsert serializes on the row,
// so two concurrent votes between the same pair cannot both observe the
// pre-increment count.
func (r *TrackingRepo) IncrementPair(ctx context.Context, tx pgx.Tx, senderID, receiverID int64, monthYear string, personCap int, cooldownUntil, now time.Time) (VoteTrackingRecord, error) {
	if senderID <= 0 || receiverID <= 0 || strings.TrimSpace(monthYear) == "" || personCap <= 0 {
		return VoteTrackingRecord{}, fmt.Errorf("invalid tracking increment payload")
	}
	if tx == nil {
		return VoteTrackingRecord{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var rec VoteTrackingRecord
	err := tx.QueryRow(ctx, `
INSERT INTO vote_tracking (
	sender_id,
	receiver_id,
	month_year,
	vote_count,
	last_vote_at,
	cooldown_until,
	created_at,
	updated_at
) VALUES (
	$1,
	$2,
	$3,
	1,
	$4,
	CASE WHEN 1 >= $5 THEN $6 ELSE NULL END,
	NOW(),
	NOW()
)
ON CONFLICT (sender_id, receiver_id, month_year) DO UPDATE SET
	vote_count = vote_tracking.vote_count + 1,
	last_vote_at = EXCLUDED.last_vote_at,
	cooldown_until = CASE
		WHEN vote_tracking.cooldown_until IS NOT NULL THEN vote_tracking.cooldown_until
		WHEN vote_tracking.vote_count + 1 >= $5 THEN $6
		ELSE NULL
	END,
	updated_at = NOW()
RETURNING sender_id, receiver_id, month_year, vote_count, last_vote_at, cooldown_until
`, senderID, receiverID, monthYear, now.UTC(), personCap, cooldownUntil.UTC()).Scan(
		&rec.SenderID,
		&rec.ReceiverID,
		&rec.MonthYear,
		&rec.VoteCount,
		&rec.LastVoteAt,
		&rec.CooldownUntil,
	)
	if err != nil {
		return VoteTrackingRecord{}, fmt.Errorf("increment vote tracking: %w", err)
	}

	return rec, nil
}

func (r *TrackingRepo) IncrementWeekly(ctx context.Context, tx pgx.Tx, senderID int64, weekYear string) (int, error) {
	if senderID <= 0 || strings.TrimSpace(weekYear) == "" {
		return 0, fmt.Errorf("invalid weekly tracking increment payload")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var count int
	err := tx.QueryRow(ctx, `
INSERT INTO weekly_vote_tracking (
	sender_id,
	week_year,
	vote_count,
	created_at,
	updated_at
) VALUES ($1, $2, 1, NOW(), NOW())
ON CONFLICT (sender_id, week_year) DO UPDATE SET
	vote_count = weekly_vote_tracking.vote_count + 1,
	updated_at = NOW()
RETURNING vote_count
`, senderID, weekYear).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment weekly vote tracking: %w", err)
	}

	return count, nil
}

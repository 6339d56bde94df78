package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrQuotaExhausted      = errors.New("quota wallet exhausted")
	ErrQuotaWalletMissing  = errors.New("quota wallet not found")
	ErrRewardWalletMissing = errors.New("reward wallet not found")
)

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

type QuotaWalletRecord struct {
	UserID      int64
	Balance     int
	PeriodStart time.Time
	PeriodEnd   time.Time
}

type RewardWalletRecord struct {
	UserID       int64
	Balance      int
	QuarterStart time.Time
	QuarterEnd   time.Time
}

func (r *WalletRepo) GetQuota(ctx context.Context, userID int64) (QuotaWalletRecord, error) {
	if userID <= 0 {
		return QuotaWalletRecord{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return QuotaWalletRecord{}, ErrQuotaWalletMissing
	}

	var rec QuotaWalletRecord
	err := r.pool.QueryRow(ctx, `
SELECT user_id, balance, period_start, period_end
FROM quota_wallets
WHERE user_id = $1
LIMIT 1
`, userID).Scan(&rec.UserID, &rec.Balance, &rec.PeriodStart, &rec.PeriodEnd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QuotaWalletRecord{}, ErrQuotaWalletMissing
		}
		return QuotaWalletRecord{}, fmt.Errorf("get quota wallet: %w", err)
	}

	return rec, nil
}

// DebitQuota takes one vote from the sender's giving capacity and returns the
// remaining balance. The balance guard and the row lock taken by UPDATE make
// this the authoritative quota check: concurrent debits of the same wallet
// serialize here, so the balance never goes negative.
func (r *WalletRepo) DebitQuota(ctx context.Context, tx pgx.Tx, userID int64) (int, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid quota debit payload")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var balance int
	err := tx.QueryRow(ctx, `
UPDATE quota_wallets
SET
	balance = balance - 1,
	updated_at = NOW()
WHERE user_id = $1 AND balance >= 1
RETURNING balance
`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrQuotaExhausted
		}
		return 0, fmt.Errorf("debit quota wallet: %w", err)
	}

	return balance, nil
}

func (r *WalletRepo) CreditReward(ctx context.Context, tx pgx.Tx, userID int64, points int) (int, error) {
	if userID <= 0 || points <= 0 {
		return 0, fmt.Errorf("invalid reward credit payload")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var balance int
	err := tx.QueryRow(ctx, `
UPDATE reward_wallets
SET
	balance = balance + $2,
	updated_at = NOW()
WHERE user_id = $1
RETURNING balance
`, userID, points).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrRewardWalletMissing
		}
		return 0, fmt.Errorf("credit reward wallet: %w", err)
	}

	return balance, nil
}

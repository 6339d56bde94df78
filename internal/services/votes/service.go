package votes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/matt-dinh13/empulse-sub000/internal/domain/enums"
	"github.com/matt-dinh13/empulse-sub000/internal/domain/rules"
	"github.com/matt-dinh13/empulse-sub000/internal/pkg/validate"
	pgrepo "github.com/matt-dinh13/empulse-sub000/internal/repo/postgres"
	settingssvc "github.com/matt-dinh13/empulse-sub000/internal/services/settings"
)

const announceTimeout = 5 * time.Second

type UserStore interface {
	GetByID(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
}

type WalletStore interface {
	GetQuota(ctx context.Context, userID int64) (pgrepo.QuotaWalletRecord, error)
	DebitQuota(ctx context.Context, tx pgx.Tx, userID int64) (int, error)
	CreditReward(ctx context.Context, tx pgx.Tx, userID int64, points int) (int, error)
}

type VoteStore interface {
	Create(ctx context.Context, tx pgx.Tx, senderID, receiverID int64, message string, points int, now time.Time) (pgrepo.VoteRecord, error)
	AttachTags(ctx context.Context, tx pgx.Tx, voteID int64, tagIDs []int64) error
	FindLatestBetween(ctx context.Context, tx pgx.Tx, senderID, receiverID int64, since time.Time) (pgrepo.VoteRecord, bool, error)
	CountSameTeamSince(ctx context.Context, senderID, teamID int64, since time.Time) (int, error)
	ListSent(ctx context.Context, senderID int64, limit, offset int) ([]pgrepo.VoteRecord, error)
	ListReceived(ctx context.Context, receiverID int64, limit, offset int) ([]pgrepo.VoteRecord, error)
	CountSent(ctx context.Context, senderID int64) (int, error)
	CountReceived(ctx context.Context, receiverID int64) (int, error)
}

type TrackingStore interface {
	GetPair(ctx context.Context, senderID, receiverID int64, monthYear string) (pgrepo.VoteTrackingRecord, bool, error)
	GetWeeklyCount(ctx context.Context, senderID int64, weekYear string) (int, error)
	IncrementPair(ctx context.Context, tx pgx.Tx, senderID, receiverID int64, monthYear string, personCap int, cooldownUntil, now time.Time) (pgrepo.VoteTrackingRecord, error)
	IncrementWeekly(ctx context.Context, tx pgx.Tx, senderID int64, weekYear string) (int, error)
}

type NotificationStore interface {
	Create(ctx context.Context, tx pgx.Tx, userID int64, ntype, title, body string, metadata map[string]any) error
}

type AuditStore interface {
	Record(ctx context.Context, tx pgx.Tx, actorID int64, action, entityRef string, payload map[string]any) error
}

type RateLimiter interface {
	AllowVote(ctx context.Context, senderID int64) (int64, bool, error)
}

type SettingsProvider interface {
	Resolve(ctx context.Context) (settingssvc.Snapshot, error)
}

// ChatAnnouncer posts a short public summary after a successful vote.
// Best effort only.
type ChatAnnouncer interface {
	Announce(ctx context.Context, text string) error
}

type IssueResult struct {
	Vote           pgrepo.VoteRecord
	QuotaRemaining int
	IsReciprocal   bool
}

type ListResult struct {
	Items []pgrepo.VoteRecord
	Page  int
	Limit int
	Total int
}

type QuotaView struct {
	Balance     int
	PeriodStart time.Time
	PeriodEnd   time.Time
}

type Dependencies struct {
	Pool          *pgxpool.Pool
	Users         UserStore
	Wallets       WalletStore
	Votes         VoteStore
	Tracking      TrackingStore
	Notifications NotificationStore
	Audit         AuditStore
	RateLimiter   RateLimiter
	Settings      SettingsProvider
	Announcer     ChatAnnouncer
	Logger        *zap.Logger
}

type Service struct {
	users         UserStore
	wallets       WalletStore
	votes         VoteStore
	tracking      TrackingStore
	notifications NotificationStore
	audit         AuditStore
	rateLimiter   RateLimiter
	settings      SettingsProvider
	announcer     ChatAnnouncer
	logger        *zap.Logger
	runTx         func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
	now           func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := deps.Pool
	return &Service{
		users:         deps.Users,
		wallets:       deps.Wallets,
		votes:         deps.Votes,
		tracking:      deps.Tracking,
		notifications: deps.Notifications,
		audit:         deps.Audit,
		rateLimiter:   deps.RateLimiter,
		settings:      deps.Settings,
		announcer:     deps.Announcer,
		logger:        logger,
		runTx: func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
			return pgrepo.WithTx(ctx, pool, fn)
		},
		now: time.Now,
	}
}

// Issue validates a candidate vote against the anti-abuse rules and, when
// eligible, performs the atomic transfer: quota debit, reward credit, vote
// insert, tracking updates and reciprocal detection. The eligibility reads
// run before the transaction; the only check repeated inside it is the quota
// debit, because quota is the one contended resource the pre-check cannot
// close the race on.
func (s *Service) Issue(ctx context.Context, senderID, receiverID int64, message string, tagIDs []int64) (IssueResult, error) {
	if senderID <= 0 || receiverID <= 0 {
		return IssueResult{}, ErrValidation
	}
	message = strings.TrimSpace(message)
	if !validate.RuneLenBetween(message, rules.MessageMinLen, rules.MessageMaxLen) {
		return IssueResult{}, ErrValidation
	}
	if s.users == nil || s.wallets == nil || s.votes == nil || s.tracking == nil || s.notifications == nil || s.audit == nil || s.settings == nil {
		return IssueResult{}, fmt.Errorf("vote dependencies are not configured")
	}

	now := s.now().UTC()

	cfg, err := s.settings.Resolve(ctx)
	if err != nil {
		return IssueResult{}, err
	}

	if s.rateLimiter != nil {
		retryAfter, allowed, err := s.rateLimiter.AllowVote(ctx, senderID)
		if err != nil {
			return IssueResult{}, fmt.Errorf("apply vote rate limiter: %w", err)
		}
		if !allowed {
			return IssueResult{}, TooFastError{RetryAfterSec: retryAfter}
		}
	}

	sender, receiver, err := s.loadParticipants(ctx, senderID, receiverID)
	if err != nil {
		return IssueResult{}, err
	}

	if err := s.checkEligibility(ctx, sender, receiver, cfg, now); err != nil {
		return IssueResult{}, err
	}

	monthKey := rules.MonthKey(now, time.UTC)
	weekKey := rules.WeekKey(now, time.UTC)
	monthStart := rules.MonthStart(now, time.UTC)
	cooldownUntil := now.Add(time.Duration(cfg.CooldownDays) * 24 * time.Hour)

	var (
		result       IssueResult
		isReciprocal bool
	)
	if err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		remaining, err := s.wallets.DebitQuota(txCtx, tx, senderID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrQuotaExhausted) {
				return ErrInsufficientQuota
			}
			return err
		}

		if _, err := s.wallets.CreditReward(txCtx, tx, receiverID, cfg.PointsPerVote); err != nil {
			return err
		}

		vote, err := s.votes.Create(txCtx, tx, senderID, receiverID, message, cfg.PointsPerVote, now)
		if err != nil {
			return err
		}

		if err := s.votes.AttachTags(txCtx, tx, vote.ID, tagIDs); err != nil {
			return err
		}

		preview := truncateRunes(message, cfg.MessagePreviewLen)
		if err := s.notifications.Create(txCtx, tx, receiverID,
			string(enums.NotificationTypeVoteReceived),
			"You received recognition",
			preview,
			map[string]any{
				"vote_id":   vote.ID,
				"sender_id": senderID,
				"points":    vote.PointsAwarded,
			},
		); err != nil {
			return err
		}

		if _, err := s.tracking.IncrementPair(txCtx, tx, senderID, receiverID, monthKey, cfg.MaxVotesPerPersonPerMonth, cooldownUntil, now); err != nil {
			return err
		}
		if _, err := s.tracking.IncrementWeekly(txCtx, tx, senderID, weekKey); err != nil {
			return err
		}

		reverse, found, err := s.votes.FindLatestBetween(txCtx, tx, receiverID, senderID, monthStart)
		if err != nil {
			return err
		}
		if found {
			isReciprocal = true
			if err := s.audit.Record(txCtx, tx, senderID,
				string(enums.AuditActionReciprocalVote),
				fmt.Sprintf("vote:%d", vote.ID),
				map[string]any{
					"vote_id":            vote.ID,
					"reciprocal_vote_id": reverse.ID,
					"sender_id":          senderID,
					"receiver_id":        receiverID,
					"month":              monthKey,
				},
			); err != nil {
				return err
			}
		}

		result = IssueResult{
			Vote:           vote,
			QuotaRemaining: remaining,
			IsReciprocal:   isReciprocal,
		}
		return nil
	}); err != nil {
		return IssueResult{}, err
	}

	s.announceVote(sender, receiver, result.Vote)

	return result, nil
}

func (s *Service) loadParticipants(ctx context.Context, senderID, receiverID int64) (pgrepo.UserRecord, pgrepo.UserRecord, error) {
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return pgrepo.UserRecord{}, pgrepo.UserRecord{}, ErrValidation
		}
		return pgrepo.UserRecord{}, pgrepo.UserRecord{}, fmt.Errorf("load sender: %w", err)
	}

	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return pgrepo.UserRecord{}, pgrepo.UserRecord{}, ErrReceiverInactive
		}
		return pgrepo.UserRecord{}, pgrepo.UserRecord{}, fmt.Errorf("load receiver: %w", err)
	}

	return sender, receiver, nil
}

// checkEligibility runs the policy checks in order, stopping at the first
// failure. The reads are not isolated from concurrent writers; only the
// quota re-check inside the transaction is authoritative.
func (s *Service) checkEligibility(ctx context.Context, sender, receiver pgrepo.UserRecord, cfg settingssvc.Snapshot, now time.Time) error {
	if !receiver.IsActive {
		return ErrReceiverInactive
	}
	if receiver.ID == sender.ID {
		return ErrSelfOrManagerTarget
	}
	if sender.ManagerID != nil && receiver.ID == *sender.ManagerID {
		return ErrSelfOrManagerTarget
	}

	weekKey := rules.WeekKey(now, time.UTC)
	weeklyCount, err := s.tracking.GetWeeklyCount(ctx, sender.ID, weekKey)
	if err != nil {
		return err
	}
	if weeklyCount >= cfg.MaxVotesPerWeek {
		return ErrWeeklyLimit
	}

	monthKey := rules.MonthKey(now, time.UTC)
	pair, found, err := s.tracking.GetPair(ctx, sender.ID, receiver.ID, monthKey)
	if err != nil {
		return err
	}
	if found {
		if pair.CooldownUntil != nil && pair.CooldownUntil.After(now) {
			return CooldownError{
				Until:         *pair.CooldownUntil,
				RemainingDays: rules.CooldownRemainingDays(*pair.CooldownUntil, now),
			}
		}
		if pair.VoteCount >= cfg.MaxVotesPerPersonPerMonth {
			return ErrPersonLimit
		}
	}

	if sender.TeamID > 0 && sender.TeamID == receiver.TeamID {
		monthStart := rules.MonthStart(now, time.UTC)
		sameTeamCount, err := s.votes.CountSameTeamSince(ctx, sender.ID, sender.TeamID, monthStart)
		if err != nil {
			return err
		}
		if sameTeamCount >= rules.SameTeamCap(cfg.QuotaPerMonth, cfg.SameTeamLimitPercent) {
			return ErrSameTeamLimit
		}
	}

	return nil
}

func (s *Service) announceVote(sender, receiver pgrepo.UserRecord, vote pgrepo.VoteRecord) {
	if s.announcer == nil {
		return
	}

	text := fmt.Sprintf("%s recognized %s (+%d points)", sender.DisplayName, receiver.DisplayName, vote.PointsAwarded)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
		defer cancel()

		if err := s.announcer.Announce(ctx, text); err != nil {
			s.logger.Warn("vote announcement failed",
				zap.Int64("vote_id", vote.ID),
				zap.Error(err),
			)
		}
	}()
}

func (s *Service) List(ctx context.Context, userID int64, direction enums.VoteDirection, page, limit int) (ListResult, error) {
	if userID <= 0 {
		return ListResult{}, ErrValidation
	}
	if s.votes == nil {
		return ListResult{}, fmt.Errorf("vote dependencies are not configured")
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	var (
		items []pgrepo.VoteRecord
		total int
		err   error
	)
	switch direction {
	case enums.VoteDirectionSent:
		if items, err = s.votes.ListSent(ctx, userID, limit, offset); err != nil {
			return ListResult{}, err
		}
		if total, err = s.votes.CountSent(ctx, userID); err != nil {
			return ListResult{}, err
		}
	case enums.VoteDirectionReceived:
		if items, err = s.votes.ListReceived(ctx, userID, limit, offset); err != nil {
			return ListResult{}, err
		}
		if total, err = s.votes.CountReceived(ctx, userID); err != nil {
			return ListResult{}, err
		}
	default:
		return ListResult{}, ErrValidation
	}

	return ListResult{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}

func (s *Service) Quota(ctx context.Context, userID int64) (QuotaView, error) {
	if userID <= 0 {
		return QuotaView{}, ErrValidation
	}
	if s.wallets == nil {
		return QuotaView{}, fmt.Errorf("vote dependencies are not configured")
	}

	wallet, err := s.wallets.GetQuota(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrQuotaWalletMissing) {
			return QuotaView{}, ErrValidation
		}
		return QuotaView{}, fmt.Errorf("read quota wallet: %w", err)
	}

	return QuotaView{
		Balance:     wallet.Balance,
		PeriodStart: wallet.PeriodStart,
		PeriodEnd:   wallet.PeriodEnd,
	}, nil
}

func truncateRunes(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

package votes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/matt-dinh13/empulse-sub000/internal/domain/enums"
	pgrepo "github.com/matt-dinh13/empulse-sub000/internal/repo/postgres"
	settingssvc "github.com/matt-dinh13/empulse-sub000/internal/services/settings"
)

const validMessage = "thanks for helping me debug the release pipeline"

type userStoreStub struct {
	users map[int64]pgrepo.UserRecord
}

func (s *userStoreStub) GetByID(_ context.Context, userID int64) (pgrepo.UserRecord, error) {
	rec, ok := s.users[userID]
	if !ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
	}
	return rec, nil
}

type walletStoreStub struct {
	quota          pgrepo.QuotaWalletRecord
	debitRemaining int
	debitErr       error
	debitCalls     int
	creditedUser   int64
	creditedPoints int
	creditCalls    int
}

func (s *walletStoreStub) GetQuota(_ context.Context, _ int64) (pgrepo.QuotaWalletRecord, error) {
	return s.quota, nil
}

func (s *walletStoreStub) DebitQuota(_ context.Context, _ pgx.Tx, _ int64) (int, error) {
	s.debitCalls++
	if s.debitErr != nil {
		return 0, s.debitErr
	}
	return s.debitRemaining, nil
}

func (s *walletStoreStub) CreditReward(_ context.Context, _ pgx.Tx, userID int64, points int) (int, error) {
	s.creditCalls++
	s.creditedUser = userID
	s.creditedPoints = points
	return points, nil
}

type voteStoreStub struct {
	nextID        int64
	created       []pgrepo.VoteRecord
	attachedTags  map[int64][]int64
	reciprocal    *pgrepo.VoteRecord
	sameTeamCount int
	sentItems     []pgrepo.VoteRecord
	sentTotal     int
}

func (s *voteStoreStub) Create(_ context.Context, _ pgx.Tx, senderID, receiverID int64, message string, points int, now time.Time) (pgrepo.VoteRecord, error) {
	s.nextID++
	rec := pgrepo.VoteRecord{
		ID:            s.nextID,
		SenderID:      senderID,
		ReceiverID:    receiverID,
		Message:       message,
		PointsAwarded: points,
		CreatedAt:     now,
	}
	s.created = append(s.created, rec)
	return rec, nil
}

func (s *voteStoreStub) AttachTags(_ context.Context, _ pgx.Tx, voteID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	if s.attachedTags == nil {
		s.attachedTags = map[int64][]int64{}
	}
	s.attachedTags[voteID] = append([]int64(nil), tagIDs...)
	return nil
}

func (s *voteStoreStub) FindLatestBetween(_ context.Context, _ pgx.Tx, _, _ int64, _ time.Time) (pgrepo.VoteRecord, bool, error) {
	if s.reciprocal == nil {
		return pgrepo.VoteRecord{}, false, nil
	}
	return *s.reciprocal, true, nil
}

func (s *voteStoreStub) CountSameTeamSince(_ context.Context, _, _ int64, _ time.Time) (int, error) {
	return s.sameTeamCount, nil
}

func (s *voteStoreStub) ListSent(_ context.Context, _ int64, _, _ int) ([]pgrepo.VoteRecord, error) {
	return s.sentItems, nil
}

func (s *voteStoreStub) ListReceived(_ context.Context, _ int64, _, _ int) ([]pgrepo.VoteRecord, error) {
	return nil, nil
}

func (s *voteStoreStub) CountSent(_ context.Context, _ int64) (int, error) {
	return s.sentTotal, nil
}

func (s *voteStoreStub) CountReceived(_ context.Context, _ int64) (int, error) {
	return 0, nil
}

type pairIncrement struct {
	senderID      int64
	receiverID    int64
	monthYear     string
	personCap     int
	cooldownUntil time.Time
}

type trackingStoreStub struct {
	weeklyCount    int
	pair           *pgrepo.VoteTrackingRecord
	pairIncrements []pairIncrement
	weeklyBumps    []string
}

func (s *trackingStoreStub) GetPair(_ context.Context, _, _ int64, _ string) (pgrepo.VoteTrackingRecord, bool, error) {
	if s.pair == nil {
		return pgrepo.VoteTrackingRecord{}, false, nil
	}
	return *s.pair, true, nil
}

func (s *trackingStoreStub) GetWeeklyCount(_ context.Context, _ int64, _ string) (int, error) {
	return s.weeklyCount, nil
}

func (s *trackingStoreStub) IncrementPair(_ context.Context, _ pgx.Tx, senderID, receiverID int64, monthYear string, personCap int, cooldownUntil, _ time.Time) (pgrepo.VoteTrackingRecord, error) {
	s.pairIncrements = append(s.pairIncrements, pairIncrement{
		senderID:      senderID,
		receiverID:    receiverID,
		monthYear:     monthYear,
		personCap:     personCap,
		cooldownUntil: cooldownUntil,
	})
	count := 1
	if s.pair != nil {
		count = s.pair.VoteCount + 1
	}
	return pgrepo.VoteTrackingRecord{
		SenderID:   senderID,
		ReceiverID: receiverID,
		MonthYear:  monthYear,
		VoteCount:  count,
	}, nil
}

func (s *trackingStoreStub) IncrementWeekly(_ context.Context, _ pgx.Tx, _ int64, weekYear string) (int, error) {
	s.weeklyBumps = append(s.weeklyBumps, weekYear)
	return s.weeklyCount + 1, nil
}

type notificationRecord struct {
	userID int64
	ntype  string
	body   string
	meta   map[string]any
}

type notificationStoreStub struct {
	created []notificationRecord
}

func (s *notificationStoreStub) Create(_ context.Context, _ pgx.Tx, userID int64, ntype, _, body string, metadata map[string]any) error {
	s.created = append(s.created, notificationRecord{
		userID: userID,
		ntype:  ntype,
		body:   body,
		meta:   metadata,
	})
	return nil
}

type auditRecord struct {
	actorID   int64
	action    string
	entityRef string
	payload   map[string]any
}

type auditStoreStub struct {
	entries []auditRecord
}

func (s *auditStoreStub) Record(_ context.Context, _ pgx.Tx, actorID int64, action, entityRef string, payload map[string]any) error {
	s.entries = append(s.entries, auditRecord{
		actorID:   actorID,
		action:    action,
		entityRef: entityRef,
		payload:   payload,
	})
	return nil
}

type rateLimiterStub struct {
	allowed    bool
	retryAfter int64
}

func (s rateLimiterStub) AllowVote(context.Context, int64) (int64, bool, error) {
	if s.allowed {
		return 0, true, nil
	}
	return s.retryAfter, false, nil
}

type settingsStub struct {
	snapshot settingssvc.Snapshot
	err      error
}

func (s settingsStub) Resolve(context.Context) (settingssvc.Snapshot, error) {
	if s.err != nil {
		return settingssvc.Snapshot{}, s.err
	}
	return s.snapshot, nil
}

type announcerStub struct {
	texts chan string
	err   error
}

func (s *announcerStub) Announce(_ context.Context, text string) error {
	if s.texts != nil {
		s.texts <- text
	}
	return s.err
}

type testEnv struct {
	svc           *Service
	users         *userStoreStub
	wallets       *walletStoreStub
	votes         *voteStoreStub
	tracking      *trackingStoreStub
	notifications *notificationStoreStub
	audit         *auditStoreStub
}

func newTestEnv(t *testing.T, snapshot settingssvc.Snapshot) *testEnv {
	t.Helper()

	managerID := int64(900)
	env := &testEnv{
		users: &userStoreStub{users: map[int64]pgrepo.UserRecord{
			101: {ID: 101, DisplayName: "Alice", TeamID: 1, ManagerID: &managerID, RegionID: 1, IsActive: true},
			202: {ID: 202, DisplayName: "Bob", TeamID: 2, RegionID: 1, IsActive: true},
			303: {ID: 303, DisplayName: "Carol", TeamID: 1, RegionID: 1, IsActive: true},
			404: {ID: 404, DisplayName: "Dave", TeamID: 2, RegionID: 1, IsActive: false},
			900: {ID: 900, DisplayName: "Boss", TeamID: 1, RegionID: 1, IsActive: true},
		}},
		wallets:       &walletStoreStub{debitRemaining: 7},
		votes:         &voteStoreStub{},
		tracking:      &trackingStoreStub{},
		notifications: &notificationStoreStub{},
		audit:         &auditStoreStub{},
	}

	env.svc = NewService(Dependencies{
		Users:         env.users,
		Wallets:       env.wallets,
		Votes:         env.votes,
		Tracking:      env.tracking,
		Notifications: env.notifications,
		Audit:         env.audit,
		RateLimiter:   rateLimiterStub{allowed: true},
		Settings:      settingsStub{snapshot: snapshot},
	})
	env.svc.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}
	env.svc.now = func() time.Time {
		return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	}

	return env
}

func defaultSnapshot() settingssvc.Snapshot {
	return settingssvc.Snapshot{
		QuotaPerMonth:             8,
		MaxVotesPerWeek:           3,
		MaxVotesPerPersonPerMonth: 2,
		CooldownDays:              7,
		SameTeamLimitPercent:      50,
		PointsPerVote:             10,
		MessagePreviewLen:         80,
	}
}

func TestIssueRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, defaultSnapshot())
	ctx := context.Background()

	if _, err := env.svc.Issue(ctx, 0, 202, validMessage, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero sender, got %v", err)
	}
	if _, err := env.svc.Issue(ctx, 101, 202, "too short", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for short message, got %v", err)
	}
	if _, err := env.svc.Issue(ctx, 101, 202, strings.Repeat("x", 501), nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for long message, got %v", err)
	}
}

func TestIssueRejectsSelfAndManagerTargets(t *testing.T) {
	env := newTestEnv(t, defaultSnapshot())
	ctx := context.Background()

	if _, err := env.svc.Issue(ctx, 101, 101, validMessage, nil); !errors.Is(err, ErrSelfOrManagerTarget) {
		t.Fatalf("expected self-target rejection, got %v", err)
	}
	if _, err := env.svc.Issue(ctx, 101, 900, validMessage, nil); !errors.Is(err, ErrSelfOrManagerTarget) {
		t.Fatalf("expected manager-target rejection, got %v", err)
	}
}

func TestIssueRejectsInactiveOrUnknownReceiver(t *testing.T) {
	env := newTestEnv(t, defaultSnapshot())
	ctx := context.Background()

	if _, err := env.svc.Issue(ctx, 101, 404, validMessage, nil); !errors.Is(err, ErrReceiverInactive) {
		t.Fatalf("expected inactive-receiver rejection, got %v", err)
	}
	if _, err := env.svc.Issue(ctx, 101, 999, validMessage, nil); !errors.Is(err, ErrReceiverInactive) {
		t.Fatalf("expected unknown-receiver rejection, got %v", err)
	}
}

func TestIssueRejectsWhenWeeklyCapReached(t *testing.T) {
	env := newTestEnv(t, defaultSnapshot())
	env.tracking.weeklyCount = 3

	if _, err := env.svc.Issue(context.Background(), 101, 202, validMessage, nil); !errors.Is(err, ErrWeeklyLimit) {
		t.Fatalf("expected weekly-limit rejection, got %v", err)
	}
	if env.wallets.debitCalls != 0 {
		t.Fatalf("weekly rejection must not touch the wallet, got %d debits", env.wallets.debitCalls)
	}
}

func TestIssueDistinguishesCooldownFromPersonCap(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	env := newTestEnv(t, defaultSnapshot())
	cooldownUntil := now.Add(49 * time.Hour)
	env.tracking.pair = &pgrepo.VoteTrackingRecord{
		SenderID:      101,
		ReceiverID:    202,
		MonthYear:     "2026-09",
		VoteCount:     2,
		CooldownUntil: &cooldownUntil,
	}

	_, err := env.svc.Issue(context.Background(), 101, 202, validMessage, nil)
	cd, ok := IsCooldown(err)
	if !ok {
		t.Fatalf("expected cooldown error, got %v", err)
	}
	if cd.RemainingDays != 3 {
		t.Fatalf("unexpected remaining days: got %d want 3", cd.RemainingDays)
	}

	// Cap reached but no cooldown recorded yet: generic per-person limit.
	env = newTestEnv(t, defaultSnapshot())
	env.tracking.pair = &pgrepo.VoteTrackingRecord{
		SenderID:   101,
		ReceiverID: 202,
		MonthYear:  "2026-09",
		VoteCount:  2,
	}
	if _, err := env.svc.Issue(context.Background(), 101, 202, validMessage, nil); !errors.Is(err, ErrPersonLimit) {
		t.Fatalf("expected person-limit rejection, got %v", err)
	}

	// Expired cooldown no longer gates, but the count still does.
	env = newTestEnv(t, defaultSnapshot())
	expired := now.Add(-time.Hour)
	env.tracking.pair = &pgrepo.VoteTrackingRecord{
		SenderID:      101,
		ReceiverID:    202,
		MonthYear:     "2026-09",
		VoteCount:     2,
		CooldownUntil: &expired,
	}
	if _, err := env.svc.Issue(context.Background(), 101, 202, validMessage, nil); !errors.Is(err, ErrPersonLimit) {
		t.Fatalf("expected person-limit rejection after cooldown expiry, got %v", err)
	}
}

func TestIssueEnforcesSameTeamShareCap(t *testing.T) {
	// quota 8 at 50% allows 4 same-team votes; the 5th must fail even with
	// quota remaining.
	env := newTestEnv(t, defaultSnapshot())
	env.votes.sameTeamCount = 4

	if _, err := env.svc.Issue(context.Background(), 101, 303, validMessage, nil); !errors.Is(err, ErrSameTeamLimit) {
		t.Fatalf("expected same-team rejection, got %v", err)
	}

	env = newTestEnv(t, defaultSnapshot())
	env.votes.sameTeamCount = 3
	if _, err := env.svc.Issue(context.Background(), 101, 303, validMessage, nil); err != nil {
		t.Fatalf("fourth same-team vote should pass, got %v", err)
	}

	// Cross-team votes ignore the same-team counter entirely.
	env = newTestEnv(t, defaultSnapshot())
	env.votes.sameTeamCount = 99
	if _, err := env.svc.Issue(context.Background(), 101, 202, validMessage, nil); err != nil {
		t.Fatalf("cross-team vote should pass, got %v", err)
	}
}

func TestIssueMovesBalancesAndRecordsEverything(t *testing.T) {
	env := newTestEnv(t, defaultSnapshot())
	ctx := context.Background()

	result, err := env.svc.Issue(ctx, 101, 202, validMessage, []int64{11, 12})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if env.wallets.debitCalls != 1 {
		t.Fatalf("expected one quota debit, got %d", env.wallets.debitCalls)
	}
	if result.QuotaRemaining != 7 {
		t.Fatalf("unexpected quota remaining: got %d want 7", result.QuotaRemaining)
	}
	if env.wallets.creditedUser != 202 || env.wallets.creditedPoints != 10 {
		t.Fatalf("unexpected reward credit: user=%d points=%d", env.wallets.creditedUser, env.wallets.creditedPoints)
	}

	if len(env.votes.created) != 1 {
		t.Fatalf("expected one vote record, got %d", len(env.votes.created))
	}
	vote := env.votes.created[0]
	if vote.SenderID != 101 || vote.ReceiverID != 202 || vote.PointsAwarded != 10 {
		t.Fatalf("unexpected vote record: %+v", vote)
	}
	if got := env.votes.attachedTags[vote.ID]; len(got) != 2 || got[0] != 11 || got[1] != 12 {
		t.Fatalf("unexpected tag links: %v", got)
	}

	if len(env.notifications.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(env.notifications.created))
	}
	notif := env.notifications.created[0]
	if notif.userID != 202 || notif.ntype != string(enums.NotificationTypeVoteReceived) {
		t.Fatalf("unexpected notification: %+v", notif)
	}

	if len(env.tracking.pairIncrements) != 1 {
		t.Fatalf("expected one pair increment, got %d", len(env.tracking.pairIncrements))
	}
	inc := env.tracking.pairIncrements[0]
	if inc.monthYear != "2026-09" || inc.personCap != 2 {
		t.Fatalf("unexpected pair increment: %+v", inc)
	}
	wantCooldown := time.Date(2026, 9, 8, 12, 0, 0, 0, time.UTC)
	if !inc.cooldownUntil.Equal(wantCooldown) {
		t.Fatalf("unexpected cooldown candidate: got %v want %v", inc.cooldownUntil, wantCooldown)
	}
	if len(env.tracking.weeklyBumps) != 1 || env.tracking.weeklyBumps[0] != "2026-W36" {
		t.Fatalf("unexpected weekly bumps: %v", env.tracking.weeklyBumps)
	}

	if result.IsReciprocal {
		t.Fatalf("vote without a reverse vote must not be flagged reciprocal")
	}
	if len(env.audit.entries) != 0 {
		t.Fatalf("expected no audit entries, got %d", len(env.audit.entries))
	}
}

func TestIssueTruncatesNotificationPreview(t *testing.T) {
	snapshot := defaultSnapshot()
	snapshot.MessagePreviewLen = 25
	env := newTestEnv(t, snapshot)

	message := "an appreciation message that definitely exceeds the preview window"
	if _, err := env.svc.Issue(context.Background(), 101, 202, message, nil); err != nil {
		t.Fatalf("issue: %v", err)
	}

	if len(env.notifications.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(env.notifications.created))
	}
	body := env.notifications.created[0].body
	if len([]rune(body)) != 25 {
		t.Fatalf("unexpected preview length: got %d want 25 (%q)", len([]rune(body)), body)
	}
	if !strings.HasPrefix(message, body) {
		t.Fatalf("preview %q is not a prefix of the message", body)
	}
}

func TestIssueFlagsReciprocalVoteAndAuditsOnce(t *testing.T) {
	env := newTestEnv(t, defaultSnapshot())
	env.votes.nextID = 500
	env.votes.reciprocal = &pgrepo.VoteRecord{
		ID:         42,
		SenderID:   202,
		ReceiverID: 101,
		CreatedAt:  time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
	}

	result, err := env.svc.Issue(context.Background(), 101, 202, validMessage, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !result.IsReciprocal {
		t.Fatalf("expected reciprocal flag on the second leg of the exchange")
	}

	if len(env.audit.entries) != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", len(env.audit.entries))
	}
	entry := env.audit.entries[0]
	if entry.action != string(enums.AuditActionReciprocalVote) {
		t.Fatalf("unexpected audit action: %s", entry.action)
	}
	if entry.entityRef != fmt.Sprintf("vote:%d", result.Vote.ID) {
		t.Fatalf("unexpected audit entity ref: %s", entry.entityRef)
	}
	if got, ok := entry.payload["reciprocal_vote_id"].(int64); !ok || got != 42 {
		t.Fatalf("audit payload must reference the reverse vote, got %+v", entry.payload["reciprocal_vote_id"])
	}
	if got, ok := entry.payload["vote_id"].(int64); !ok || got != result.Vote.ID {
		t.Fatalf("audit payload must reference the new vote, got %+v", entry.payload["vote_id"])
	}
}

func TestIssueMapsQuotaExhaustion(t *testing.T) {
	env := newTestEnv(t, defaultSnapshot())
	env.wallets.debitErr = pgrepo.ErrQuotaExhausted

	if _, err := env.svc.Issue(context.Background(), 101, 202, validMessage, nil); !errors.Is(err, ErrInsufficientQuota) {
		t.Fatalf("expected insufficient-quota rejection, got %v", err)
	}
	if env.wallets.creditCalls != 0 {
		t.Fatalf("failed debit must not credit the receiver, got %d credits", env.wallets.creditCalls)
	}
	if len(env.votes.created) != 0 {
		t.Fatalf("failed debit must not record a vote, got %d", len(env.votes.created))
	}
}

func TestIssueRejectsWhenRateLimited(t *testing.T) {
	env := newTestEnv(t, defaultSnapshot())
	env.svc.rateLimiter = rateLimiterStub{allowed: false, retryAfter: 17}

	_, err := env.svc.Issue(context.Background(), 101, 202, validMessage, nil)
	tf, ok := IsTooFast(err)
	if !ok {
		t.Fatalf("expected too-fast error, got %v", err)
	}
	if tf.RetryAfter() != 17 {
		t.Fatalf("unexpected retry_after: got %d want 17", tf.RetryAfter())
	}
	if env.wallets.debitCalls != 0 {
		t.Fatalf("rate-limited request must not reach the wallet")
	}
}

func TestIssueAnnouncementFailureDoesNotFailTheVote(t *testing.T) {
	env := newTestEnv(t, defaultSnapshot())
	announcer := &announcerStub{
		texts: make(chan string, 1),
		err:   errors.New("chat endpoint down"),
	}
	env.svc.announcer = announcer

	result, err := env.svc.Issue(context.Background(), 101, 202, validMessage, nil)
	if err != nil {
		t.Fatalf("issue must succeed despite announcer failure: %v", err)
	}
	if result.Vote.ID == 0 {
		t.Fatalf("expected a vote record in the result")
	}

	select {
	case text := <-announcer.texts:
		if !strings.Contains(text, "Alice") || !strings.Contains(text, "Bob") {
			t.Fatalf("unexpected announcement text: %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected an announcement attempt")
	}
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t, defaultSnapshot())
	env.votes.sentItems = []pgrepo.VoteRecord{{ID: 1}, {ID: 2}}
	env.votes.sentTotal = 12

	result, err := env.svc.List(context.Background(), 101, enums.VoteDirectionSent, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Page != 1 || result.Limit != 20 {
		t.Fatalf("expected defaulted pagination, got page=%d limit=%d", result.Page, result.Limit)
	}
	if len(result.Items) != 2 || result.Total != 12 {
		t.Fatalf("unexpected list result: items=%d total=%d", len(result.Items), result.Total)
	}

	if _, err := env.svc.List(context.Background(), 101, enums.VoteDirection("sideways"), 1, 20); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for bad direction, got %v", err)
	}
}

func TestQuotaView(t *testing.T) {
	env := newTestEnv(t, defaultSnapshot())
	env.wallets.quota = pgrepo.QuotaWalletRecord{
		UserID:      101,
		Balance:     5,
		PeriodStart: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}

	view, err := env.svc.Quota(context.Background(), 101)
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	if view.Balance != 5 {
		t.Fatalf("unexpected quota balance: got %d want 5", view.Balance)
	}
}

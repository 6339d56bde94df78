package settings

import (
	"context"
	"fmt"
	"strconv"
)

// Key identifies a tunable business rule stored in system_settings.
type Key string

const (
	KeyQuotaPerMonth             Key = "votes.quota_per_month"
	KeyMaxVotesPerWeek           Key = "votes.max_per_week"
	KeyMaxVotesPerPersonPerMonth Key = "votes.max_per_person_per_month"
	KeyCooldownDays              Key = "votes.cooldown_days"
	KeySameTeamLimitPercent      Key = "votes.same_team_limit_percent"
	KeyPointsPerVote             Key = "votes.points_per_vote"
	KeyMessagePreviewLen         Key = "notifications.message_preview_len"
)

type keySpec struct {
	Default int
	Min     int
	Max     int
}

// Stored values outside [Min, Max] fall back to the default, so a bad row in
// system_settings cannot produce an illegal cap.
var keySpecs = map[Key]keySpec{
	KeyQuotaPerMonth:             {Default: 8, Min: 1, Max: 100},
	KeyMaxVotesPerWeek:           {Default: 3, Min: 1, Max: 50},
	KeyMaxVotesPerPersonPerMonth: {Default: 2, Min: 1, Max: 20},
	KeyCooldownDays:              {Default: 7, Min: 1, Max: 90},
	KeySameTeamLimitPercent:      {Default: 50, Min: 0, Max: 100},
	KeyPointsPerVote:             {Default: 10, Min: 1, Max: 1000},
	KeyMessagePreviewLen:         {Default: 80, Min: 20, Max: 500},
}

// Snapshot is an immutable view of the resolved settings, taken once per
// request and passed explicitly into the eligibility checks and the
// transaction core.
type Snapshot struct {
	QuotaPerMonth             int
	MaxVotesPerWeek           int
	MaxVotesPerPersonPerMonth int
	CooldownDays              int
	SameTeamLimitPercent      int
	PointsPerVote             int
	MessagePreviewLen         int
}

type Store interface {
	Load(ctx context.Context, keys []string) (map[string]string, error)
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Resolve(ctx context.Context) (Snapshot, error) {
	keys := make([]string, 0, len(keySpecs))
	for key := range keySpecs {
		keys = append(keys, string(key))
	}

	stored := map[string]string{}
	if r.store != nil {
		loaded, err := r.store.Load(ctx, keys)
		if err != nil {
			return Snapshot{}, fmt.Errorf("resolve settings: %w", err)
		}
		stored = loaded
	}

	return Snapshot{
		QuotaPerMonth:             resolveInt(stored, KeyQuotaPerMonth),
		MaxVotesPerWeek:           resolveInt(stored, KeyMaxVotesPerWeek),
		MaxVotesPerPersonPerMonth: resolveInt(stored, KeyMaxVotesPerPersonPerMonth),
		CooldownDays:              resolveInt(stored, KeyCooldownDays),
		SameTeamLimitPercent:      resolveInt(stored, KeySameTeamLimitPercent),
		PointsPerVote:             resolveInt(stored, KeyPointsPerVote),
		MessagePreviewLen:         resolveInt(stored, KeyMessagePreviewLen),
	}, nil
}

// Default returns the snapshot produced when nothing is stored.
func Default() Snapshot {
	return Snapshot{
		QuotaPerMonth:             keySpecs[KeyQuotaPerMonth].Default,
		MaxVotesPerWeek:           keySpecs[KeyMaxVotesPerWeek].Default,
		MaxVotesPerPersonPerMonth: keySpecs[KeyMaxVotesPerPersonPerMonth].Default,
		CooldownDays:              keySpecs[KeyCooldownDays].Default,
		SameTeamLimitPercent:      keySpecs[KeySameTeamLimitPercent].Default,
		PointsPerVote:             keySpecs[KeyPointsPerVote].Default,
		MessagePreviewLen:         keySpecs[KeyMessagePreviewLen].Default,
	}
}

func resolveInt(stored map[string]string, key Key) int {
	spec := keySpecs[key]

	raw, ok := stored[string(key)]
	if !ok {
		return spec.Default
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return spec.Default
	}
	if value < spec.Min || value > spec.Max {
		return spec.Default
	}

	return value
}

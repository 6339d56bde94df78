package votes

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrSelfOrManagerTarget = errors.New("receiver is the sender or their direct manager")
	ErrReceiverInactive    = errors.New("receiver is inactive or not found")
	ErrWeeklyLimit         = errors.New("weekly vote limit reached")
	ErrPersonLimit         = errors.New("monthly per-person vote limit reached")
	ErrSameTeamLimit       = errors.New("same-team vote share limit reached")
	ErrInsufficientQuota   = errors.New("vote quota exhausted")
)

// CooldownError rejects a vote to a receiver who is cooldown-gated after the
// sender hit the per-person monthly cap. Distinct from ErrPersonLimit so the
// caller can surface the remaining wait.
type CooldownError struct {
	Until         time.Time
	RemainingDays int
}

func (e CooldownError) Error() string {
	return fmt.Sprintf("receiver is on cooldown for %d more day(s)", e.RemainingDays)
}

func IsCooldown(err error) (*CooldownError, bool) {
	var cd CooldownError
	if errors.As(err, &cd) {
		return &cd, true
	}
	return nil, false
}

// TooFastError rejects a request flood; safe to retry after the window.
type TooFastError struct {
	RetryAfterSec int64
}

func (e TooFastError) Error() string {
	return "too fast"
}

func (e TooFastError) RetryAfter() int64 {
	if e.RetryAfterSec <= 0 {
		return 1
	}
	return e.RetryAfterSec
}

func IsTooFast(err error) (*TooFastError, bool) {
	var tf TooFastError
	if errors.As(err, &tf) {
		return &tf, true
	}
	return nil, false
}

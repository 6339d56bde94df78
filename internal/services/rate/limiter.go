package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	votesMinuteWindow = time.Minute
	votes10SecWindow  = 10 * time.Second
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// Limiter throttles vote issuance per sender over short fixed windows. It is
// an abuse guard independent of the weekly and monthly business caps.
type Limiter struct {
	store     WindowStore
	perMinute int
	per10Sec  int
}

func NewLimiter(store WindowStore, perMinute, per10Sec int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	if per10Sec < 0 {
		per10Sec = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
		per10Sec:  per10Sec,
	}
}

// AllowVote registers an attempt and reports whether it may proceed. When
// blocked, the returned seconds tell the caller how long to wait before the
// widest exceeded window rolls over.
func (l *Limiter) AllowVote(ctx context.Context, senderID int64) (int64, bool, error) {
	if senderID <= 0 {
		return 0, false, fmt.Errorf("invalid sender id")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)

	windows := []struct {
		key    string
		window time.Duration
		limit  int
	}{
		{minuteKey(senderID), votesMinuteWindow, l.perMinute},
		{tenSecKey(senderID), votes10SecWindow, l.per10Sec},
	}

	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		count, ttl, err := l.store.IncrementWindow(ctx, w.key, w.window)
		if err != nil {
			return 0, false, err
		}
		if count > int64(w.limit) {
			retryAfterSec = max(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}

	return 0, true, nil
}

// RetryAfterVote reports the current wait without registering an attempt.
func (l *Limiter) RetryAfterVote(ctx context.Context, senderID int64) (int64, error) {
	if senderID <= 0 {
		return 0, fmt.Errorf("invalid sender id")
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)

	if l.perMinute > 0 {
		count, ttl, err := l.store.WindowState(ctx, minuteKey(senderID))
		if err != nil {
			return 0, err
		}
		if count >= int64(l.perMinute) {
			retryAfterSec = max(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if l.per10Sec > 0 {
		count, ttl, err := l.store.WindowState(ctx, tenSecKey(senderID))
		if err != nil {
			return 0, err
		}
		if count >= int64(l.per10Sec) {
			retryAfterSec = max(retryAfterSec, ceilSeconds(ttl))
		}
	}

	return retryAfterSec, nil
}

func minuteKey(senderID int64) string {
	return "rate:votes:min:" + strconv.FormatInt(senderID, 10)
}

func tenSecKey(senderID int64) string {
	return "rate:votes:10s:" + strconv.FormatInt(senderID, 10)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}

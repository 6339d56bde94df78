package rules

import (
	"fmt"
	"time"
)

// Message bounds for a recognition vote, counted in runes.
const (
	MessageMinLen = 20
	MessageMaxLen = 500
)

// MonthKey returns the calendar-month bucket for tracking rows, e.g. "2026-09".
func MonthKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format("2006-01")
}

// WeekKey returns the ISO-8601 week bucket, e.g. "2026-W36". ISO weeks are
// Thursday-anchored, so the key near year boundaries can belong to the
// adjacent year.
func WeekKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	year, week := now.In(loc).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthStart returns the first instant of the calendar month containing now.
func MonthStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// NextMonthStart returns the first instant of the month after the one
// containing now.
func NextMonthStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month()+1, 1, 0, 0, 0, 0, loc)
}

// SameTeamCap computes how many votes per month may go to teammates:
// floor(quotaPerMonth * percent / 100).
func SameTeamCap(quotaPerMonth, percent int) int {
	if quotaPerMonth <= 0 || percent <= 0 {
		return 0
	}
	return quotaPerMonth * percent / 100
}

// CooldownRemainingDays reports how many whole-or-partial days are left until
// the cooldown expires. Returns 0 when the cooldown already passed.
func CooldownRemainingDays(until, now time.Time) int {
	if !until.After(now) {
		return 0
	}
	remaining := until.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}

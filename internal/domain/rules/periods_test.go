package rules

import (
	"testing"
	"time"
)

func TestMonthKey(t *testing.T) {
	at := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	if got := MonthKey(at, time.UTC); got != "2026-09" {
		t.Fatalf("unexpected month key: got %q want %q", got, "2026-09")
	}
}

func TestWeekKeyUsesISOWeeks(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{
			name: "mid-year week",
			at:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			want: "2026-W36",
		},
		{
			// Monday 2025-12-29 falls in ISO week 1 of 2026.
			name: "end of december belongs to next iso year",
			at:   time.Date(2025, 12, 29, 12, 0, 0, 0, time.UTC),
			want: "2026-W01",
		},
		{
			// Friday 2027-01-01 falls in ISO week 53 of 2026.
			name: "early january belongs to previous iso year",
			at:   time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC),
			want: "2026-W53",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WeekKey(tc.at, time.UTC); got != tc.want {
				t.Fatalf("unexpected week key: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestMonthBounds(t *testing.T) {
	at := time.Date(2026, 9, 15, 23, 59, 0, 0, time.UTC)

	start := MonthStart(at, time.UTC)
	if want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("unexpected month start: got %v want %v", start, want)
	}

	next := NextMonthStart(at, time.UTC)
	if want := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("unexpected next month start: got %v want %v", next, want)
	}
}

func TestSameTeamCapFloors(t *testing.T) {
	cases := []struct {
		quota   int
		percent int
		want    int
	}{
		{quota: 8, percent: 50, want: 4},
		{quota: 8, percent: 49, want: 3},
		{quota: 10, percent: 33, want: 3},
		{quota: 0, percent: 50, want: 0},
		{quota: 8, percent: 0, want: 0},
	}

	for _, tc := range cases {
		if got := SameTeamCap(tc.quota, tc.percent); got != tc.want {
			t.Fatalf("SameTeamCap(%d, %d): got %d want %d", tc.quota, tc.percent, got, tc.want)
		}
	}
}

func TestCooldownRemainingDaysRoundsUp(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	if got := CooldownRemainingDays(now.Add(-time.Hour), now); got != 0 {
		t.Fatalf("expired cooldown should report 0 days, got %d", got)
	}
	if got := CooldownRemainingDays(now.Add(time.Hour), now); got != 1 {
		t.Fatalf("partial day should round up to 1, got %d", got)
	}
	if got := CooldownRemainingDays(now.Add(48*time.Hour), now); got != 2 {
		t.Fatalf("exactly two days should report 2, got %d", got)
	}
	if got := CooldownRemainingDays(now.Add(49*time.Hour), now); got != 3 {
		t.Fatalf("two days and an hour should round up to 3, got %d", got)
	}
}

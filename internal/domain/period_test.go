package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"weighttrack/internal/domain"
)

func r(from, to string) domain.DateRange {
	return domain.DateRange{From: from, To: to}
}

func TestComparisonPeriods(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want domain.Periods
	}{
		{
			name: "january wraps month and quarter into previous year",
			now:  time.Date(2026, time.January, 15, 9, 30, 0, 0, time.UTC),
			want: domain.Periods{
				LastMonth:       r("2025-12-01", "2025-12-31"),
				PreviousMonth:   r("2025-11-01", "2025-11-30"),
				LastQuarter:     r("2025-10-01", "2025-12-31"),
				PreviousQuarter: r("2025-07-01", "2025-09-30"),
				LastYear:        r("2025-01-01", "2025-12-31"),
				PreviousYear:    r("2024-01-01", "2024-12-31"),
			},
		},
		{
			name: "february previous month wraps to december",
			now:  time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
			want: domain.Periods{
				LastMonth:       r("2026-01-01", "2026-01-31"),
				PreviousMonth:   r("2025-12-01", "2025-12-31"),
				LastQuarter:     r("2025-10-01", "2025-12-31"),
				PreviousQuarter: r("2025-07-01", "2025-09-30"),
				LastYear:        r("2025-01-01", "2025-12-31"),
				PreviousYear:    r("2024-01-01", "2024-12-31"),
			},
		},
		{
			name: "leap february",
			now:  time.Date(2024, time.March, 31, 23, 59, 0, 0, time.UTC),
			want: domain.Periods{
				LastMonth:       r("2024-02-01", "2024-02-29"),
				PreviousMonth:   r("2024-01-01", "2024-01-31"),
				LastQuarter:     r("2023-10-01", "2023-12-31"),
				PreviousQuarter: r("2023-07-01", "2023-09-30"),
				LastYear:        r("2023-01-01", "2023-12-31"),
				PreviousYear:    r("2022-01-01", "2022-12-31"),
			},
		},
		{
			name: "second quarter",
			now:  time.Date(2026, time.May, 20, 12, 0, 0, 0, time.UTC),
			want: domain.Periods{
				LastMonth:       r("2026-04-01", "2026-04-30"),
				PreviousMonth:   r("2026-03-01", "2026-03-31"),
				LastQuarter:     r("2026-01-01", "2026-03-31"),
				PreviousQuarter: r("2025-10-01", "2025-12-31"),
				LastYear:        r("2025-01-01", "2025-12-31"),
				PreviousYear:    r("2024-01-01", "2024-12-31"),
			},
		},
		{
			name: "fourth quarter",
			now:  time.Date(2026, time.October, 18, 8, 0, 0, 0, time.UTC),
			want: domain.Periods{
				LastMonth:       r("2026-09-01", "2026-09-30"),
				PreviousMonth:   r("2026-08-01", "2026-08-31"),
				LastQuarter:     r("2026-07-01", "2026-09-30"),
				PreviousQuarter: r("2026-04-01", "2026-06-30"),
				LastYear:        r("2025-01-01", "2025-12-31"),
				PreviousYear:    r("2024-01-01", "2024-12-31"),
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, domain.ComparisonPeriods(tc.now))
		})
	}
}

func TestComparisonPeriodsUsesLocation(t *testing.T) {
	// 2026-03-01 01:00 in UTC+3 is still February in UTC.
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2026, time.March, 1, 1, 0, 0, 0, loc)

	p := domain.ComparisonPeriods(now)
	assert.Equal(t, r("2026-02-01", "2026-02-28"), p.LastMonth)

	p = domain.ComparisonPeriods(now.UTC())
	assert.Equal(t, r("2026-01-01", "2026-01-31"), p.LastMonth)
}

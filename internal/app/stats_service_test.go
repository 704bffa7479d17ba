package app_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weighttrack/internal/domain"
)

func seed(t *testing.T, s *services, userID int64, entries ...domain.EntryInput) {
	t.Helper()
	for _, in := range entries {
		_, _, err := s.entries.Upsert(context.Background(), userID, in)
		require.NoError(t, err)
	}
}

func TestStatsService_Compute(t *testing.T) {
	s := newServices(t)
	seed(t, s, 1,
		domain.EntryInput{EntryDate: "2026-01-01", WeightKg: 70},
		domain.EntryInput{EntryDate: "2026-01-15", WeightKg: 75},
		domain.EntryInput{EntryDate: "2026-02-01", WeightKg: 72},
	)
	seed(t, s, 2, domain.EntryInput{EntryDate: "2026-01-10", WeightKg: 120})

	st, err := s.stats.Compute(context.Background(), 1, domain.DateRange{})
	require.NoError(t, err)

	assert.Equal(t, 3, st.Count)
	assert.Equal(t, &domain.WeightPoint{WeightKg: 70, EntryDate: "2026-01-01"}, st.Min)
	assert.Equal(t, &domain.WeightPoint{WeightKg: 75, EntryDate: "2026-01-15"}, st.Max)
	assert.Equal(t, &domain.WeightPoint{WeightKg: 72, EntryDate: "2026-02-01"}, st.Latest)
	assert.Equal(t, ptr(72.3), st.Average)
	assert.Equal(t, ptr(2.0), st.Delta)
	assert.Equal(t, ptr(72.5), st.AverageLastMonth, "January covers two entries")
	assert.Nil(t, st.AveragePreviousMonth)
}

func TestStatsService_ComputeEmpty(t *testing.T) {
	s := newServices(t)
	st, err := s.stats.Compute(context.Background(), 1, domain.DateRange{})
	require.NoError(t, err)

	raw, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"count": 0, "min": null, "max": null, "average": null, "latest": null, "delta": null,
		"average_last_month": null, "average_previous_month": null,
		"average_last_quarter": null, "average_previous_quarter": null,
		"average_last_year": null, "average_previous_year": null
	}`, string(raw))
}

func TestStatsService_PeriodAverages(t *testing.T) {
	s := newServices(t)
	seed(t, s, 1,
		domain.EntryInput{EntryDate: "2024-06-01", WeightKg: 90},
		domain.EntryInput{EntryDate: "2025-11-20", WeightKg: 80},
		domain.EntryInput{EntryDate: "2025-12-10", WeightKg: 78},
		domain.EntryInput{EntryDate: "2026-01-10", WeightKg: 76},
	)

	// The filter narrows the headline figures only.
	st, err := s.stats.Compute(context.Background(), 1, domain.DateRange{From: "2026-01-01"})
	require.NoError(t, err)

	assert.Equal(t, 1, st.Count)
	assert.Equal(t, ptr(0.0), st.Delta)
	assert.Equal(t, ptr(76.0), st.AverageLastMonth)
	assert.Equal(t, ptr(78.0), st.AveragePreviousMonth)
	assert.Equal(t, ptr(79.0), st.AverageLastQuarter)
	assert.Nil(t, st.AveragePreviousQuarter)
	assert.Equal(t, ptr(79.0), st.AverageLastYear)
	assert.Equal(t, ptr(90.0), st.AveragePreviousYear)
}

func TestStatsService_DateFilter(t *testing.T) {
	s := newServices(t)
	seed(t, s, 1,
		domain.EntryInput{EntryDate: "2026-01-01", WeightKg: 70},
		domain.EntryInput{EntryDate: "2026-01-15", WeightKg: 75},
		domain.EntryInput{EntryDate: "2026-02-01", WeightKg: 72},
	)

	st, err := s.stats.Compute(context.Background(), 1, domain.DateRange{To: "2026-01-20"})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, "2026-01-15", st.Latest.EntryDate)
	assert.Equal(t, ptr(5.0), st.Delta)
	assert.Equal(t, ptr(72.5), st.Average)
}

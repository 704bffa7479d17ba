package app

import (
	"context"
	"math"
	"time"

	"weighttrack/internal/domain"
)

// Stats is the aggregate view over a user's entries. Nullable fields are
// nil when no entry contributes to them.
type Stats struct {
	Count                  int                 `json:"count"`
	Min                    *domain.WeightPoint `json:"min"`
	Max                    *domain.WeightPoint `json:"max"`
	Average                *float64            `json:"average"`
	Latest                 *domain.WeightPoint `json:"latest"`
	Delta                  *float64            `json:"delta"`
	AverageLastMonth       *float64            `json:"average_last_month"`
	AveragePreviousMonth   *float64            `json:"average_previous_month"`
	AverageLastQuarter     *float64            `json:"average_last_quarter"`
	AveragePreviousQuarter *float64            `json:"average_previous_quarter"`
	AverageLastYear        *float64            `json:"average_last_year"`
	AveragePreviousYear    *float64            `json:"average_previous_year"`
}

// StatsService computes statistics over the entry store.
type StatsService struct {
	repo    domain.EntryRepository
	entries *EntryService
}

// NewStatsService creates a StatsService. entries supplies the clock.
func NewStatsService(repo domain.EntryRepository, entries *EntryService) *StatsService {
	return &StatsService{repo: repo, entries: entries}
}

// Compute aggregates the user's entries inside r. The period averages
// cover their calendar windows only and ignore r.
func (s *StatsService) Compute(ctx context.Context, userID int64, r domain.DateRange) (*Stats, error) {
	count, avg, err := s.repo.Summary(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	st := &Stats{Count: count, Average: round1(avg)}

	if count > 0 {
		var earliest *domain.WeightPoint
		for _, q := range []struct {
			order domain.EntryOrder
			dst   **domain.WeightPoint
		}{
			{domain.OrderLightest, &st.Min},
			{domain.OrderHeaviest, &st.Max},
			{domain.OrderLatest, &st.Latest},
			{domain.OrderEarliest, &earliest},
		} {
			if *q.dst, err = s.repo.FirstBy(ctx, userID, r, q.order); err != nil {
				return nil, err
			}
		}
		if st.Latest != nil && earliest != nil {
			d := st.Latest.WeightKg - earliest.WeightKg
			st.Delta = round1(&d)
		}
	}

	p := domain.ComparisonPeriods(s.entries.now().In(time.Local))
	for _, w := range []struct {
		r   domain.DateRange
		dst **float64
	}{
		{p.LastMonth, &st.AverageLastMonth},
		{p.PreviousMonth, &st.AveragePreviousMonth},
		{p.LastQuarter, &st.AverageLastQuarter},
		{p.PreviousQuarter, &st.AveragePreviousQuarter},
		{p.LastYear, &st.AverageLastYear},
		{p.PreviousYear, &st.AveragePreviousYear},
	} {
		_, a, err := s.repo.Summary(ctx, userID, w.r)
		if err != nil {
			return nil, err
		}
		*w.dst = round1(a)
	}
	return st, nil
}

func round1(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*10) / 10
	return &r
}

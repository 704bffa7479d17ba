package app

import (
	"context"
	"time"

	"weighttrack/internal/domain"
)

const maxChartDays = 366

// ChartsService encapsulates chart data retrieval use cases.
type ChartsService struct {
	repo    domain.EntryRepository
	entries *EntryService
}

// NewChartsService creates a ChartsService backed by the given repository.
// entries supplies the clock.
func NewChartsService(repo domain.EntryRepository, entries *EntryService) *ChartsService {
	return &ChartsService{repo: repo, entries: entries}
}

// DayPoint is a single data point returned by GetDaily.
type DayPoint struct {
	Day    string       `json:"day"`
	Weight *WeightValue `json:"weight"`
}

// WeightValue is the optional weight value within a DayPoint.
type WeightValue struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// GetDaily returns one point per local day for the last days days, oldest
// first, with weights converted to unit. Days without an entry carry a nil
// weight.
func (s *ChartsService) GetDaily(ctx context.Context, userID int64, days int, unit string) ([]DayPoint, error) {
	if !domain.ValidUnit(unit) {
		return nil, domain.NewValidationError("unit", `unit must be "kg" or "lb"`)
	}
	if days < 1 {
		return nil, domain.NewValidationError("days", "days must be at least 1")
	}
	if days > maxChartDays {
		days = maxChartDays
	}

	today := s.entries.now().In(time.Local)
	points := make([]DayPoint, 0, days)

	for i := days - 1; i >= 0; i-- {
		dayStr := today.AddDate(0, 0, -i).Format(domain.DateLayout)

		entry, err := s.repo.LatestForDay(ctx, userID, dayStr)
		if err != nil {
			return nil, err
		}

		var wv *WeightValue
		if entry != nil {
			wv = &WeightValue{Value: domain.ConvertWeight(entry.WeightKg, domain.UnitKg, unit), Unit: unit}
		}
		points = append(points, DayPoint{Day: dayStr, Weight: wv})
	}
	return points, nil
}

package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weighttrack/internal/adapter/memory"
	"weighttrack/internal/app"
	"weighttrack/internal/domain"
)

// failingRepo fails every LatestForDay lookup.
type failingRepo struct {
	*memory.DB
}

func (failingRepo) LatestForDay(context.Context, int64, string) (*domain.WeightEntry, error) {
	return nil, errors.New("boom")
}

func TestGetDaily_BadUnit(t *testing.T) {
	s := newServices(t)
	_, err := s.charts.GetDaily(context.Background(), 1, 7, "stones")
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for bad unit, got %v", err)
	}
	if ve.Fields[0].Field != "unit" {
		t.Errorf("expected unit field, got %s", ve.Fields[0].Field)
	}
}

func TestGetDaily_BadDays(t *testing.T) {
	s := newServices(t)
	for _, days := range []int{0, -3} {
		_, err := s.charts.GetDaily(context.Background(), 1, days, "kg")
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("days=%d: expected validation error, got %v", days, err)
		}
	}
}

func TestGetDaily_Success(t *testing.T) {
	s := newServices(t)
	seed(t, s, 1,
		domain.EntryInput{EntryDate: "2026-02-13", WeightKg: 80},
		domain.EntryInput{EntryDate: "2026-02-15", WeightKg: 79.5},
	)

	points, err := s.charts.GetDaily(context.Background(), 1, 3, "kg")
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, app.DayPoint{Day: "2026-02-13", Weight: &app.WeightValue{Value: 80, Unit: "kg"}}, points[0])
	assert.Equal(t, app.DayPoint{Day: "2026-02-14"}, points[1])
	assert.Equal(t, app.DayPoint{Day: "2026-02-15", Weight: &app.WeightValue{Value: 79.5, Unit: "kg"}}, points[2])
}

func TestGetDaily_ConvertUnit(t *testing.T) {
	s := newServices(t)
	seed(t, s, 1, domain.EntryInput{EntryDate: "2026-02-15", WeightKg: 100})

	points, err := s.charts.GetDaily(context.Background(), 1, 1, "lb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Weight == nil || points[0].Weight.Value < 220 || points[0].Weight.Value > 221 {
		t.Errorf("expected ~220.46 lb, got %v", points[0].Weight)
	}
	if points[0].Weight.Unit != "lb" {
		t.Errorf("expected lb, got %s", points[0].Weight.Unit)
	}
}

func TestGetDaily_ClampsTo366(t *testing.T) {
	s := newServices(t)
	points, err := s.charts.GetDaily(context.Background(), 1, 500, "kg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 366 {
		t.Fatalf("expected 366 points (clamped), got %d", len(points))
	}
	if points[365].Day != "2026-02-15" {
		t.Errorf("expected the last point to be today, got %s", points[365].Day)
	}
}

func TestGetDaily_NoWeight(t *testing.T) {
	s := newServices(t)
	seed(t, s, 2, domain.EntryInput{EntryDate: "2026-02-15", WeightKg: 60})

	points, err := s.charts.GetDaily(context.Background(), 1, 1, "kg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Weight != nil {
		t.Errorf("expected nil weight, got %v", points[0].Weight)
	}
}

func TestGetDaily_RepositoryError(t *testing.T) {
	s := newServices(t)
	svc := app.NewChartsService(failingRepo{s.db}, s.entries)
	if _, err := svc.GetDaily(context.Background(), 1, 2, "kg"); err == nil {
		t.Fatal("expected repository error")
	}
}

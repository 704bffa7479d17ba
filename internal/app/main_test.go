package app_test

import (
	"testing"
	"time"

	"go.uber.org/goleak"

	"weighttrack/internal/adapter/memory"
	"weighttrack/internal/app"
	"weighttrack/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fixedNow is mid-February so the month, quarter and year windows all fall
// before it.
var fixedNow = time.Date(2026, time.February, 15, 9, 30, 0, 0, time.Local)

type services struct {
	db       *memory.DB
	metrics  *metrics.Metrics
	entries  *app.EntryService
	stats    *app.StatsService
	charts   *app.ChartsService
	transfer *app.TransferService
}

func newServices(t *testing.T) *services {
	t.Helper()
	db := memory.New()
	m, err := metrics.New()
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	entries := app.NewEntryService(db, m, nil).WithClock(func() time.Time { return fixedNow })
	return &services{
		db:       db,
		metrics:  m,
		entries:  entries,
		stats:    app.NewStatsService(db, entries),
		charts:   app.NewChartsService(db, entries),
		transfer: app.NewTransferService(db, entries, m, nil),
	}
}

func ptr[T any](v T) *T { return &v }

package domain

import (
	"context"
	"io"
	"time"
)

// DateLayout is the calendar-date format used for entry dates and filters.
const DateLayout = "2006-01-02"

// WeightEntry represents a single dated weight measurement owned by one user.
type WeightEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	EntryDate string    `json:"entry_date"`
	WeightKg  float64   `json:"weight_kg"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// WeightPoint is the reduced {weight, date} view used by statistics.
type WeightPoint struct {
	WeightKg  float64 `json:"weight_kg"`
	EntryDate string  `json:"entry_date"`
}

// EntryInput is the caller-supplied payload for an upsert.
type EntryInput struct {
	EntryDate string  `json:"entry_date"`
	WeightKg  float64 `json:"weight_kg"`
	Notes     *string `json:"notes"`
}

// DateRange is an inclusive [From, To] range of YYYY-MM-DD dates. Empty
// bounds are open.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SortDirection orders entries by date.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ListFilter selects one page of a user's entries.
type ListFilter struct {
	DateRange
	Sort  SortDirection
	Page  int
	Limit int
}

// Offset returns the number of rows skipped before the page starts.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// EntryOrder picks which single entry FirstBy returns.
type EntryOrder int

const (
	// OrderLightest sorts by weight ascending, earliest date first on ties.
	OrderLightest EntryOrder = iota
	// OrderHeaviest sorts by weight descending, earliest date first on ties.
	OrderHeaviest
	// OrderLatest sorts by date descending.
	OrderLatest
	// OrderEarliest sorts by date ascending.
	OrderEarliest
)

// EntryRepository is the port for weight entry persistence. Every method is
// scoped to the owning user.
type EntryRepository interface {
	// Upsert inserts the entry or, when one exists for the same date,
	// replaces its weight and notes. created reports which happened.
	Upsert(ctx context.Context, userID int64, in EntryInput, createdAt time.Time) (entry *WeightEntry, created bool, err error)
	GetByID(ctx context.Context, userID, id int64) (*WeightEntry, error)
	DeleteByID(ctx context.Context, userID, id int64) (bool, error)
	List(ctx context.Context, userID int64, f ListFilter) ([]WeightEntry, int, error)
	ListAll(ctx context.Context, userID int64) ([]WeightEntry, error)
	LatestForDay(ctx context.Context, userID int64, day string) (*WeightEntry, error)

	Summary(ctx context.Context, userID int64, r DateRange) (count int, avg *float64, err error)
	FirstBy(ctx context.Context, userID int64, r DateRange, order EntryOrder) (*WeightPoint, error)
}

// BackupWriter streams a full store backup. BackupFilename suggests a name
// for the stream, including its extension.
type BackupWriter interface {
	BackupFilename() string
	Backup(ctx context.Context, w io.Writer) error
}

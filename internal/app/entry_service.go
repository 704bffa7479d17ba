package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"weighttrack/internal/domain"
	"weighttrack/internal/metrics"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// ListQuery carries the raw list parameters as received from a request.
type ListQuery struct {
	From  string
	To    string
	Sort  string
	Page  string
	Limit string
}

// Pagination describes the page returned by List.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// EntryPage is one page of entries plus its pagination metadata.
type EntryPage struct {
	Data       []domain.WeightEntry `json:"data"`
	Pagination Pagination           `json:"pagination"`
}

// EntryService encapsulates weight entry use cases.
type EntryService struct {
	repo    domain.EntryRepository
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewEntryService creates an EntryService backed by the given repository.
func NewEntryService(repo domain.EntryRepository, m *metrics.Metrics, log *zap.SugaredLogger) *EntryService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &EntryService{repo: repo, metrics: m, log: log, now: time.Now}
}

// WithClock replaces the time source used to decide what "today" is.
func (s *EntryService) WithClock(now func() time.Time) *EntryService {
	s.now = now
	return s
}

// Today returns the current local date.
func (s *EntryService) Today() string {
	return s.now().In(time.Local).Format(domain.DateLayout)
}

// Upsert validates in and stores it, replacing any entry on the same date.
// created reports whether a new row was inserted.
func (s *EntryService) Upsert(ctx context.Context, userID int64, in domain.EntryInput) (*domain.WeightEntry, bool, error) {
	if err := domain.ValidateEntry(&in, s.Today()); err != nil {
		return nil, false, err
	}
	entry, created, err := s.repo.Upsert(ctx, userID, in, s.now())
	if err != nil {
		return nil, false, err
	}
	s.metrics.RecordUpsert(created)
	s.log.Debugw("entry stored", "user_id", userID, "entry_date", entry.EntryDate, "created", created)
	return entry, created, nil
}

// List returns one page of the user's entries.
func (s *EntryService) List(ctx context.Context, userID int64, q ListQuery) (*EntryPage, error) {
	f, err := ParseListFilter(q)
	if err != nil {
		return nil, err
	}
	rows, total, err := s.repo.List(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.WeightEntry{}
	}
	return &EntryPage{
		Data: rows,
		Pagination: Pagination{
			Page:       f.Page,
			Limit:      f.Limit,
			Total:      total,
			TotalPages: (total + f.Limit - 1) / f.Limit,
		},
	}, nil
}

// Get returns the user's entry with the given id.
func (s *EntryService) Get(ctx context.Context, userID, id int64) (*domain.WeightEntry, error) {
	e, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrEntryNotFound
	}
	return e, nil
}

// Delete removes the user's entry with the given id.
func (s *EntryService) Delete(ctx context.Context, userID, id int64) error {
	ok, err := s.repo.DeleteByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEntryNotFound
	}
	return nil
}

// ParseListFilter normalises raw list parameters. Out-of-range or
// unparsable page and limit values fall back to the nearest valid value;
// malformed dates are rejected.
func ParseListFilter(q ListQuery) (domain.ListFilter, error) {
	r, err := ParseDateRange(q.From, q.To)
	if err != nil {
		return domain.ListFilter{}, err
	}

	page, err := strconv.Atoi(strings.TrimSpace(q.Page))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(strings.TrimSpace(q.Limit))
	switch {
	case err != nil:
		limit = defaultLimit
	case limit < 1:
		limit = 1
	case limit > maxLimit:
		limit = maxLimit
	}

	sort := domain.SortDesc
	if strings.EqualFold(strings.TrimSpace(q.Sort), string(domain.SortAsc)) {
		sort = domain.SortAsc
	}

	return domain.ListFilter{DateRange: r, Sort: sort, Page: page, Limit: limit}, nil
}

// ParseDateRange validates optional from/to bounds.
func ParseDateRange(from, to string) (domain.DateRange, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from != "" && !domain.ValidDate(from) {
		return domain.DateRange{}, domain.NewValidationError("from", "from must be a valid date in YYYY-MM-DD format")
	}
	if to != "" && !domain.ValidDate(to) {
		return domain.DateRange{}, domain.NewValidationError("to", "to must be a valid date in YYYY-MM-DD format")
	}
	return domain.DateRange{From: from, To: to}, nil
}

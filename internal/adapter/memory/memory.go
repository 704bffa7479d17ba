// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"weighttrack/internal/csvio"
	"weighttrack/internal/domain"
)

type entryKey struct {
	userID int64
	date   string
}

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	entries  map[int64]*domain.WeightEntry
	byDate   map[entryKey]int64
	users    []*domain.User
	sessions map[string]*domain.Session

	entryIDCounter int64
	userIDCounter  int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		entries:  make(map[int64]*domain.WeightEntry),
		byDate:   make(map[entryKey]int64),
		sessions: make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.EntryRepository = (*DB)(nil)
var _ domain.UserRepository = (*UserRepo)(nil)
var _ domain.BackupWriter = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- EntryRepository ---

// Upsert inserts an entry or replaces weight and notes of the existing entry
// for the same date.
func (db *DB) Upsert(ctx context.Context, userID int64, in domain.EntryInput, createdAt time.Time) (*domain.WeightEntry, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := entryKey{userID: userID, date: in.EntryDate}
	if id, ok := db.byDate[key]; ok {
		e := db.entries[id]
		e.WeightKg = in.WeightKg
		e.Notes = copyNotes(in.Notes)
		ret := *e
		return &ret, false, nil
	}

	db.entryIDCounter++
	e := &domain.WeightEntry{
		ID:        db.entryIDCounter,
		UserID:    userID,
		EntryDate: in.EntryDate,
		WeightKg:  in.WeightKg,
		Notes:     copyNotes(in.Notes),
		CreatedAt: createdAt.UTC(),
	}
	db.entries[e.ID] = e
	db.byDate[key] = e.ID
	ret := *e
	return &ret, true, nil
}

// GetByID returns the entry if it belongs to userID.
func (db *DB) GetByID(ctx context.Context, userID, id int64) (*domain.WeightEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	e, ok := db.entries[id]
	if !ok || e.UserID != userID {
		return nil, nil
	}
	ret := *e
	return &ret, nil
}

// DeleteByID removes the entry if it belongs to userID.
func (db *DB) DeleteByID(ctx context.Context, userID, id int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	e, ok := db.entries[id]
	if !ok || e.UserID != userID {
		return false, nil
	}
	delete(db.entries, id)
	delete(db.byDate, entryKey{userID: userID, date: e.EntryDate})
	return true, nil
}

// List returns one page of the user's entries and the filtered total.
func (db *DB) List(ctx context.Context, userID int64, f domain.ListFilter) ([]domain.WeightEntry, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := db.selectLocked(userID, f.DateRange)
	sortByDate(result, f.Sort == domain.SortAsc)

	total := len(result)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return result[start:end], total, nil
}

// ListAll returns every entry of the user by ascending date.
func (db *DB) ListAll(ctx context.Context, userID int64) ([]domain.WeightEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := db.selectLocked(userID, domain.DateRange{})
	sortByDate(result, true)
	return result, nil
}

// LatestForDay returns the entry recorded for day, if any.
func (db *DB) LatestForDay(ctx context.Context, userID int64, day string) (*domain.WeightEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok := db.byDate[entryKey{userID: userID, date: day}]
	if !ok {
		return nil, nil
	}
	ret := *db.entries[id]
	return &ret, nil
}

// Summary counts entries in r and averages their weight.
func (db *DB) Summary(ctx context.Context, userID int64, r domain.DateRange) (int, *float64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows := db.selectLocked(userID, r)
	if len(rows) == 0 {
		return 0, nil, nil
	}
	var sum float64
	for _, e := range rows {
		sum += e.WeightKg
	}
	avg := sum / float64(len(rows))
	return len(rows), &avg, nil
}

// FirstBy returns the first entry in r under the given order.
func (db *DB) FirstBy(ctx context.Context, userID int64, r domain.DateRange, order domain.EntryOrder) (*domain.WeightPoint, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows := db.selectLocked(userID, r)
	if len(rows) == 0 {
		return nil, nil
	}

	var less func(a, b domain.WeightEntry) bool
	switch order {
	case domain.OrderLightest:
		less = func(a, b domain.WeightEntry) bool {
			if a.WeightKg != b.WeightKg {
				return a.WeightKg < b.WeightKg
			}
			return a.EntryDate < b.EntryDate
		}
	case domain.OrderHeaviest:
		less = func(a, b domain.WeightEntry) bool {
			if a.WeightKg != b.WeightKg {
				return a.WeightKg > b.WeightKg
			}
			return a.EntryDate < b.EntryDate
		}
	case domain.OrderLatest:
		less = func(a, b domain.WeightEntry) bool { return a.EntryDate > b.EntryDate }
	case domain.OrderEarliest:
		less = func(a, b domain.WeightEntry) bool { return a.EntryDate < b.EntryDate }
	default:
		return nil, fmt.Errorf("unknown entry order %d", order)
	}

	best := rows[0]
	for _, e := range rows[1:] {
		if less(e, best) {
			best = e
		}
	}
	return &domain.WeightPoint{WeightKg: best.WeightKg, EntryDate: best.EntryDate}, nil
}

// BackupFilename names the CSV Backup produces.
func (db *DB) BackupFilename() string {
	return "weighttrack-backup-" + time.Now().UTC().Format("20060102-150405") + ".csv"
}

// Backup writes every entry of every user as CSV.
func (db *DB) Backup(ctx context.Context, w io.Writer) error {
	db.mu.Lock()
	rows := make([]domain.WeightEntry, 0, len(db.entries))
	for _, e := range db.entries {
		rows = append(rows, *e)
	}
	db.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UserID != rows[j].UserID {
			return rows[i].UserID < rows[j].UserID
		}
		return rows[i].EntryDate < rows[j].EntryDate
	})

	dw, err := csvio.NewDumpWriter(w)
	if err != nil {
		return err
	}
	for _, e := range rows {
		if err := dw.Write(e); err != nil {
			return err
		}
	}
	return dw.Close()
}

// selectLocked copies the user's entries within r. Callers hold db.mu.
func (db *DB) selectLocked(userID int64, r domain.DateRange) []domain.WeightEntry {
	var out []domain.WeightEntry
	for _, e := range db.entries {
		if e.UserID != userID {
			continue
		}
		if r.From != "" && e.EntryDate < r.From {
			continue
		}
		if r.To != "" && e.EntryDate > r.To {
			continue
		}
		out = append(out, *e)
	}
	return out
}

func sortByDate(rows []domain.WeightEntry, asc bool) {
	sort.Slice(rows, func(i, j int) bool {
		if asc {
			return rows[i].EntryDate < rows[j].EntryDate
		}
		return rows[i].EntryDate > rows[j].EntryDate
	})
}

func copyNotes(n *string) *string {
	if n == nil {
		return nil
	}
	s := *n
	return &s
}

// --- UserRepository ---

// UserRepo implements user persistence.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new user repository.
func (db *DB) NewUserRepo() *UserRepo {
	return &UserRepo{db: db}
}

// GetByEmail retrieves a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.Email == email {
			ret := *u
			return &ret, nil
		}
	}
	// Return nil if not found
	return nil, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.ID == id {
			ret := *u
			return &ret, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.Email == email {
			return nil, domain.ErrUserExists
		}
	}

	r.db.userIDCounter++
	u := &domain.User{
		ID:           r.db.userIDCounter,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.db.users = append(r.db.users, u)
	ret := *u
	return &ret, nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return fmt.Errorf("user %d not found", id)
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		if time.Now().After(s.ExpiresAt) {
			delete(r.db.sessions, token)
			return nil, nil
		}
		ret := *s
		return &ret, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteForUser deletes every session of the user.
func (r *SessionRepo) DeleteForUser(ctx context.Context, userID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for k, v := range r.db.sessions {
		if v.UserID == userID {
			delete(r.db.sessions, k)
		}
	}
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}

package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"weighttrack/internal/domain"
)

// dbTime scans timestamps from drivers that return either time.Time or the
// text form SQLite stores.
type dbTime struct {
	time.Time
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into time", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}

type entryRow struct {
	ID        int64          `db:"id"`
	UserID    int64          `db:"user_id"`
	EntryDate string         `db:"entry_date"`
	WeightKg  float64        `db:"weight_kg"`
	Notes     sql.NullString `db:"notes"`
	CreatedAt dbTime         `db:"created_at"`
}

// upsertRow is an entryRow plus the Postgres insert marker.
type upsertRow struct {
	entryRow
	Inserted bool `db:"inserted"`
}

func (r entryRow) toDomain() domain.WeightEntry {
	e := domain.WeightEntry{
		ID:        r.ID,
		UserID:    r.UserID,
		EntryDate: r.EntryDate,
		WeightKg:  r.WeightKg,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.Notes.Valid {
		n := r.Notes.String
		e.Notes = &n
	}
	return e
}

type userRow struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    dbTime `db:"created_at"`
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{ID: r.ID, Email: r.Email, PasswordHash: r.PasswordHash, CreatedAt: r.CreatedAt.UTC()}
}

type sessionRow struct {
	Token     string `db:"token"`
	UserID    int64  `db:"user_id"`
	UserAgent string `db:"user_agent"`
	IP        string `db:"ip"`
	ExpiresAt dbTime `db:"expires_at"`
	CreatedAt dbTime `db:"created_at"`
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// isUniqueViolation reports whether err is a unique constraint failure on
// either backend.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

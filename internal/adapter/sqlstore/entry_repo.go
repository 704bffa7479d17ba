package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"weighttrack/internal/domain"
)

var _ domain.EntryRepository = (*DB)(nil)

const entryColumns = "id, user_id, entry_date, weight_kg, notes, created_at"

// Upsert inserts the entry or updates weight and notes of the row already
// stored for (user, date). created_at is left untouched on conflict.
func (d *DB) Upsert(ctx context.Context, userID int64, in domain.EntryInput, createdAt time.Time) (*domain.WeightEntry, bool, error) {
	createdAt = createdAt.UTC().Truncate(time.Microsecond)
	args := []any{userID, in.EntryDate, in.WeightKg, nullString(in.Notes), createdAt}

	if d.dialect == SQLite {
		return d.upsertSQLite(ctx, userID, in.EntryDate, args)
	}

	// xmax is zero only for a row the statement inserted.
	var row upsertRow
	if err := d.sql.GetContext(ctx, &row, d.sql.Rebind(upsertEntrySQL+", (xmax = 0) AS inserted"), args...); err != nil {
		return nil, false, fmt.Errorf("upsert entry: %w", err)
	}
	e := row.toDomain()
	return &e, row.Inserted, nil
}

const upsertEntrySQL = `INSERT INTO weight_entries (user_id, entry_date, weight_kg, notes, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, entry_date) DO UPDATE SET weight_kg = excluded.weight_kg, notes = excluded.notes
		RETURNING ` + entryColumns

// upsertSQLite checks for the row and upserts inside one transaction. SQLite
// runs on a single connection, so nothing interleaves between the two.
func (d *DB) upsertSQLite(ctx context.Context, userID int64, date string, args []any) (*domain.WeightEntry, bool, error) {
	tx, err := d.sql.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("upsert entry: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.GetContext(ctx, &existing, tx.Rebind("SELECT COUNT(*) FROM weight_entries WHERE user_id = ? AND entry_date = ?"), userID, date); err != nil {
		return nil, false, fmt.Errorf("upsert entry: %w", err)
	}
	var row entryRow
	if err := tx.GetContext(ctx, &row, tx.Rebind(upsertEntrySQL), args...); err != nil {
		return nil, false, fmt.Errorf("upsert entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("upsert entry: %w", err)
	}
	e := row.toDomain()
	return &e, existing == 0, nil
}

// GetByID returns the entry if it belongs to userID.
func (d *DB) GetByID(ctx context.Context, userID, id int64) (*domain.WeightEntry, error) {
	q := d.sql.Rebind("SELECT " + entryColumns + " FROM weight_entries WHERE id = ? AND user_id = ?")
	return d.getEntry(ctx, q, id, userID)
}

// DeleteByID removes the entry if it belongs to userID.
func (d *DB) DeleteByID(ctx context.Context, userID, id int64) (bool, error) {
	res, err := d.sql.ExecContext(ctx, d.sql.Rebind("DELETE FROM weight_entries WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	return n > 0, nil
}

// List returns one page of the user's entries and the filtered total.
func (d *DB) List(ctx context.Context, userID int64, f domain.ListFilter) ([]domain.WeightEntry, int, error) {
	where, args := rangeClause(userID, f.DateRange)

	var total int
	if err := d.sql.GetContext(ctx, &total, d.sql.Rebind("SELECT COUNT(*) FROM weight_entries WHERE "+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	dir := "DESC"
	if f.Sort == domain.SortAsc {
		dir = "ASC"
	}
	q := d.sql.Rebind("SELECT " + entryColumns + " FROM weight_entries WHERE " + where +
		" ORDER BY entry_date " + dir + " LIMIT ? OFFSET ?")

	var rows []entryRow
	if err := d.sql.SelectContext(ctx, &rows, q, append(args, f.Limit, f.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	return toEntries(rows), total, nil
}

// ListAll returns every entry of the user by ascending date.
func (d *DB) ListAll(ctx context.Context, userID int64) ([]domain.WeightEntry, error) {
	q := d.sql.Rebind("SELECT " + entryColumns + " FROM weight_entries WHERE user_id = ? ORDER BY entry_date ASC")
	var rows []entryRow
	if err := d.sql.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, fmt.Errorf("list all entries: %w", err)
	}
	return toEntries(rows), nil
}

// LatestForDay returns the entry recorded for day, if any.
func (d *DB) LatestForDay(ctx context.Context, userID int64, day string) (*domain.WeightEntry, error) {
	q := d.sql.Rebind("SELECT " + entryColumns + " FROM weight_entries WHERE user_id = ? AND entry_date = ?")
	return d.getEntry(ctx, q, userID, day)
}

// Summary counts entries in r and averages their weight.
func (d *DB) Summary(ctx context.Context, userID int64, r domain.DateRange) (int, *float64, error) {
	where, args := rangeClause(userID, r)
	var (
		count int
		avg   sql.NullFloat64
	)
	err := d.sql.QueryRowxContext(ctx, d.sql.Rebind("SELECT COUNT(*), AVG(weight_kg) FROM weight_entries WHERE "+where), args...).
		Scan(&count, &avg)
	if err != nil {
		return 0, nil, fmt.Errorf("summarise entries: %w", err)
	}
	if !avg.Valid {
		return count, nil, nil
	}
	return count, &avg.Float64, nil
}

var orderClauses = map[domain.EntryOrder]string{
	domain.OrderLightest: "weight_kg ASC, entry_date ASC",
	domain.OrderHeaviest: "weight_kg DESC, entry_date ASC",
	domain.OrderLatest:   "entry_date DESC",
	domain.OrderEarliest: "entry_date ASC",
}

// FirstBy returns the first entry in r under the given order.
func (d *DB) FirstBy(ctx context.Context, userID int64, r domain.DateRange, order domain.EntryOrder) (*domain.WeightPoint, error) {
	orderBy, ok := orderClauses[order]
	if !ok {
		return nil, fmt.Errorf("unknown entry order %d", order)
	}
	where, args := rangeClause(userID, r)
	q := d.sql.Rebind("SELECT weight_kg, entry_date FROM weight_entries WHERE " + where + " ORDER BY " + orderBy + " LIMIT 1")

	var p struct {
		WeightKg  float64 `db:"weight_kg"`
		EntryDate string  `db:"entry_date"`
	}
	if err := d.sql.GetContext(ctx, &p, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("first entry: %w", err)
	}
	return &domain.WeightPoint{WeightKg: p.WeightKg, EntryDate: p.EntryDate}, nil
}

func (d *DB) getEntry(ctx context.Context, q string, args ...any) (*domain.WeightEntry, error) {
	var row entryRow
	if err := d.sql.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	e := row.toDomain()
	return &e, nil
}

// rangeClause builds the user and inclusive date filter with ? binds.
func rangeClause(userID int64, r domain.DateRange) (string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{userID}
	if r.From != "" {
		conds = append(conds, "entry_date >= ?")
		args = append(args, r.From)
	}
	if r.To != "" {
		conds = append(conds, "entry_date <= ?")
		args = append(args, r.To)
	}
	return strings.Join(conds, " AND "), args
}

func toEntries(rows []entryRow) []domain.WeightEntry {
	out := make([]domain.WeightEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

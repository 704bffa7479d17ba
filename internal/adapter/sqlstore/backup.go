package sqlstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"weighttrack/internal/csvio"
	"weighttrack/internal/domain"
)

var _ domain.BackupWriter = (*DB)(nil)

// BackupFilename names the stream Backup produces.
func (d *DB) BackupFilename() string {
	name := "weighttrack-backup-" + time.Now().UTC().Format("20060102-150405")
	if d.dialect == SQLite {
		return name + ".db"
	}
	return name + ".csv"
}

// Backup streams a copy of the store to w. SQLite produces a database file
// via VACUUM INTO; Postgres produces a CSV dump of every entry.
func (d *DB) Backup(ctx context.Context, w io.Writer) error {
	if d.dialect == SQLite {
		return d.vacuumInto(ctx, w)
	}
	return d.dumpCSV(ctx, w)
}

func (d *DB) vacuumInto(ctx context.Context, w io.Writer) error {
	dir, err := os.MkdirTemp("", "weighttrack-backup-")
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	defer os.RemoveAll(dir)

	target := filepath.Join(dir, "backup.db")
	if _, err := d.sql.ExecContext(ctx, "VACUUM INTO ?", target); err != nil {
		return fmt.Errorf("backup: vacuum: %w", err)
	}

	f, err := os.Open(target)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("backup: copy: %w", err)
	}
	d.log.Infow("sqlite backup written", "path", target)
	return nil
}

func (d *DB) dumpCSV(ctx context.Context, w io.Writer) error {
	rows, err := d.sql.QueryxContext(ctx, "SELECT "+entryColumns+" FROM weight_entries ORDER BY user_id, entry_date")
	if err != nil {
		return fmt.Errorf("backup: query: %w", err)
	}
	defer rows.Close()

	dw, err := csvio.NewDumpWriter(w)
	if err != nil {
		return err
	}
	n := 0
	for rows.Next() {
		var row entryRow
		if err := rows.StructScan(&row); err != nil {
			return fmt.Errorf("backup: scan: %w", err)
		}
		if err := dw.Write(row.toDomain()); err != nil {
			return fmt.Errorf("backup: write: %w", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := dw.Close(); err != nil {
		return fmt.Errorf("backup: flush: %w", err)
	}
	d.log.Infow("csv backup written", "rows", n)
	return nil
}

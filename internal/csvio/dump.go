package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"weighttrack/internal/domain"
)

// DumpHeader is the first row of a full-store CSV backup.
var DumpHeader = []string{"user_id", "date", "weight", "notes"}

// DumpWriter streams entries of every user as backup rows.
type DumpWriter struct {
	cw *csv.Writer
}

// NewDumpWriter writes the dump header to w and returns a writer for rows.
func NewDumpWriter(w io.Writer) (*DumpWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(DumpHeader); err != nil {
		return nil, fmt.Errorf("write dump header: %w", err)
	}
	return &DumpWriter{cw: cw}, nil
}

// Write appends one entry.
func (d *DumpWriter) Write(e domain.WeightEntry) error {
	notes := ""
	if e.Notes != nil {
		notes = *e.Notes
	}
	return d.cw.Write([]string{
		strconv.FormatInt(e.UserID, 10),
		e.EntryDate,
		strconv.FormatFloat(e.WeightKg, 'f', -1, 64),
		notes,
	})
}

// Close flushes buffered rows.
func (d *DumpWriter) Close() error {
	d.cw.Flush()
	return d.cw.Error()
}

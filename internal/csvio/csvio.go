// Package csvio reads and writes the date,weight,notes CSV format used for
// entry export and import.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"weighttrack/internal/domain"
)

// Header is the first row of every export.
var Header = []string{"date", "weight", "notes"}

// ErrMalformedLine is reported for records that are not date,weight[,notes].
var ErrMalformedLine = errors.New("invalid line format")

// Record is one logical data row of an import. Line is the 1-indexed source
// line the row starts on. When Err is set the other fields are empty.
type Record struct {
	Line   int
	Date   string
	Weight string
	Notes  string
	Err    error
}

// WriteEntries writes the header and one row per entry in the given order.
func WriteEntries(w io.Writer, entries []domain.WeightEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		notes := ""
		if e.Notes != nil {
			notes = *e.Notes
		}
		row := []string{e.EntryDate, strconv.FormatFloat(e.WeightKg, 'f', -1, 64), notes}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.EntryDate, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadRecords splits text into data records. The first non-blank line is
// the header and is dropped; blank lines are skipped but still counted.
// Quoted notes may span several lines. When joining lines at an open quote
// does not yield a valid record, only the starting line is malformed and
// reading resumes on the line after it.
func ReadRecords(text string) []Record {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var (
		out        []Record
		seenHeader bool
	)
	for i := 0; i < len(lines); i++ {
		start := i
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if !seenHeader {
			seenHeader = true
			continue
		}
		rec := parseRecord(lines[i])
		if strings.Count(lines[i], `"`)%2 == 1 {
			if end, ok := closingLine(lines, i); ok {
				if joined := parseRecord(strings.Join(lines[i:end+1], "\n")); joined.Err == nil {
					rec = joined
					i = end
				}
			}
		}
		rec.Line = start + 1
		out = append(out, rec)
	}
	return out
}

// closingLine finds the first line after start at which the accumulated
// quote count becomes even.
func closingLine(lines []string, start int) (int, bool) {
	quotes := strings.Count(lines[start], `"`)
	for j := start + 1; j < len(lines); j++ {
		quotes += strings.Count(lines[j], `"`)
		if quotes%2 == 0 {
			return j, true
		}
	}
	return 0, false
}

func parseRecord(logical string) Record {
	r := csv.NewReader(strings.NewReader(logical))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil || len(fields) < 2 {
		return Record{Err: ErrMalformedLine}
	}
	// A joined record must end exactly where the joined lines end.
	if _, err := r.Read(); err != io.EOF {
		return Record{Err: ErrMalformedLine}
	}
	rec := Record{
		Date:   strings.TrimSpace(fields[0]),
		Weight: strings.TrimSpace(fields[1]),
	}
	if rec.Date == "" || rec.Weight == "" {
		return Record{Err: ErrMalformedLine}
	}
	if len(fields) > 2 {
		// Unquoted commas in the notes split them into extra fields.
		rec.Notes = strings.TrimSpace(strings.Join(fields[2:], ","))
	}
	return rec
}

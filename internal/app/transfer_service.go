package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"weighttrack/internal/csvio"
	"weighttrack/internal/domain"
	"weighttrack/internal/metrics"
)

// ImportResult summarises one CSV import.
type ImportResult struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// TransferService handles CSV export and import of a user's entries.
type TransferService struct {
	repo    domain.EntryRepository
	entries *EntryService
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

// NewTransferService creates a TransferService. Imported lines go through
// entries so they get the same validation as single writes.
func NewTransferService(repo domain.EntryRepository, entries *EntryService, m *metrics.Metrics, log *zap.SugaredLogger) *TransferService {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &TransferService{repo: repo, entries: entries, metrics: m, log: log}
}

// ExportFilename is the attachment name for an export made today.
func (s *TransferService) ExportFilename() string {
	return "weight-export-" + s.entries.Today() + ".csv"
}

// Export writes every entry of the user, oldest first.
func (s *TransferService) Export(ctx context.Context, userID int64, w io.Writer) error {
	rows, err := s.repo.ListAll(ctx, userID)
	if err != nil {
		return err
	}
	return csvio.WriteEntries(w, rows)
}

// Import parses text and upserts every valid line in order. Invalid lines
// are reported and skipped; a storage failure stops the import. When data
// lines exist but none was stored the result comes back inside an
// *ImportFailedError.
func (s *TransferService) Import(ctx context.Context, userID int64, text string) (*ImportResult, error) {
	res := &ImportResult{Errors: []ImportError{}}
	records := csvio.ReadRecords(text)

	for _, rec := range records {
		msg, err := s.importRecord(ctx, userID, rec)
		if err != nil {
			return nil, fmt.Errorf("import line %d: %w", rec.Line, err)
		}
		if msg != "" {
			res.Skipped++
			res.Errors = append(res.Errors, ImportError{Line: rec.Line, Message: msg})
			continue
		}
		res.Imported++
	}

	s.metrics.RecordImport(res.Imported, res.Skipped)
	s.log.Infow("import finished", "user_id", userID, "imported", res.Imported, "skipped", res.Skipped)

	if res.Imported == 0 && len(records) > 0 {
		return nil, &ImportFailedError{Result: res}
	}
	return res, nil
}

// importRecord stores one record. It returns the reason a record was
// rejected, or an error when the store itself failed.
func (s *TransferService) importRecord(ctx context.Context, userID int64, rec csvio.Record) (string, error) {
	if rec.Err != nil {
		return rec.Err.Error(), nil
	}
	w, err := strconv.ParseFloat(rec.Weight, 64)
	if err != nil {
		return "weight_kg must be a number", nil
	}
	in := domain.EntryInput{EntryDate: rec.Date, WeightKg: w}
	if rec.Notes != "" {
		notes := rec.Notes
		in.Notes = &notes
	}
	if _, _, err := s.entries.Upsert(ctx, userID, in); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return ve.Error(), nil
		}
		return "", err
	}
	return "", nil
}

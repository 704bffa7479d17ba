package adapthttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"weighttrack/internal/app"
	"weighttrack/internal/domain"
)

const maxImportBytes = 5 << 20

type entryRequest struct {
	EntryDate string   `json:"entry_date"`
	WeightKg  *float64 `json:"weight_kg"`
	Notes     *string  `json:"notes"`
}

// decodeEntry reads an entry body. Type mismatches are reported against the
// offending field so clients get the same messages as for range errors.
func decodeEntry(r *http.Request) (domain.EntryInput, error) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			switch te.Field {
			case "weight_kg":
				return domain.EntryInput{}, domain.NewValidationError("weight_kg", "weight_kg must be a number")
			case "entry_date":
				return domain.EntryInput{}, domain.NewValidationError("entry_date", "entry_date must be a valid date in YYYY-MM-DD format")
			case "notes":
				return domain.EntryInput{}, domain.NewValidationError("notes", "notes must be a string")
			}
		}
		return domain.EntryInput{}, domain.NewValidationError("body", "request body must be a JSON object")
	}
	if req.WeightKg == nil {
		return domain.EntryInput{}, domain.NewValidationError("weight_kg", "weight_kg must be a number")
	}
	return domain.EntryInput{EntryDate: strings.TrimSpace(req.EntryDate), WeightKg: *req.WeightKg, Notes: req.Notes}, nil
}

// entryID parses the {id} URL parameter. Anything that is not a positive
// integer cannot name an entry.
func entryID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, app.ErrEntryNotFound
	}
	return id, nil
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.entries.List(r.Context(), userFromContext(r).ID, app.ListQuery{
		From:  q.Get("from"),
		To:    q.Get("to"),
		Sort:  q.Get("sort"),
		Page:  q.Get("page"),
		Limit: q.Get("limit"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleUpsertEntry(w http.ResponseWriter, r *http.Request) {
	in, err := decodeEntry(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entry, created, err := s.entries.Upsert(r.Context(), userFromContext(r).ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"data": entry})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.entries.Get(r.Context(), userFromContext(r).ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entry})
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.entries.Delete(r.Context(), userFromContext(r).ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dr, err := app.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.stats.Compute(r.Context(), userFromContext(r).ID, dr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": st})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.transfer.Export(r.Context(), userFromContext(r).ID, &buf); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.transfer.ExportFilename()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleImport accepts a multipart upload in the "file" field, or the CSV
// as the raw request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	text, err := readImport(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.transfer.Import(r.Context(), userFromContext(r).ID, text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func readImport(r *http.Request) (string, error) {
	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return "", domain.NewValidationError("file", "file is too large")
			}
			return "", domain.NewValidationError("file", "missing 'file' field")
		}
		defer f.Close()
		src = f
	}

	b, err := io.ReadAll(src)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", domain.NewValidationError("file", "file is too large")
		}
		return "", err
	}
	return string(b), nil
}

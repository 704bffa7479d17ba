package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinWeightKg   = 3.0
	MaxWeightKg   = 150.0
	MaxNotesRunes = 500
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// FieldError is a single failed rule on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string { return e.Message }

// ValidationError collects every field failure of one input. Error reports
// the first one.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return e.Fields[0].Message
}

// Details maps each failed field to its message.
func (e *ValidationError) Details() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Message
		}
	}
	return out
}

// NewValidationError builds a single-field ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// ValidateEntry checks in against the entry rules. today is the caller's
// current local date; entries after it are rejected. Blank notes are
// normalised to nil in place.
func ValidateEntry(in *EntryInput, today string) error {
	in.Notes = normaliseNotes(in.Notes)

	var failed []FieldError
	for _, fe := range []*FieldError{
		validateEntryDate(in.EntryDate, today),
		validateWeight(in.WeightKg),
		validateNotes(in.Notes),
	} {
		if fe != nil {
			failed = append(failed, *fe)
		}
	}
	if len(failed) > 0 {
		return &ValidationError{Fields: failed}
	}
	return nil
}

// ValidDate reports whether s is a real YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func validateEntryDate(date, today string) *FieldError {
	if !ValidDate(date) {
		return &FieldError{Field: "entry_date", Message: "entry_date must be a valid date in YYYY-MM-DD format"}
	}
	// YYYY-MM-DD compares lexically.
	if date > today {
		return &FieldError{Field: "entry_date", Message: "entry_date cannot be in the future"}
	}
	return nil
}

func validateWeight(w float64) *FieldError {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return &FieldError{Field: "weight_kg", Message: "weight_kg must be a number"}
	}
	if w < MinWeightKg || w > MaxWeightKg {
		return &FieldError{Field: "weight_kg", Message: fmt.Sprintf("weight_kg must be between %g and %g", MinWeightKg, MaxWeightKg)}
	}
	if math.Round(w*10)/10 != w {
		return &FieldError{Field: "weight_kg", Message: "weight_kg must have at most one decimal place"}
	}
	return nil
}

func validateNotes(notes *string) *FieldError {
	if notes != nil && utf8.RuneCountInString(*notes) > MaxNotesRunes {
		return &FieldError{Field: "notes", Message: fmt.Sprintf("notes must be at most %d characters", MaxNotesRunes)}
	}
	return nil
}

func normaliseNotes(notes *string) *string {
	if notes == nil || strings.TrimSpace(*notes) == "" {
		return nil
	}
	return notes
}

package app

import (
	"errors"
	"fmt"
)

var (
	// ErrEntryNotFound is returned for entries that do not exist or belong
	// to another user. The two cases are indistinguishable to callers.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrForbidden indicates a privileged operation without the right secret.
	ErrForbidden = errors.New("forbidden")
)

// ImportError is one rejected line of an import.
type ImportError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportFailedError reports an import where data lines were present but
// none could be stored.
type ImportFailedError struct {
	Result *ImportResult
}

func (e *ImportFailedError) Error() string {
	return fmt.Sprintf("no valid lines in file (%d skipped)", e.Result.Skipped)
}

package exception

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingColumn is matched by every MissingColumnError through errors.Is.
	ErrMissingColumn = errors.New("missing column")
	// ErrTimestampParse marks a timestamp value that could not be parsed.
	// The feature pipeline drops such rows instead of returning this error.
	ErrTimestampParse = errors.New("unparseable timestamp")
	// ErrEmptyDataset is returned when no usable rows remain for training.
	ErrEmptyDataset = errors.New("empty dataset")
)

// MissingColumnError reports a required column that is absent from a table or file.
type MissingColumnError struct {
	Column    string
	Available []string
}

// NewMissingColumnError creates a MissingColumnError.
func NewMissingColumnError(column string, available []string) *MissingColumnError {
	return &MissingColumnError{Column: column, Available: append([]string(nil), available...)}
}

func (e *MissingColumnError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("missing column %q", e.Column)
	}
	return fmt.Sprintf("missing column %q (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

// Is makes errors.Is(err, ErrMissingColumn) true for any MissingColumnError.
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

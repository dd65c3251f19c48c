package measurement

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned for column labels outside the supported vocabulary.
var ErrUnknownKind = errors.New("unknown column kind")

// FormatError reports cell text that did not match the pattern for its kind.
type FormatError struct {
	Kind Kind
	Text string
	Err  error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s %q: %v", e.Kind, e.Text, e.Err)
	}
	return fmt.Sprintf("parse %s %q: unexpected format", e.Kind, e.Text)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func formatErr(kind Kind, text string, err error) *FormatError {
	return &FormatError{Kind: kind, Text: text, Err: err}
}

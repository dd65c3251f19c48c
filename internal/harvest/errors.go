package harvest

import (
	"errors"
	"fmt"
)

// Session stages named in timeout errors.
const (
	StageForm   = "form"
	StagePoll   = "poll"
	StageResult = "result"
)

// ErrSourceUnavailable marks a fetch refused without touching the page
// because the source has been unreachable too many times in a row.
var ErrSourceUnavailable = errors.New("source unavailable")

// NavigationError reports a failed page load.
type NavigationError struct {
	Target CalendarTarget
	URL    string
	Err    error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s for %s: %v", e.URL, e.Target, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a page element that never appeared within its bound.
type TimeoutError struct {
	Target CalendarTarget
	Stage  string
	Err    error
}

func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("timeout waiting for %s for %s: %v", e.Stage, e.Target, e.Err)
	}
	return fmt.Sprintf("timeout waiting for %s for %s", e.Stage, e.Target)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// DayError attaches target context to a failure inside one day fetch.
type DayError struct {
	Target CalendarTarget
	Err    error
}

func (e *DayError) Error() string {
	return fmt.Sprintf("day %s: %v", e.Target, e.Err)
}

func (e *DayError) Unwrap() error {
	return e.Err
}

// RetriesExhaustedError wraps the last failure once every attempt is spent.
type RetriesExhaustedError struct {
	Target   CalendarTarget
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("failed retries for %s after %d attempts: %v", e.Target, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err carries a TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

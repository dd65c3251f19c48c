package harvest

import (
	"context"
	"time"
)

// DayFetcher retrieves the raw results table for a single target.
type DayFetcher interface {
	FetchDay(ctx context.Context, target CalendarTarget) (RawTable, error)
}

// Browser is the shared handle every day fetch borrows a page from.
type Browser interface {
	DayFetcher
	Close() error
}

// Launcher creates the shared Browser for a run.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// RecordWriter persists every record of one day, or none of them.
type RecordWriter interface {
	WriteDay(ctx context.Context, records []DayRecord) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

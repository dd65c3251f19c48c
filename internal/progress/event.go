package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageRunDone  Stage = "RUN_DONE"
	StageDayStart Stage = "DAY_START"
	StageDayRetry Stage = "DAY_RETRY"
	StageDayDone  Stage = "DAY_DONE"
	StageDayError Stage = "DAY_ERROR"
)

// Event captures a single milestone of a harvest run.
type Event struct {
	// RunID identifies the run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which run or day milestone occurred.
	Stage Stage
	// Month and Day scope day events to a calendar target.
	Month int
	Day   int
	// Attempt is the 1-based attempt number that just failed, for DAY_RETRY.
	Attempt int
	// Records counts the records written for DAY_DONE, or the run total for RUN_DONE.
	Records int
	// Dur captures day and run latency.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// IsDay reports whether the stage is scoped to a single calendar target.
func (s Stage) IsDay() bool {
	switch s {
	case StageDayStart, StageDayRetry, StageDayDone, StageDayError:
		return true
	default:
		return false
	}
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageDayStart, StageDayDone, StageDayError:
		if err := e.validateTarget(); err != nil {
			return err
		}
	case StageDayRetry:
		if err := e.validateTarget(); err != nil {
			return err
		}
		if e.Attempt < 1 {
			return errors.New("day retry requires attempt")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Records < 0 {
		return errors.New("records must be >= 0")
	}
	return nil
}

func (e Event) validateTarget() error {
	if e.Month < 1 || e.Month > 12 {
		return fmt.Errorf("%s requires month, got %d", e.Stage, e.Month)
	}
	if e.Day < 1 || e.Day > 31 {
		return fmt.Errorf("%s requires day, got %d", e.Stage, e.Day)
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

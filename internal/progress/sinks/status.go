package sinks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/weather-harvester/internal/progress"
)

// Day states reported by StatusSink.
const (
	DayRunning  = "running"
	DayRetrying = "retrying"
	DayDone     = "done"
	DayFailed   = "failed"
)

// DayStatus is the latest known state of one calendar target.
type DayStatus struct {
	Target    string    `json:"target"`
	Month     int       `json:"month"`
	Day       int       `json:"day"`
	State     string    `json:"state"`
	Attempts  int       `json:"attempts"`
	Records   int       `json:"records"`
	Note      string    `json:"note,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunStatus summarizes the current (or last) run.
type RunStatus struct {
	RunID      string      `json:"run_id,omitempty"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Running    bool        `json:"running"`
	Records    int         `json:"records"`
	Days       []DayStatus `json:"days"`
}

// StatusSink keeps an in-memory view of run progress for the status API.
type StatusSink struct {
	mu      sync.RWMutex
	runID   uuid.UUID
	started time.Time
	done    time.Time
	records int
	days    map[[2]int]*DayStatus
}

// NewStatusSink returns an empty StatusSink.
func NewStatusSink() *StatusSink {
	return &StatusSink{days: make(map[[2]int]*DayStatus)}
}

// Consume folds the batch into the status view.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *StatusSink) apply(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runID = evt.RunUUID()
		s.started = evt.TS
		s.done = time.Time{}
		s.records = 0
		clear(s.days)
		return
	case progress.StageRunDone:
		s.done = evt.TS
		return
	}
	if !evt.Stage.IsDay() {
		return
	}

	key := [2]int{evt.Month, evt.Day}
	day := s.days[key]
	if day == nil {
		day = &DayStatus{
			Target: fmt.Sprintf("%02d-%02d", evt.Month, evt.Day),
			Month:  evt.Month,
			Day:    evt.Day,
		}
		s.days[key] = day
	}
	day.UpdatedAt = evt.TS
	switch evt.Stage {
	case progress.StageDayStart:
		day.State = DayRunning
		day.Attempts = 1
	case progress.StageDayRetry:
		day.State = DayRetrying
		day.Attempts = evt.Attempt + 1
		day.Note = evt.Note
	case progress.StageDayDone:
		day.State = DayDone
		day.Records = evt.Records
		day.Note = ""
		s.records += evt.Records
	case progress.StageDayError:
		day.State = DayFailed
		day.Note = evt.Note
	}
}

// Snapshot returns a copy of the status view with days in calendar order.
func (s *StatusSink) Snapshot() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := RunStatus{
		Running: !s.started.IsZero() && s.done.IsZero(),
		Records: s.records,
		Days:    make([]DayStatus, 0, len(s.days)),
	}
	if s.runID != uuid.Nil {
		out.RunID = s.runID.String()
	}
	if !s.started.IsZero() {
		started := s.started
		out.StartedAt = &started
	}
	if !s.done.IsZero() {
		done := s.done
		out.FinishedAt = &done
	}
	for _, day := range s.days {
		out.Days = append(out.Days, *day)
	}
	sort.Slice(out.Days, func(i, j int) bool {
		if out.Days[i].Month != out.Days[j].Month {
			return out.Days[i].Month < out.Days[j].Month
		}
		return out.Days[i].Day < out.Days[j].Day
	})
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}

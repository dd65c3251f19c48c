// Package scheduler fans a harvest run out across every calendar target,
// sharing one browser and settling each day independently.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/weather-harvester/internal/harvest"
	"github.com/JakeFAU/weather-harvester/internal/progress"
	"github.com/JakeFAU/weather-harvester/internal/retry"
	"github.com/JakeFAU/weather-harvester/internal/table"
)

var errNoTargets = errors.New("no calendar targets to harvest")

// Failure is a day that did not produce records.
type Failure struct {
	Target harvest.CalendarTarget
	Err    error
}

// Summary describes a settled run.
type Summary struct {
	RunID     string
	Targets   int
	Succeeded int
	Failed    int
	Records   int
	Failures  []Failure
	Duration  time.Duration
}

// OK reports whether every day succeeded.
func (s Summary) OK() bool {
	return s.Failed == 0
}

// Scheduler runs one day fetch per target against a shared browser.
type Scheduler struct {
	launcher harvest.Launcher
	writer   harvest.RecordWriter
	policy   retry.Policy
	emitter  progress.Emitter
	clock    harvest.Clock
	ids      harvest.IDGenerator
	logger   *zap.Logger
}

// New constructs a Scheduler. A nil emitter discards progress events.
func New(
	launcher harvest.Launcher,
	writer harvest.RecordWriter,
	policy retry.Policy,
	emitter progress.Emitter,
	clock harvest.Clock,
	ids harvest.IDGenerator,
	logger *zap.Logger,
) *Scheduler {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		launcher: launcher,
		writer:   writer,
		policy:   policy,
		emitter:  emitter,
		clock:    clock,
		ids:      ids,
		logger:   logger,
	}
}

// dayResult is what one target's goroutine reports back.
type dayResult struct {
	target  harvest.CalendarTarget
	records int
	err     error
}

// Run launches the browser, fetches every target concurrently and closes the
// browser once all of them have settled. A failing day never cancels the
// others; day failures are reported in the Summary, not the error. The error
// is reserved for run-level problems such as the browser failing to start.
func (s *Scheduler) Run(ctx context.Context, targets []harvest.CalendarTarget) (Summary, error) {
	if len(targets) == 0 {
		return Summary{}, errNoTargets
	}
	runID, err := s.newRunID()
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{RunID: runID.String(), Targets: len(targets)}
	eventID := progress.UUIDToBytes(runID)
	logger := s.logger.With(zap.String("run_id", summary.RunID))
	start := s.clock.Now()

	s.emit(progress.Event{RunID: eventID, Stage: progress.StageRunStart})
	logger.Info("harvest started", zap.Int("targets", len(targets)))

	browser, err := s.launcher.Launch(ctx)
	if err != nil {
		s.emit(progress.Event{RunID: eventID, Stage: progress.StageRunDone, Note: err.Error()})
		return summary, fmt.Errorf("launch browser: %w", err)
	}

	orchestrator := retry.New(s.policy, logger, retry.WithRetryHook(
		func(target harvest.CalendarTarget, attempt int, err error) {
			s.emit(progress.Event{
				RunID:   eventID,
				Stage:   progress.StageDayRetry,
				Month:   target.Month,
				Day:     target.Day,
				Attempt: attempt,
				Note:    err.Error(),
			})
		},
	))

	results := make([]dayResult, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.runDay(ctx, eventID, browser, orchestrator, target, logger)
		}()
	}
	wg.Wait()

	var closeErr error
	if err := browser.Close(); err != nil {
		closeErr = fmt.Errorf("close browser: %w", err)
		logger.Warn("browser close failed", zap.Error(err))
	}

	for _, res := range results {
		if res.err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Target: res.target, Err: res.err})
			continue
		}
		summary.Succeeded++
		summary.Records += res.records
	}
	summary.Duration = s.clock.Now().Sub(start)

	s.emit(progress.Event{
		RunID:   eventID,
		Stage:   progress.StageRunDone,
		Records: summary.Records,
		Dur:     nonNegative(summary.Duration),
	})
	logger.Info("harvest finished",
		zap.Int("targets", summary.Targets),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("records", summary.Records),
		zap.Duration("duration", summary.Duration),
	)
	return summary, closeErr
}

// runDay fetches, parses and writes one target. Records are handed to the
// writer only once the whole day parsed, and the writer stores all or none.
func (s *Scheduler) runDay(
	ctx context.Context,
	runID [16]byte,
	browser harvest.DayFetcher,
	orchestrator *retry.Orchestrator,
	target harvest.CalendarTarget,
	logger *zap.Logger,
) dayResult {
	logger = logger.With(zap.Int("month", target.Month), zap.Int("day", target.Day))
	start := s.clock.Now()
	s.emit(progress.Event{RunID: runID, Stage: progress.StageDayStart, Month: target.Month, Day: target.Day})
	logger.Debug("day fetch started")

	records, err := orchestrator.Do(ctx, target, func(ctx context.Context) ([]harvest.DayRecord, error) {
		raw, err := browser.FetchDay(ctx, target)
		if err != nil {
			return nil, err
		}
		return table.Extract(raw, target)
	})
	if err == nil {
		if werr := s.writer.WriteDay(ctx, records); werr != nil {
			err = fmt.Errorf("write day %s: %w", target, werr)
		}
	}
	dur := nonNegative(s.clock.Now().Sub(start))

	if err != nil {
		logger.Error("day failed", zap.Duration("dur", dur), zap.Error(err))
		s.emit(progress.Event{
			RunID: runID, Stage: progress.StageDayError,
			Month: target.Month, Day: target.Day,
			Dur: dur, Note: err.Error(),
		})
		return dayResult{target: target, err: err}
	}

	logger.Info("day harvested", zap.Int("records", len(records)), zap.Duration("dur", dur))
	s.emit(progress.Event{
		RunID: runID, Stage: progress.StageDayDone,
		Month: target.Month, Day: target.Day,
		Records: len(records), Dur: dur,
	})
	return dayResult{target: target, records: len(records)}
}

func (s *Scheduler) newRunID() (uuid.UUID, error) {
	raw, err := s.ids.NewID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate run id: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse run id %q: %w", raw, err)
	}
	return id, nil
}

func (s *Scheduler) emit(evt progress.Event) {
	evt.TS = s.clock.Now().UTC()
	s.emitter.Emit(evt)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

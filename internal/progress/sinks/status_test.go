package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/weather-harvester/internal/progress"
)

func TestStatusSinkTracksDays(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	assert.False(t, sink.Snapshot().Running)
	assert.Empty(t, sink.Snapshot().RunID)

	id := uuid.New()
	runID := progress.UUIDToBytes(id)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{RunID: runID, TS: now, Stage: progress.StageDayStart, Month: 6, Day: 2},
		{RunID: runID, TS: now, Stage: progress.StageDayStart, Month: 5, Day: 31},
		{RunID: runID, TS: now, Stage: progress.StageDayRetry, Month: 6, Day: 2, Attempt: 1, Note: "timeout"},
		{RunID: runID, TS: now, Stage: progress.StageDayDone, Month: 5, Day: 31, Records: 10},
	}))

	snap := sink.Snapshot()
	assert.Equal(t, id.String(), snap.RunID)
	assert.True(t, snap.Running)
	assert.Equal(t, 10, snap.Records)
	require.Len(t, snap.Days, 2)
	assert.Equal(t, "05-31", snap.Days[0].Target)
	assert.Equal(t, DayDone, snap.Days[0].State)
	assert.Equal(t, "06-02", snap.Days[1].Target)
	assert.Equal(t, DayRetrying, snap.Days[1].State)
	assert.Equal(t, 2, snap.Days[1].Attempts)
	assert.Equal(t, "timeout", snap.Days[1].Note)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageDayError, Month: 6, Day: 2, Note: "exhausted"},
		{RunID: runID, TS: now.Add(time.Minute), Stage: progress.StageRunDone},
	}))
	snap = sink.Snapshot()
	assert.False(t, snap.Running)
	require.NotNil(t, snap.FinishedAt)
	assert.Equal(t, DayFailed, snap.Days[1].State)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.UUIDToBytes(uuid.New()), TS: now.Add(time.Hour), Stage: progress.StageRunStart},
	}))
	assert.Empty(t, sink.Snapshot().Days)
}

func TestLogSinkWritesDayFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{
		RunID:   progress.UUIDToBytes(uuid.New()),
		TS:      time.Now(),
		Stage:   progress.StageDayRetry,
		Month:   6,
		Day:     15,
		Attempt: 2,
	}}))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "DAY_RETRY", fields["stage"])
	assert.EqualValues(t, 6, fields["month"])
	assert.EqualValues(t, 15, fields["day"])
	assert.EqualValues(t, 2, fields["attempt"])
	assert.NotContains(t, fields, "records")
}

package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndex_UpsertAndGetRecording(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	row := RecordingRow{
		RecordingID: "rec-1",
		Name:        "first recording",
		Status:      "completed",
		CreatedAt:   now,
		UpdatedAt:   now,
		ActionCount: 2,
		Size:        128,
		Hash:        "deadbeef",
		BlobRef:     "de/deadbeef.blob",
	}
	summaries := []ActionSummary{
		{SequenceNumber: 0, Kind: "keyboard", Summary: "type hello"},
		{SequenceNumber: 1, Kind: "wait", Summary: "wait 250ms"},
	}
	require.NoError(t, idx.UpsertRecording(ctx, row, summaries))

	got, err := idx.GetRecording(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, row.Name, got.Name)
	assert.Equal(t, row.Hash, got.Hash)
	assert.Equal(t, row.ActionCount, got.ActionCount)
	assert.WithinDuration(t, now, got.CreatedAt, time.Second)

	row.Name = "renamed"
	require.NoError(t, idx.UpsertRecording(ctx, row, summaries))
	got, err = idx.GetRecording(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
}

func TestIndex_GetRecording_NotFound(t *testing.T) {
	idx := openTestIndex(t)
	_, err := idx.GetRecording(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_DeleteRecording(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, idx.UpsertRecording(ctx, RecordingRow{RecordingID: "rec-del", Name: "x", Status: "completed", CreatedAt: now, UpdatedAt: now}, nil))
	require.NoError(t, idx.DeleteRecording(ctx, "rec-del"))

	_, err := idx.GetRecording(ctx, "rec-del")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_ListRecordings_OrderedByUpdatedAtDesc(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, idx.UpsertRecording(ctx, RecordingRow{RecordingID: "older", Name: "older", Status: "completed", CreatedAt: base, UpdatedAt: base}, nil))
	require.NoError(t, idx.UpsertRecording(ctx, RecordingRow{RecordingID: "newer", Name: "newer", Status: "completed", CreatedAt: base, UpdatedAt: base.Add(time.Hour)}, nil))

	list, err := idx.ListRecordings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].RecordingID)
	assert.Equal(t, "older", list[1].RecordingID)
}

func TestIndex_UpsertAndGetSchedule_RoundTripsMaxParallelAndTimeout(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.UpsertRecording(ctx, RecordingRow{RecordingID: "rec-s", Name: "x", Status: "completed", CreatedAt: time.Now(), UpdatedAt: time.Now()}, nil))

	next := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	row := ScheduleRow{
		ScheduleID:       "sched-1",
		RecordingID:      "rec-s",
		Status:           "active",
		Enabled:          true,
		NextExecution:    &next,
		TotalExec:        3,
		SuccessExec:      2,
		TriggerJSON:      `{"kind":"manual"}`,
		MaxParallel:      4,
		ExecutionTimeout: 90 * time.Second,
	}
	require.NoError(t, idx.UpsertSchedule(ctx, row))

	got, err := idx.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.MaxParallel)
	assert.Equal(t, 90*time.Second, got.ExecutionTimeout)
	assert.Equal(t, 3, got.TotalExec)
	require.NotNil(t, got.NextExecution)
	assert.WithinDuration(t, next, *got.NextExecution, time.Second)
}

func TestIndex_GetSchedule_FindsDisabledSchedule(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.UpsertRecording(ctx, RecordingRow{RecordingID: "rec-d", Name: "x", Status: "completed", CreatedAt: time.Now(), UpdatedAt: time.Now()}, nil))

	row := ScheduleRow{ScheduleID: "sched-inactive", RecordingID: "rec-d", Status: "inactive", Enabled: false, TriggerJSON: "{}", MaxParallel: 1, ExecutionTimeout: time.Minute}
	require.NoError(t, idx.UpsertSchedule(ctx, row))

	active, err := idx.ActiveSchedules(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := idx.GetSchedule(ctx, "sched-inactive")
	require.NoError(t, err)
	assert.Equal(t, "sched-inactive", got.ScheduleID)
}

func TestIndex_GetSchedule_NotFound(t *testing.T) {
	idx := openTestIndex(t)
	_, err := idx.GetSchedule(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_ActiveSchedules_FiltersEnabledAndStatus(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.UpsertRecording(ctx, RecordingRow{RecordingID: "rec-a", Name: "x", Status: "completed", CreatedAt: time.Now(), UpdatedAt: time.Now()}, nil))

	require.NoError(t, idx.UpsertSchedule(ctx, ScheduleRow{ScheduleID: "active-1", RecordingID: "rec-a", Status: "active", Enabled: true, TriggerJSON: "{}", MaxParallel: 1, ExecutionTimeout: time.Minute}))
	require.NoError(t, idx.UpsertSchedule(ctx, ScheduleRow{ScheduleID: "disabled-1", RecordingID: "rec-a", Status: "active", Enabled: false, TriggerJSON: "{}", MaxParallel: 1, ExecutionTimeout: time.Minute}))
	require.NoError(t, idx.UpsertSchedule(ctx, ScheduleRow{ScheduleID: "inactive-1", RecordingID: "rec-a", Status: "inactive", Enabled: true, TriggerJSON: "{}", MaxParallel: 1, ExecutionTimeout: time.Minute}))

	active, err := idx.ActiveSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "active-1", active[0].ScheduleID)
}

func TestIndex_InsertAndCompleteExecution(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.UpsertRecording(ctx, RecordingRow{RecordingID: "rec-e", Name: "x", Status: "completed", CreatedAt: time.Now(), UpdatedAt: time.Now()}, nil))
	require.NoError(t, idx.UpsertSchedule(ctx, ScheduleRow{ScheduleID: "sched-e", RecordingID: "rec-e", Status: "active", Enabled: true, TriggerJSON: "{}", MaxParallel: 1, ExecutionTimeout: time.Minute}))

	start := time.Now().UTC()
	require.NoError(t, idx.InsertExecution(ctx, ExecutionRow{ExecutionID: "exec-1", ScheduleID: "sched-e", StartTime: start, TotalActions: 5}))

	end := start.Add(2 * time.Second)
	require.NoError(t, idx.CompleteExecution(ctx, "exec-1", end, true, "", 5))
}

func TestIndex_InsertExecution_TrimsHistory(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.UpsertRecording(ctx, RecordingRow{RecordingID: "rec-h", Name: "x", Status: "completed", CreatedAt: time.Now(), UpdatedAt: time.Now()}, nil))
	require.NoError(t, idx.UpsertSchedule(ctx, ScheduleRow{ScheduleID: "sched-h", RecordingID: "rec-h", Status: "active", Enabled: true, TriggerJSON: "{}", MaxParallel: 1, ExecutionTimeout: time.Minute}))

	base := time.Now().UTC()
	for i := 0; i < maxExecutionHistory+5; i++ {
		err := idx.InsertExecution(ctx, ExecutionRow{
			ExecutionID: fmt.Sprintf("exec-%d", i),
			ScheduleID:  "sched-h",
			StartTime:   base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	var count int
	require.NoError(t, idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM executions WHERE schedule_id = ?`, "sched-h").Scan(&count))
	assert.Equal(t, maxExecutionHistory, count)
}

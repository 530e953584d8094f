package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTimeout(a *Action) *Action {
	a.Timeout = 5 * time.Second
	return a
}

func TestNew_ValidatesName(t *testing.T) {
	_, err := New("", CaptureMetadata{})
	assert.Error(t, err)

	rec, err := New("valid name", CaptureMetadata{Host: "host-1"})
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, rec.Status())
	assert.Empty(t, rec.Actions())
}

func TestRecording_AppendAction_AssignsSequenceNumbers(t *testing.T) {
	rec, err := New("rec", CaptureMetadata{})
	require.NoError(t, err)
	require.NoError(t, rec.Start())

	for i := 0; i < 3; i++ {
		require.NoError(t, rec.AppendAction(withTimeout(NewWaitAction(time.Millisecond))))
	}

	for i, a := range rec.Actions() {
		assert.Equal(t, i, a.SequenceNumber)
	}
}

func TestRecording_AppendAction_RejectsInvalidAction(t *testing.T) {
	rec, err := New("rec", CaptureMetadata{})
	require.NoError(t, err)
	require.NoError(t, rec.Start())

	err = rec.AppendAction(NewWaitAction(time.Millisecond)) // Timeout left at zero
	assert.Error(t, err)
}

func TestRecording_AppendAction_RejectsWhenNotEditable(t *testing.T) {
	rec, err := New("rec", CaptureMetadata{})
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	rec.Cancel()

	err = rec.AppendAction(withTimeout(NewWaitAction(time.Millisecond)))
	assert.Error(t, err)
}

func TestRecording_StateMachine(t *testing.T) {
	rec, err := New("rec", CaptureMetadata{})
	require.NoError(t, err)

	assert.Error(t, rec.Pause()) // cannot pause before starting
	require.NoError(t, rec.Start())
	assert.Error(t, rec.Start()) // cannot start twice

	require.NoError(t, rec.Pause())
	assert.Equal(t, StatusPaused, rec.Status())
	require.NoError(t, rec.Resume())
	assert.Equal(t, StatusRecording, rec.Status())

	require.NoError(t, rec.AppendAction(withTimeout(NewWaitAction(time.Millisecond))))
	require.NoError(t, rec.Complete([]byte("canonical"), "deadbeef"))
	assert.Equal(t, StatusCompleted, rec.Status())
	assert.NotNil(t, rec.CompletedAt())
	assert.Equal(t, int64(len("canonical")), rec.Size())
	assert.Equal(t, "deadbeef", rec.Hash())

	assert.Error(t, rec.Complete([]byte("again"), "x")) // cannot complete twice
}

func TestRecording_Cancel_DiscardsActions(t *testing.T) {
	rec, err := New("rec", CaptureMetadata{})
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	require.NoError(t, rec.AppendAction(withTimeout(NewWaitAction(time.Millisecond))))

	rec.Cancel()

	assert.Equal(t, StatusCancelled, rec.Status())
	assert.Empty(t, rec.Actions())
}

func TestRecording_Executable(t *testing.T) {
	rec, err := New("rec", CaptureMetadata{})
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	assert.False(t, rec.Executable()) // not completed yet

	require.NoError(t, rec.AppendAction(withTimeout(NewWaitAction(time.Millisecond))))
	require.NoError(t, rec.Complete([]byte("x"), "hash"))
	assert.True(t, rec.Executable())
}

func TestRecording_Executable_EmptyActionsNotExecutable(t *testing.T) {
	rec, err := New("rec", CaptureMetadata{})
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	require.NoError(t, rec.Complete([]byte("x"), "hash"))
	assert.False(t, rec.Executable())
}

func TestRecording_RemoveAction_Reindexes(t *testing.T) {
	rec, err := New("rec", CaptureMetadata{})
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	for i := 0; i < 3; i++ {
		require.NoError(t, rec.AppendAction(withTimeout(NewWaitAction(time.Millisecond))))
	}

	require.NoError(t, rec.RemoveAction(1))
	require.Len(t, rec.Actions(), 2)
	for i, a := range rec.Actions() {
		assert.Equal(t, i, a.SequenceNumber)
	}
}

func TestPlaybackSettings_Validate(t *testing.T) {
	valid := DefaultPlaybackSettings()
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.SpeedMultiplier = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.MaxRetries = 11
	assert.Error(t, bad.Validate())
}

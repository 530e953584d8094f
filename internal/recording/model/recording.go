package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordingID is the unique identifier of a Recording.
type RecordingID uuid.UUID

func NewRecordingID() RecordingID { return RecordingID(uuid.New()) }
func (id RecordingID) String() string { return uuid.UUID(id).String() }

// Status is the Recording lifecycle state machine of spec.md §4.5:
// Idle → Recording ⇄ Paused → Completed | Cancelled.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRecording Status = "recording"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

const (
	MaxActions  = 10000
	MinNameLen  = 1
	MaxNameLen  = 100
)

// PlaybackSettings are the per-Recording replay defaults (spec.md §3).
type PlaybackSettings struct {
	SpeedMultiplier         float64 // (0, 10]
	DefaultDelay            time.Duration
	MaxRetries              int // [0, 10]
	StopOnError             bool
	RestoreWindowPositions  bool
	EnsureForeground        bool
}

// DefaultPlaybackSettings returns the spec.md default playback settings.
// RestoreWindowPositions and EnsureForeground both default true, matching
// PlaybackSettings.restore_window_positions/ensure_foreground in the source
// this spec was distilled from.
func DefaultPlaybackSettings() PlaybackSettings {
	return PlaybackSettings{
		SpeedMultiplier:        1.0,
		MaxRetries:             3,
		StopOnError:            true,
		RestoreWindowPositions: true,
		EnsureForeground:       true,
	}
}

// Validate enforces the PlaybackSettings bounds from spec.md §3.
func (p PlaybackSettings) Validate() error {
	if p.SpeedMultiplier <= 0 || p.SpeedMultiplier > 10 {
		return errors.New("playback settings: speed_multiplier must be in (0, 10]")
	}
	if p.DefaultDelay < 0 {
		return errors.New("playback settings: default_delay must be non-negative")
	}
	if p.MaxRetries < 0 || p.MaxRetries > 10 {
		return errors.New("playback settings: max_retries must be in [0, 10]")
	}
	return nil
}

// CaptureMetadata records the environment a Recording was captured in.
type CaptureMetadata struct {
	Host             string
	ScreenWidth      int
	ScreenHeight     int
	DPI              float64
	OSVersion        string
}

// ExecutionSummary is the compact last-run result attached to a Recording.
type ExecutionSummary struct {
	ExecutionID     uuid.UUID
	Success         bool
	ActionsExecuted int
	CompletedAt     time.Time
}

// Recording is the aggregate root of spec.md §3.
type Recording struct {
	id          RecordingID
	name        string
	status      Status
	actions     []*Action
	playback    PlaybackSettings
	metadata    CaptureMetadata

	createdAt   time.Time
	updatedAt   time.Time
	completedAt *time.Time

	totalExecutions int
	lastExecution   *ExecutionSummary

	size int64
	hash string // hex SHA-256 over the canonical byte form
}

// New creates a Recording in status=created with default playback settings.
func New(name string, metadata CaptureMetadata) (*Recording, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Recording{
		id:        NewRecordingID(),
		name:      name,
		status:    StatusCreated,
		actions:   make([]*Action, 0),
		playback:  DefaultPlaybackSettings(),
		metadata:  metadata,
		createdAt: now,
		updatedAt: now,
	}, nil
}

func validateName(name string) error {
	if len(name) < MinNameLen || len(name) > MaxNameLen {
		return fmt.Errorf("recording: name must be %d-%d characters", MinNameLen, MaxNameLen)
	}
	return nil
}

// Accessors.
func (r *Recording) ID() RecordingID                  { return r.id }
func (r *Recording) Name() string                     { return r.name }
func (r *Recording) Status() Status                   { return r.status }
func (r *Recording) Actions() []*Action               { return r.actions }
func (r *Recording) Playback() PlaybackSettings        { return r.playback }
func (r *Recording) Metadata() CaptureMetadata         { return r.metadata }
func (r *Recording) CreatedAt() time.Time             { return r.createdAt }
func (r *Recording) UpdatedAt() time.Time             { return r.updatedAt }
func (r *Recording) CompletedAt() *time.Time          { return r.completedAt }
func (r *Recording) TotalExecutions() int             { return r.totalExecutions }
func (r *Recording) LastExecution() *ExecutionSummary { return r.lastExecution }
func (r *Recording) Size() int64                      { return r.size }
func (r *Recording) Hash() string                     { return r.hash }

// editable reports whether the Recording may still be mutated
// (spec.md §3 invariant 3: edits permitted only in {created, recording, paused}).
func (r *Recording) editable() bool {
	switch r.status {
	case StatusCreated, StatusRecording, StatusPaused:
		return true
	default:
		return false
	}
}

// AppendAction appends an Action, assigning it the next contiguous
// sequence number (spec.md §3 invariant 1).
func (r *Recording) AppendAction(a *Action) error {
	if !r.editable() {
		return fmt.Errorf("recording: cannot append action in status %s", r.status)
	}
	if len(r.actions) >= MaxActions {
		return fmt.Errorf("recording: exceeds max action count %d", MaxActions)
	}
	if err := a.Validate(); err != nil {
		return err
	}
	a.SequenceNumber = len(r.actions)
	r.actions = append(r.actions, a)
	r.updatedAt = time.Now().UTC()
	return nil
}

// Reindex re-numbers every Action's SequenceNumber to match its slice
// position, restoring invariant 1 after any structural edit.
func (r *Recording) Reindex() {
	for i, a := range r.actions {
		a.SequenceNumber = i
	}
}

// RemoveAction removes the Action at index i and reindexes.
func (r *Recording) RemoveAction(i int) error {
	if !r.editable() {
		return fmt.Errorf("recording: cannot edit in status %s", r.status)
	}
	if i < 0 || i >= len(r.actions) {
		return fmt.Errorf("recording: action index %d out of range", i)
	}
	r.actions = append(r.actions[:i], r.actions[i+1:]...)
	r.Reindex()
	r.updatedAt = time.Now().UTC()
	return nil
}

// SetPlayback replaces the PlaybackSettings after validating them.
func (r *Recording) SetPlayback(p PlaybackSettings) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.playback = p
	r.updatedAt = time.Now().UTC()
	return nil
}

// Start transitions created → recording.
func (r *Recording) Start() error {
	if r.status != StatusCreated {
		return fmt.Errorf("recording: cannot start from status %s", r.status)
	}
	r.status = StatusRecording
	r.updatedAt = time.Now().UTC()
	return nil
}

// Pause transitions recording → paused.
func (r *Recording) Pause() error {
	if r.status != StatusRecording {
		return fmt.Errorf("recording: cannot pause from status %s", r.status)
	}
	r.status = StatusPaused
	r.updatedAt = time.Now().UTC()
	return nil
}

// Resume transitions paused → recording.
func (r *Recording) Resume() error {
	if r.status != StatusPaused {
		return fmt.Errorf("recording: cannot resume from status %s", r.status)
	}
	r.status = StatusRecording
	r.updatedAt = time.Now().UTC()
	return nil
}

// Complete transitions recording|paused → completed, setting completed_at
// exactly once (spec.md §3 invariant 4), setting size from the length of
// the supplied canonical byte form and hash to the supplied digest.
func (r *Recording) Complete(canonicalBytes []byte, hash string) error {
	if r.status != StatusRecording && r.status != StatusPaused {
		return fmt.Errorf("recording: cannot complete from status %s", r.status)
	}
	now := time.Now().UTC()
	r.status = StatusCompleted
	r.completedAt = &now
	r.updatedAt = now
	r.size = int64(len(canonicalBytes))
	r.hash = hash
	return nil
}

// Cancel transitions any state → cancelled, discarding buffered actions.
func (r *Recording) Cancel() {
	r.status = StatusCancelled
	r.actions = nil
	r.updatedAt = time.Now().UTC()
}

// Fail marks the recording failed (e.g. CaptureUnavailable mid-session).
func (r *Recording) Fail() {
	r.status = StatusFailed
	r.updatedAt = time.Now().UTC()
}

// RecordExecution appends an execution outcome to the Recording's rollup.
func (r *Recording) RecordExecution(summary ExecutionSummary) {
	r.totalExecutions++
	r.lastExecution = &summary
	r.updatedAt = time.Now().UTC()
}

// Executable reports spec.md §3 invariant 2: a Recording is executable iff
// status == completed AND len(actions) > 0 AND validation passes.
func (r *Recording) Executable() bool {
	return r.status == StatusCompleted && len(r.actions) > 0 && r.Validate() == nil
}

// Validate checks every Recording-level invariant, including the ordering
// invariant (sequence_number[i] == i for every i) and per-Action validity.
func (r *Recording) Validate() error {
	if err := validateName(r.name); err != nil {
		return err
	}
	if len(r.actions) > MaxActions {
		return fmt.Errorf("recording: exceeds max action count %d", MaxActions)
	}
	if err := r.playback.Validate(); err != nil {
		return err
	}
	for i, a := range r.actions {
		if a.SequenceNumber != i {
			return fmt.Errorf("recording: action at index %d has sequence_number %d", i, a.SequenceNumber)
		}
		if err := a.Validate(); err != nil {
			return fmt.Errorf("recording: action %d: %w", i, err)
		}
	}
	return nil
}

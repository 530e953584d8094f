package model

import (
	"time"

	"github.com/google/uuid"
)

// These DTO types are the JSON shape persisted to a blob (spec.md §6:
// "canonical UTF-8 JSON document with keys in sorted order; numeric
// timestamps are ISO-8601 UTC strings; durations are integer milliseconds").
// Canonicalization itself (key sorting) is the storage layer's job, since
// Go's encoding/json already sorts map keys — see internal/storage/canonical.go.

type ActionDTO struct {
	ActionID        uuid.UUID `json:"action_id"`
	SequenceNumber  int       `json:"sequence_number"`
	Timestamp       string    `json:"timestamp"`
	DelayBeforeMs   int64     `json:"delay_before_ms"`
	DelayAfterMs    int64     `json:"delay_after_ms"`
	TimeoutMs       int64     `json:"timeout_ms"`
	RetryCount      int       `json:"retry_count"`
	ContinueOnError bool      `json:"continue_on_error"`
	Kind            ActionKind `json:"kind"`

	Keyboard *KeyboardDTO `json:"keyboard,omitempty"`
	Mouse    *MouseDTO    `json:"mouse,omitempty"`
	Window   *WindowDTO   `json:"window,omitempty"`
	Wait     *WaitDTO     `json:"wait,omitempty"`
}

type KeyboardDTO struct {
	HasKey    bool        `json:"has_key"`
	VKCode    int         `json:"vk_code,omitempty"`
	Shift     bool        `json:"shift,omitempty"`
	Ctrl      bool        `json:"ctrl,omitempty"`
	Alt       bool        `json:"alt,omitempty"`
	Meta      bool        `json:"meta,omitempty"`
	HasText   bool        `json:"has_text"`
	Text      string      `json:"text,omitempty"`
	Method    InputMethod `json:"method,omitempty"`
}

type PointDTO struct {
	X        int     `json:"x"`
	Y        int     `json:"y"`
	DPIScale float64 `json:"dpi_scale"`
}

type WindowDescriptorDTO struct {
	Title   string `json:"title,omitempty"`
	Class   string `json:"class,omitempty"`
	Process string `json:"process,omitempty"`
}

type MouseDTO struct {
	Button      MouseButton          `json:"button"`
	Position    PointDTO             `json:"position"`
	DoubleClick bool                 `json:"double_click,omitempty"`
	WheelDelta  int                  `json:"wheel_delta,omitempty"`
	Target      *WindowDescriptorDTO `json:"target,omitempty"`
}

type RectDTO struct {
	X, Y, W, H int
}

type WindowDTO struct {
	Target   WindowDescriptorDTO `json:"target"`
	Activate bool                `json:"activate,omitempty"`
	MoveTo   *PointDTO           `json:"move_to,omitempty"`
	ResizeTo *RectDTO            `json:"resize_to,omitempty"`
}

type WaitDTO struct {
	DurationMs int64 `json:"duration_ms"`
}

type PlaybackSettingsDTO struct {
	SpeedMultiplier        float64 `json:"speed_multiplier"`
	DefaultDelayMs         int64   `json:"default_delay_ms"`
	MaxRetries             int     `json:"max_retries"`
	StopOnError            bool    `json:"stop_on_error"`
	RestoreWindowPositions bool    `json:"restore_window_positions"`
	EnsureForeground       bool    `json:"ensure_foreground"`
}

type CaptureMetadataDTO struct {
	Host         string  `json:"host"`
	ScreenWidth  int     `json:"screen_width"`
	ScreenHeight int     `json:"screen_height"`
	DPI          float64 `json:"dpi"`
	OSVersion    string  `json:"os_version"`
}

type ExecutionSummaryDTO struct {
	ExecutionID     uuid.UUID `json:"execution_id"`
	Success         bool      `json:"success"`
	ActionsExecuted int       `json:"actions_executed"`
	CompletedAt     string    `json:"completed_at"`
}

// RecordingDTO is the top-level persisted document.
type RecordingDTO struct {
	RecordingID     uuid.UUID            `json:"recording_id"`
	Name            string               `json:"name"`
	Status          Status               `json:"status"`
	Actions         []ActionDTO          `json:"actions"`
	Playback        PlaybackSettingsDTO  `json:"playback"`
	Metadata        CaptureMetadataDTO   `json:"metadata"`
	CreatedAt       string               `json:"created_at"`
	UpdatedAt       string               `json:"updated_at"`
	CompletedAt     *string              `json:"completed_at,omitempty"`
	TotalExecutions int                  `json:"total_executions"`
	LastExecution   *ExecutionSummaryDTO `json:"last_execution,omitempty"`
}

func isoUTC(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// ToDTO snapshots the Recording into its persisted JSON shape.
func (r *Recording) ToDTO() RecordingDTO {
	actions := make([]ActionDTO, len(r.actions))
	for i, a := range r.actions {
		actions[i] = actionToDTO(a)
	}

	var completedAt *string
	if r.completedAt != nil {
		s := isoUTC(*r.completedAt)
		completedAt = &s
	}

	var lastExec *ExecutionSummaryDTO
	if r.lastExecution != nil {
		lastExec = &ExecutionSummaryDTO{
			ExecutionID:     r.lastExecution.ExecutionID,
			Success:         r.lastExecution.Success,
			ActionsExecuted: r.lastExecution.ActionsExecuted,
			CompletedAt:     isoUTC(r.lastExecution.CompletedAt),
		}
	}

	return RecordingDTO{
		RecordingID: uuid.UUID(r.id),
		Name:        r.name,
		Status:      r.status,
		Actions:     actions,
		Playback: PlaybackSettingsDTO{
			SpeedMultiplier:        r.playback.SpeedMultiplier,
			DefaultDelayMs:         r.playback.DefaultDelay.Milliseconds(),
			MaxRetries:             r.playback.MaxRetries,
			StopOnError:            r.playback.StopOnError,
			RestoreWindowPositions: r.playback.RestoreWindowPositions,
			EnsureForeground:       r.playback.EnsureForeground,
		},
		Metadata: CaptureMetadataDTO{
			Host: r.metadata.Host, ScreenWidth: r.metadata.ScreenWidth,
			ScreenHeight: r.metadata.ScreenHeight, DPI: r.metadata.DPI, OSVersion: r.metadata.OSVersion,
		},
		CreatedAt:       isoUTC(r.createdAt),
		UpdatedAt:       isoUTC(r.updatedAt),
		CompletedAt:     completedAt,
		TotalExecutions: r.totalExecutions,
		LastExecution:   lastExec,
	}
}

func actionToDTO(a *Action) ActionDTO {
	dto := ActionDTO{
		ActionID: a.ActionID, SequenceNumber: a.SequenceNumber,
		Timestamp: isoUTC(a.Timestamp), DelayBeforeMs: a.DelayBefore.Milliseconds(),
		DelayAfterMs: a.DelayAfter.Milliseconds(), TimeoutMs: a.Timeout.Milliseconds(),
		RetryCount: a.RetryCount, ContinueOnError: a.ContinueOnError, Kind: a.Kind,
	}
	switch a.Kind {
	case ActionKeyboard:
		k := a.Keyboard
		dto.Keyboard = &KeyboardDTO{
			HasKey: k.HasKey, VKCode: k.VKCode, Shift: k.Modifiers.Shift, Ctrl: k.Modifiers.Ctrl,
			Alt: k.Modifiers.Alt, Meta: k.Modifiers.Meta, HasText: k.HasText, Text: k.Text, Method: k.Method,
		}
	case ActionMouse:
		m := a.Mouse
		md := &MouseDTO{
			Button: m.Button, Position: PointDTO{X: m.Position.X, Y: m.Position.Y, DPIScale: m.Position.DPIScale},
			DoubleClick: m.DoubleClick, WheelDelta: m.WheelDelta,
		}
		if m.Target != nil {
			md.Target = &WindowDescriptorDTO{Title: m.Target.Title, Class: m.Target.Class, Process: m.Target.Process}
		}
		dto.Mouse = md
	case ActionWindow:
		w := a.Window
		wd := &WindowDTO{
			Target:   WindowDescriptorDTO{Title: w.Target.Title, Class: w.Target.Class, Process: w.Target.Process},
			Activate: w.Activate,
		}
		if w.MoveTo != nil {
			wd.MoveTo = &PointDTO{X: w.MoveTo.X, Y: w.MoveTo.Y, DPIScale: w.MoveTo.DPIScale}
		}
		if w.ResizeTo != nil {
			wd.ResizeTo = &RectDTO{X: w.ResizeTo.X, Y: w.ResizeTo.Y, W: w.ResizeTo.W, H: w.ResizeTo.H}
		}
		dto.Window = wd
	case ActionWait:
		dto.Wait = &WaitDTO{DurationMs: a.Wait.Duration.Milliseconds()}
	}
	return dto
}

// FromDTO reconstructs a Recording from its persisted JSON shape.
func FromDTO(dto RecordingDTO) (*Recording, error) {
	actions := make([]*Action, len(dto.Actions))
	for i, adto := range dto.Actions {
		a, err := actionFromDTO(adto)
		if err != nil {
			return nil, err
		}
		actions[i] = a
	}

	createdAt, err := time.Parse(time.RFC3339Nano, dto.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, dto.UpdatedAt)
	if err != nil {
		return nil, err
	}
	var completedAt *time.Time
	if dto.CompletedAt != nil {
		t, err := time.Parse(time.RFC3339Nano, *dto.CompletedAt)
		if err != nil {
			return nil, err
		}
		completedAt = &t
	}
	var lastExec *ExecutionSummary
	if dto.LastExecution != nil {
		t, err := time.Parse(time.RFC3339Nano, dto.LastExecution.CompletedAt)
		if err != nil {
			return nil, err
		}
		lastExec = &ExecutionSummary{
			ExecutionID: dto.LastExecution.ExecutionID, Success: dto.LastExecution.Success,
			ActionsExecuted: dto.LastExecution.ActionsExecuted, CompletedAt: t,
		}
	}

	return &Recording{
		id: RecordingID(dto.RecordingID), name: dto.Name, status: dto.Status, actions: actions,
		playback: PlaybackSettings{
			SpeedMultiplier: dto.Playback.SpeedMultiplier,
			DefaultDelay:    time.Duration(dto.Playback.DefaultDelayMs) * time.Millisecond,
			MaxRetries:      dto.Playback.MaxRetries, StopOnError: dto.Playback.StopOnError,
			RestoreWindowPositions: dto.Playback.RestoreWindowPositions, EnsureForeground: dto.Playback.EnsureForeground,
		},
		metadata: CaptureMetadata{
			Host: dto.Metadata.Host, ScreenWidth: dto.Metadata.ScreenWidth,
			ScreenHeight: dto.Metadata.ScreenHeight, DPI: dto.Metadata.DPI, OSVersion: dto.Metadata.OSVersion,
		},
		createdAt: createdAt, updatedAt: updatedAt, completedAt: completedAt,
		totalExecutions: dto.TotalExecutions, lastExecution: lastExec,
	}, nil
}

func actionFromDTO(dto ActionDTO) (*Action, error) {
	a := &Action{
		ActionID: dto.ActionID, SequenceNumber: dto.SequenceNumber,
		DelayBefore: time.Duration(dto.DelayBeforeMs) * time.Millisecond,
		DelayAfter:  time.Duration(dto.DelayAfterMs) * time.Millisecond,
		Timeout:     time.Duration(dto.TimeoutMs) * time.Millisecond,
		RetryCount:  dto.RetryCount, ContinueOnError: dto.ContinueOnError, Kind: dto.Kind,
	}
	ts, err := time.Parse(time.RFC3339Nano, dto.Timestamp)
	if err != nil {
		return nil, err
	}
	a.Timestamp = ts

	switch dto.Kind {
	case ActionKeyboard:
		k := dto.Keyboard
		a.Keyboard = &KeyboardPayload{
			HasKey: k.HasKey, VKCode: k.VKCode,
			Modifiers: Modifiers{Shift: k.Shift, Ctrl: k.Ctrl, Alt: k.Alt, Meta: k.Meta},
			HasText:   k.HasText, Text: k.Text, Method: k.Method,
		}
	case ActionMouse:
		m := dto.Mouse
		mp := &MousePayload{
			Button: m.Button, Position: Point{X: m.Position.X, Y: m.Position.Y, DPIScale: m.Position.DPIScale},
			DoubleClick: m.DoubleClick, WheelDelta: m.WheelDelta,
		}
		if m.Target != nil {
			mp.Target = &WindowDescriptor{Title: m.Target.Title, Class: m.Target.Class, Process: m.Target.Process}
		}
		a.Mouse = mp
	case ActionWindow:
		w := dto.Window
		wp := &WindowPayload{
			Target:   WindowDescriptor{Title: w.Target.Title, Class: w.Target.Class, Process: w.Target.Process},
			Activate: w.Activate,
		}
		if w.MoveTo != nil {
			wp.MoveTo = &Point{X: w.MoveTo.X, Y: w.MoveTo.Y, DPIScale: w.MoveTo.DPIScale}
		}
		if w.ResizeTo != nil {
			wp.ResizeTo = &Rect{X: w.ResizeTo.X, Y: w.ResizeTo.Y, W: w.ResizeTo.W, H: w.ResizeTo.H}
		}
		a.Window = wp
	case ActionWait:
		a.Wait = &WaitPayload{Duration: time.Duration(dto.Wait.DurationMs) * time.Millisecond}
	}
	return a, nil
}

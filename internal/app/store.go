// Package app wires the Capture Engine, Replay Engine, Scheduler, Hotkey
// Dispatcher, and Custom Command Runner against the storage layer, the way
// cmd/services/execution/server.go wires its domain service against a repository.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	recmodel "github.com/deskflow-rpa/deskflow/internal/recording/model"
	schedmodel "github.com/deskflow-rpa/deskflow/internal/schedule/model"
	"github.com/deskflow-rpa/deskflow/internal/storage"
)

// Store adapts storage.Index + a storage.BlobStore to the narrower
// contracts the Scheduler and the daemon's command surface need.
type Store struct {
	idx        *storage.Index
	blobs      storage.BlobStore
	passphrase string
}

// NewStore builds a Store. passphrase may be empty if blobs are unencrypted.
func NewStore(idx *storage.Index, blobs storage.BlobStore, passphrase string) *Store {
	return &Store{idx: idx, blobs: blobs, passphrase: passphrase}
}

// SaveRecording canonicalizes rec, writes its blob, and upserts its index row.
func (s *Store) SaveRecording(ctx context.Context, rec *recmodel.Recording) error {
	dto := rec.ToDTO()
	canonical, err := storage.Canonicalize(dto)
	if err != nil {
		return fmt.Errorf("app: canonicalizing recording: %w", err)
	}
	hash := storage.Hash(canonical)

	blob, err := storage.EncodeBlob(canonical, s.passphrase)
	if err != nil {
		return fmt.Errorf("app: encoding blob: %w", err)
	}
	if err := s.blobs.Put(ctx, hash, blob); err != nil {
		return fmt.Errorf("app: writing blob: %w", err)
	}

	summaries := make([]storage.ActionSummary, len(dto.Actions))
	for i, a := range dto.Actions {
		summaries[i] = storage.ActionSummary{SequenceNumber: a.SequenceNumber, Kind: string(a.Kind), Summary: actionSummaryText(a)}
	}

	return s.idx.UpsertRecording(ctx, storage.RecordingRow{
		RecordingID: dto.RecordingID.String(),
		Name:        dto.Name,
		Status:      string(dto.Status),
		CreatedAt:   rec.CreatedAt(),
		UpdatedAt:   rec.UpdatedAt(),
		ActionCount: len(dto.Actions),
		Size:        rec.Size(),
		Hash:        hash,
		BlobRef:     hash,
	}, summaries)
}

func actionSummaryText(a recmodel.ActionDTO) string {
	switch a.Kind {
	case recmodel.ActionKeyboard:
		if a.Keyboard != nil && a.Keyboard.HasText {
			return a.Keyboard.Text
		}
		return ""
	case recmodel.ActionMouse:
		if a.Mouse != nil {
			return string(a.Mouse.Button)
		}
	case recmodel.ActionWindow:
		if a.Window != nil {
			return a.Window.Target.Title
		}
	}
	return ""
}

// LoadRecording reads a recording's blob by ID and rebuilds the aggregate.
func (s *Store) LoadRecording(ctx context.Context, id uuid.UUID) (*recmodel.Recording, error) {
	row, err := s.idx.GetRecording(ctx, id.String())
	if err != nil {
		return nil, err
	}
	blob, err := s.blobs.Get(ctx, row.BlobRef)
	if err != nil {
		return nil, fmt.Errorf("app: reading blob: %w", err)
	}
	canonical, err := storage.DecodeBlob(blob, s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("app: decoding blob: %w", err)
	}
	var dto recmodel.RecordingDTO
	if err := json.Unmarshal(canonical, &dto); err != nil {
		return nil, fmt.Errorf("app: unmarshaling recording document: %w", err)
	}
	return recmodel.FromDTO(dto)
}

// ActiveScheduleIDs implements scheduler.Store.
func (s *Store) ActiveScheduleIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.idx.ActiveSchedules(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ScheduleID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadSchedule implements scheduler.Store.
func (s *Store) LoadSchedule(ctx context.Context, id uuid.UUID) (*schedmodel.Schedule, error) {
	row, err := s.idx.GetSchedule(ctx, id.String())
	if err != nil {
		return nil, err
	}
	return hydrateSchedule(*row)
}

func hydrateSchedule(row storage.ScheduleRow) (*schedmodel.Schedule, error) {
	id, err := uuid.Parse(row.ScheduleID)
	if err != nil {
		return nil, err
	}
	recID, err := uuid.Parse(row.RecordingID)
	if err != nil {
		return nil, err
	}
	var trigger schedmodel.TriggerCondition
	if err := json.Unmarshal([]byte(row.TriggerJSON), &trigger); err != nil {
		return nil, fmt.Errorf("app: unmarshaling trigger: %w", err)
	}
	return schedmodel.Hydrate(
		id, recID, schedmodel.Status(row.Status), row.Enabled, trigger,
		row.MaxParallel, row.ExecutionTimeout,
		time.Time{}, time.Time{}, row.NextExecution, row.LastExecution,
		row.TotalExec, row.SuccessExec,
	), nil
}

// SaveSchedule implements scheduler.Store.
func (s *Store) SaveSchedule(ctx context.Context, sched *schedmodel.Schedule) error {
	triggerJSON, err := json.Marshal(sched.Trigger())
	if err != nil {
		return fmt.Errorf("app: marshaling trigger: %w", err)
	}
	return s.idx.UpsertSchedule(ctx, storage.ScheduleRow{
		ScheduleID:       sched.ID().String(),
		RecordingID:      sched.RecordingID().String(),
		Status:           string(sched.Status()),
		Enabled:          sched.Enabled(),
		NextExecution:    sched.NextExecution(),
		LastExecution:    sched.LastExecution(),
		TotalExec:        sched.TotalExecutions(),
		SuccessExec:      sched.SuccessfulExecutions(),
		TriggerJSON:      string(triggerJSON),
		MaxParallel:      sched.MaxParallelExecutions(),
		ExecutionTimeout: sched.ExecutionTimeout(),
	})
}

// RecordExecutionStart implements scheduler.Store.
func (s *Store) RecordExecutionStart(ctx context.Context, sched *schedmodel.Schedule, start time.Time, totalActions int) (uuid.UUID, error) {
	executionID := uuid.New()
	err := s.idx.InsertExecution(ctx, storage.ExecutionRow{
		ExecutionID:  executionID.String(),
		ScheduleID:   sched.ID().String(),
		StartTime:    start,
		TotalActions: totalActions,
	})
	return executionID, err
}

// RecordExecutionEnd implements scheduler.Store.
func (s *Store) RecordExecutionEnd(ctx context.Context, executionID uuid.UUID, end time.Time, success bool, errMsg string, actionsExecuted int) error {
	return s.idx.CompleteExecution(ctx, executionID.String(), end, success, errMsg, actionsExecuted)
}

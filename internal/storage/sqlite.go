package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// schemaVersion is the current schema generation. OpenIndex runs every
// statement in schemaMigrations, in order, on each open (each statement is
// idempotent) and records this value in metadata('schema_version') when no
// version is stored yet.
const schemaVersion = 1

var schemaMigrations = []string{
	`CREATE TABLE IF NOT EXISTS metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS recordings (
		recording_id TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		status       TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		action_count INTEGER NOT NULL DEFAULT 0,
		size         INTEGER NOT NULL DEFAULT 0,
		hash         TEXT NOT NULL DEFAULT '',
		blob_ref     TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS actions (
		recording_id    TEXT NOT NULL REFERENCES recordings(recording_id) ON DELETE CASCADE,
		sequence_number INTEGER NOT NULL,
		kind            TEXT NOT NULL,
		summary         TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (recording_id, sequence_number)
	);`,
	`CREATE TABLE IF NOT EXISTS schedules (
		schedule_id       TEXT PRIMARY KEY,
		recording_id      TEXT NOT NULL REFERENCES recordings(recording_id),
		status            TEXT NOT NULL,
		enabled           INTEGER NOT NULL DEFAULT 1,
		next_execution    TEXT,
		last_execution    TEXT,
		total_exec        INTEGER NOT NULL DEFAULT 0,
		success_exec      INTEGER NOT NULL DEFAULT 0,
		trigger_json      TEXT NOT NULL,
		max_parallel      INTEGER NOT NULL DEFAULT 1,
		execution_timeout INTEGER NOT NULL DEFAULT 300
	);`,
	`CREATE TABLE IF NOT EXISTS executions (
		execution_id     TEXT PRIMARY KEY,
		schedule_id      TEXT NOT NULL REFERENCES schedules(schedule_id) ON DELETE CASCADE,
		start_time       TEXT NOT NULL,
		end_time         TEXT,
		success          INTEGER,
		error            TEXT NOT NULL DEFAULT '',
		actions_executed INTEGER NOT NULL DEFAULT 0,
		total_actions    INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_executions_schedule ON executions(schedule_id, start_time DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_actions_recording ON actions(recording_id);`,
}

// maxExecutionHistory bounds per-schedule execution history (spec.md §4.7:
// "the repository trims per-schedule history to the most recent 100 rows").
const maxExecutionHistory = 100

// Index is the relational metadata/query layer alongside the blob store.
// Connections use WAL journaling with a 5s busy timeout so the Scheduler,
// Capture Engine, and Replay Engines can each hold their own connection
// from the pool without colliding on SQLITE_BUSY (spec.md §5: "connection-
// per-thread pool with SQLite in WAL mode; writers serialize on the
// database's own lock").
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if absent) the SQLite index at path and applies
// pending migrations.
func OpenIndex(path string) (*Index, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: opening index: %w", err)
	}
	db.SetMaxOpenConns(8)

	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) migrate() error {
	for _, stmt := range schemaMigrations {
		if _, err := idx.db.Exec(stmt); err != nil {
			return fmt.Errorf("storage: applying migration: %w", err)
		}
	}

	var current string
	err := idx.db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&current)
	if err == sql.ErrNoRows {
		_, err = idx.db.Exec(`INSERT INTO metadata(key, value) VALUES ('schema_version', ?)`, fmt.Sprint(schemaVersion))
	}
	if err != nil {
		return fmt.Errorf("storage: recording schema version: %w", err)
	}
	return nil
}

func (idx *Index) Close() error { return idx.db.Close() }

// RecordingRow is the denormalized recordings-table projection.
type RecordingRow struct {
	RecordingID string
	Name        string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ActionCount int
	Size        int64
	Hash        string
	BlobRef     string
}

// UpsertRecording writes the recordings row and its denormalized actions
// rows inside one transaction alongside the blob write (spec.md §4.7 step 4).
func (idx *Index) UpsertRecording(ctx context.Context, row RecordingRow, actionSummaries []ActionSummary) error {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recordings(recording_id, name, status, created_at, updated_at, action_count, size, hash, blob_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(recording_id) DO UPDATE SET
			name=excluded.name, status=excluded.status, updated_at=excluded.updated_at,
			action_count=excluded.action_count, size=excluded.size, hash=excluded.hash, blob_ref=excluded.blob_ref
	`, row.RecordingID, row.Name, row.Status, row.CreatedAt.UTC().Format(time.RFC3339Nano),
		row.UpdatedAt.UTC().Format(time.RFC3339Nano), row.ActionCount, row.Size, row.Hash, row.BlobRef)
	if err != nil {
		return fmt.Errorf("storage: upserting recording: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM actions WHERE recording_id = ?`, row.RecordingID); err != nil {
		return fmt.Errorf("storage: clearing action summaries: %w", err)
	}
	for _, a := range actionSummaries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO actions(recording_id, sequence_number, kind, summary) VALUES (?, ?, ?, ?)
		`, row.RecordingID, a.SequenceNumber, a.Kind, a.Summary); err != nil {
			return fmt.Errorf("storage: inserting action summary: %w", err)
		}
	}

	return tx.Commit()
}

// ActionSummary is one denormalized, non-authoritative actions-table row.
type ActionSummary struct {
	SequenceNumber int
	Kind           string
	Summary        string
}

func (idx *Index) GetRecording(ctx context.Context, recordingID string) (*RecordingRow, error) {
	var row RecordingRow
	var createdAt, updatedAt string
	err := idx.db.QueryRowContext(ctx, `
		SELECT recording_id, name, status, created_at, updated_at, action_count, size, hash, blob_ref
		FROM recordings WHERE recording_id = ?
	`, recordingID).Scan(&row.RecordingID, &row.Name, &row.Status, &createdAt, &updatedAt,
		&row.ActionCount, &row.Size, &row.Hash, &row.BlobRef)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: querying recording: %w", err)
	}
	row.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	row.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &row, nil
}

func (idx *Index) DeleteRecording(ctx context.Context, recordingID string) error {
	_, err := idx.db.ExecContext(ctx, `DELETE FROM recordings WHERE recording_id = ?`, recordingID)
	if err != nil {
		return fmt.Errorf("storage: deleting recording: %w", err)
	}
	return nil
}

func (idx *Index) ListRecordings(ctx context.Context) ([]RecordingRow, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT recording_id, name, status, created_at, updated_at, action_count, size, hash, blob_ref
		FROM recordings ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: listing recordings: %w", err)
	}
	defer rows.Close()

	var out []RecordingRow
	for rows.Next() {
		var row RecordingRow
		var createdAt, updatedAt string
		if err := rows.Scan(&row.RecordingID, &row.Name, &row.Status, &createdAt, &updatedAt,
			&row.ActionCount, &row.Size, &row.Hash, &row.BlobRef); err != nil {
			return nil, fmt.Errorf("storage: scanning recording row: %w", err)
		}
		row.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		row.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ScheduleRow is the schedules-table projection.
type ScheduleRow struct {
	ScheduleID       string
	RecordingID      string
	Status           string
	Enabled          bool
	NextExecution    *time.Time
	LastExecution    *time.Time
	TotalExec        int
	SuccessExec      int
	TriggerJSON      string
	MaxParallel      int
	ExecutionTimeout time.Duration
}

const scheduleColumns = `schedule_id, recording_id, status, enabled, next_execution, last_execution, total_exec, success_exec, trigger_json, max_parallel, execution_timeout`

func scanScheduleRow(scan func(dest ...interface{}) error) (ScheduleRow, error) {
	var row ScheduleRow
	var next, last sql.NullString
	var timeoutSecs int
	if err := scan(&row.ScheduleID, &row.RecordingID, &row.Status, &row.Enabled,
		&next, &last, &row.TotalExec, &row.SuccessExec, &row.TriggerJSON,
		&row.MaxParallel, &timeoutSecs); err != nil {
		return ScheduleRow{}, err
	}
	row.NextExecution = parseOptTime(next)
	row.LastExecution = parseOptTime(last)
	row.ExecutionTimeout = time.Duration(timeoutSecs) * time.Second
	return row, nil
}

func (idx *Index) UpsertSchedule(ctx context.Context, row ScheduleRow) error {
	_, err := idx.db.ExecContext(ctx, `
		INSERT INTO schedules(`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(schedule_id) DO UPDATE SET
			status=excluded.status, enabled=excluded.enabled, next_execution=excluded.next_execution,
			last_execution=excluded.last_execution, total_exec=excluded.total_exec,
			success_exec=excluded.success_exec, trigger_json=excluded.trigger_json,
			max_parallel=excluded.max_parallel, execution_timeout=excluded.execution_timeout
	`, row.ScheduleID, row.RecordingID, row.Status, row.Enabled, formatOptTime(row.NextExecution),
		formatOptTime(row.LastExecution), row.TotalExec, row.SuccessExec, row.TriggerJSON,
		row.MaxParallel, int(row.ExecutionTimeout/time.Second))
	if err != nil {
		return fmt.Errorf("storage: upserting schedule: %w", err)
	}
	return nil
}

// GetSchedule looks up one schedule by ID regardless of its enabled/status
// state, unlike ActiveSchedules which only surfaces tick-eligible rows.
func (idx *Index) GetSchedule(ctx context.Context, scheduleID string) (*ScheduleRow, error) {
	r := idx.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE schedule_id = ?`, scheduleID)
	row, err := scanScheduleRow(r.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: querying schedule: %w", err)
	}
	return &row, nil
}

// ActiveSchedules returns schedules eligible for the Scheduler's tick
// evaluation: enabled and in status 'active' (spec.md §4.8).
func (idx *Index) ActiveSchedules(ctx context.Context) ([]ScheduleRow, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+` FROM schedules WHERE enabled = 1 AND status = 'active'
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: querying active schedules: %w", err)
	}
	defer rows.Close()

	var out []ScheduleRow
	for rows.Next() {
		row, err := scanScheduleRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("storage: scanning schedule row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ExecutionRow is the executions-table projection.
type ExecutionRow struct {
	ExecutionID     string
	ScheduleID      string
	StartTime       time.Time
	EndTime         *time.Time
	Success         *bool
	Error           string
	ActionsExecuted int
	TotalActions    int
}

// InsertExecution inserts a new execution row, then trims the schedule's
// history to the most recent maxExecutionHistory rows (spec.md §4.7).
func (idx *Index) InsertExecution(ctx context.Context, row ExecutionRow) error {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO executions(execution_id, schedule_id, start_time, end_time, success, error, actions_executed, total_actions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, row.ExecutionID, row.ScheduleID, row.StartTime.UTC().Format(time.RFC3339Nano), formatOptTime(row.EndTime),
		formatOptBool(row.Success), row.Error, row.ActionsExecuted, row.TotalActions)
	if err != nil {
		return fmt.Errorf("storage: inserting execution: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM executions WHERE schedule_id = ? AND execution_id NOT IN (
			SELECT execution_id FROM executions WHERE schedule_id = ? ORDER BY start_time DESC LIMIT ?
		)
	`, row.ScheduleID, row.ScheduleID, maxExecutionHistory)
	if err != nil {
		return fmt.Errorf("storage: trimming execution history: %w", err)
	}

	return tx.Commit()
}

// CompleteExecution sets end_time/success/error/actions_executed on an
// in-progress execution row.
func (idx *Index) CompleteExecution(ctx context.Context, executionID string, endTime time.Time, success bool, errMsg string, actionsExecuted int) error {
	_, err := idx.db.ExecContext(ctx, `
		UPDATE executions SET end_time = ?, success = ?, error = ?, actions_executed = ?
		WHERE execution_id = ?
	`, endTime.UTC().Format(time.RFC3339Nano), success, errMsg, actionsExecuted, executionID)
	if err != nil {
		return fmt.Errorf("storage: completing execution: %w", err)
	}
	return nil
}

func formatOptTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseOptTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatOptBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

// Package runlog persists the run ledger in SQLite.
//
// Every pipeline invocation gets one row, written at start and completed at
// the end, successful or not. The ledger is what `virtucast runs` reads; it
// answers "what rendered, with which strategy, and why did it fail" after
// the console output is gone.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"virtucast/internal/config"
)

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database under the state
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path is the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Begin inserts the ledger row for a run that just started.
func (s *Store) Begin(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("runlog: run id required")
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
            id, title, script_path, timeline_path, output_dir,
            requested_strategy, used_strategy, fell_back, status, stage,
            expected_frames, frame_count, verified, error_kind, error_message,
            engine_exit_code, log_path, started_at, finished_at, duration_seconds
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		nullableString(run.Title),
		nullableString(run.ScriptPath),
		nullableString(run.TimelinePath),
		run.OutputDir,
		run.RequestedStrategy,
		nullableString(run.UsedStrategy),
		boolToInt(run.FellBack),
		string(run.Status),
		nullableString(run.Stage),
		run.ExpectedFrames,
		run.FrameCount,
		boolToInt(run.Verified),
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		nullableInt(run.EngineExitCode),
		nullableString(run.LogPath),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(run.FinishedAt),
		run.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish writes the final state of a run over its Begin row.
func (s *Store) Finish(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("runlog: run id required")
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
            title = ?, output_dir = ?, used_strategy = ?, fell_back = ?,
            status = ?, stage = ?, expected_frames = ?, frame_count = ?,
            verified = ?, error_kind = ?, error_message = ?,
            engine_exit_code = ?, log_path = ?, finished_at = ?,
            duration_seconds = ?
        WHERE id = ?`,
		nullableString(run.Title),
		run.OutputDir,
		nullableString(run.UsedStrategy),
		boolToInt(run.FellBack),
		string(run.Status),
		nullableString(run.Stage),
		run.ExpectedFrames,
		run.FrameCount,
		boolToInt(run.Verified),
		nullableString(run.ErrorKind),
		nullableString(run.ErrorMessage),
		nullableInt(run.EngineExitCode),
		nullableString(run.LogPath),
		nullableTime(run.FinishedAt),
		run.DurationSeconds,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetByID fetches one run.
func (s *Store) GetByID(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListOptions filters List output.
type ListOptions struct {
	// Limit caps the number of rows; <= 0 means 20.
	Limit int
	// Status restricts to one lifecycle state when non-empty.
	Status Status
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]any, 0, 2)
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan run: %w", scanErr)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

const runColumns = `id, title, script_path, timeline_path, output_dir,
    requested_strategy, used_strategy, fell_back, status, stage,
    expected_frames, frame_count, verified, error_kind, error_message,
    engine_exit_code, log_path, started_at, finished_at, duration_seconds`

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		title        sql.NullString
		scriptPath   sql.NullString
		timelinePath sql.NullString
		usedStrategy sql.NullString
		fellBack     int
		statusRaw    string
		stage        sql.NullString
		verified     int
		errorKind    sql.NullString
		errorMessage sql.NullString
		exitCode     sql.NullInt64
		logPath      sql.NullString
		startedRaw   string
		finishedRaw  sql.NullString
	)

	run := &Run{}
	if err := scanner.Scan(
		&run.ID,
		&title,
		&scriptPath,
		&timelinePath,
		&run.OutputDir,
		&run.RequestedStrategy,
		&usedStrategy,
		&fellBack,
		&statusRaw,
		&stage,
		&run.ExpectedFrames,
		&run.FrameCount,
		&verified,
		&errorKind,
		&errorMessage,
		&exitCode,
		&logPath,
		&startedRaw,
		&finishedRaw,
		&run.DurationSeconds,
	); err != nil {
		return nil, err
	}

	run.Title = title.String
	run.ScriptPath = scriptPath.String
	run.TimelinePath = timelinePath.String
	run.UsedStrategy = usedStrategy.String
	run.FellBack = fellBack != 0
	run.Status = Status(statusRaw)
	run.Stage = stage.String
	run.Verified = verified != 0
	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	run.LogPath = logPath.String
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.EngineExitCode = &code
	}

	started, err := parseTimeString(startedRaw)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	run.StartedAt = started
	if finishedRaw.Valid && strings.TrimSpace(finishedRaw.String) != "" {
		finished, parseErr := parseTimeString(finishedRaw.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse finished_at: %w", parseErr)
		}
		run.FinishedAt = &finished
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

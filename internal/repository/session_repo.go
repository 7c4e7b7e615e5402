package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gangaflow/console/internal/model"
)

const sessionColumns = `id, shell, status, exit_code, pid, remote_addr, recording_path, preview_line, created_at, updated_at, ended_at`

// SessionRepository provides data access for shell sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *model.ShellSession) error {
	query := `
		INSERT INTO shell_sessions (id, shell, status, pid, remote_addr, recording_path, preview_line, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Shell,
		s.Status,
		s.PID,
		s.RemoteAddr,
		s.RecordingPath,
		s.PreviewLine,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.ShellSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM shell_sessions WHERE id = ?`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// List returns the most recent sessions first. A non-positive limit returns
// all of them.
func (r *SessionRepository) List(ctx context.Context, limit int) ([]*model.ShellSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM shell_sessions ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*model.ShellSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM shell_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return requireRow(result)
}

// Finish records how a session ended.
func (r *SessionRepository) Finish(ctx context.Context, id string, status model.SessionStatus, exitCode *int, endedAt time.Time) error {
	query := `
		UPDATE shell_sessions
		SET status = ?, exit_code = ?, ended_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, status, exitCode, endedAt, endedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return requireRow(result)
}

// UpdatePreviewLine stores the last visible line of output.
func (r *SessionRepository) UpdatePreviewLine(ctx context.Context, id string, previewLine string) error {
	query := `
		UPDATE shell_sessions
		SET preview_line = ?, updated_at = ?
		WHERE id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, previewLine, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update preview line: %w", err)
	}
	return nil
}

// CountActive returns the number of running sessions.
func (r *SessionRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shell_sessions WHERE status = ?`,
		model.SessionStatusRunning,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

// FailRunning marks sessions still recorded as running as failed. Called at
// startup, when no shell from a previous process can still be alive.
func (r *SessionRepository) FailRunning(ctx context.Context) (int64, error) {
	now := time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE shell_sessions
		SET status = ?, ended_at = ?, updated_at = ?
		WHERE status = ?
	`, model.SessionStatusFailed, now, now, model.SessionStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to close stale sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.ShellSession, error) {
	s := &model.ShellSession{}
	var exitCode, pid sql.NullInt64
	var previewLine sql.NullString
	var endedAt sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.Shell,
		&s.Status,
		&exitCode,
		&pid,
		&s.RemoteAddr,
		&s.RecordingPath,
		&previewLine,
		&s.CreatedAt,
		&s.UpdatedAt,
		&endedAt,
	)
	if err != nil {
		return nil, err
	}

	if exitCode.Valid {
		code := int(exitCode.Int64)
		s.ExitCode = &code
	}
	if pid.Valid {
		p := int(pid.Int64)
		s.PID = &p
	}
	if previewLine.Valid {
		s.PreviewLine = previewLine.String
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return s, nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}

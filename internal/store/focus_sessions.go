package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/verte-zerg/focustimer/internal/model"
)

// Completion is the payload attached to a server-side session when it finishes.
type Completion struct {
	QualityRating  *int
	Notes          string
	ActualDuration int
	CompletedAt    time.Time
}

// CreateFocusSession records a session created through the collaborator API.
func (s *Store) CreateFocusSession(ctx context.Context, clientID string, sess model.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO focus_sessions (id, client_id, session_type, category_id, task_id, start_time, planned_duration, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		clientID,
		string(sess.SessionType),
		sess.CategoryID,
		sess.TaskID,
		sess.StartTime.Format(time.RFC3339Nano),
		sess.PlannedDuration,
		sess.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// CompleteFocusSession attaches completion data. Returns ErrNotFound for unknown ids.
func (s *Store) CompleteFocusSession(ctx context.Context, id string, c Completion) error {
	var rating any
	if c.QualityRating != nil {
		rating = *c.QualityRating
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE focus_sessions
		 SET completed = 1, quality_rating = ?, notes = ?, actual_duration = ?, completed_at = ?
		 WHERE id = ?`,
		rating, c.Notes, c.ActualDuration, c.CompletedAt.Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetFocusSession loads a collaborator session by id.
func (s *Store) GetFocusSession(ctx context.Context, id string) (model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_type, category_id, task_id, start_time, planned_duration, completed, created_at
		 FROM focus_sessions WHERE id = ?`, id)
	var sess model.Session
	var sessionType, startTime, createdAt string
	var completed int
	if err := row.Scan(&sess.ID, &sessionType, &sess.CategoryID, &sess.TaskID, &startTime, &sess.PlannedDuration, &completed, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, err
	}
	var err error
	if sess.StartTime, err = time.Parse(time.RFC3339Nano, startTime); err != nil {
		return model.Session{}, err
	}
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return model.Session{}, err
	}
	sess.SessionType = model.SessionType(sessionType)
	sess.Completed = completed == 1
	return sess, nil
}

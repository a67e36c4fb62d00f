package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/focustimer/internal/model"
)

// InsertSession stores a finished or abandoned session.
func (s *Store) InsertSession(ctx context.Context, cs model.CompletedSession) (int64, error) {
	var rating any
	if cs.QualityRating != nil {
		rating = *cs.QualityRating
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (server_id, local_id, session_type, category_id, task_id, started_at, ended_at, planned_duration, worked_seconds, completed, quality_rating, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cs.ServerID,
		cs.LocalID,
		string(cs.SessionType),
		cs.CategoryID,
		cs.TaskID,
		cs.StartedAt.Format(time.RFC3339Nano),
		cs.EndedAt.Format(time.RFC3339Nano),
		cs.PlannedDuration,
		cs.WorkedSeconds,
		boolToInt(cs.Completed),
		rating,
		cs.Notes,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListSessions returns session aggregates ordered by end time.
func (s *Store) ListSessions(ctx context.Context, filter model.HistoryFilter) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, filter.Since.Format(time.RFC3339Nano))
	}
	if filter.CompletedOnly {
		clauses = append(clauses, "completed = 1")
	}
	query := fmt.Sprintf(`SELECT id, session_type, ended_at, worked_seconds, completed, quality_rating
		FROM sessions
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var sessionType, endedAt string
		var completed int
		var rating sql.NullInt64
		if err := rows.Scan(&agg.SessionID, &sessionType, &endedAt, &agg.WorkedSeconds, &completed, &rating); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.SessionType = model.SessionType(sessionType)
		agg.EndedAt = parsed
		agg.Completed = completed == 1
		if rating.Valid {
			r := int(rating.Int64)
			agg.QualityRating = &r
		}
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// RateSession attaches a quality rating and notes to the most recent session with localID.
func (s *Store) RateSession(ctx context.Context, localID string, rating *int, notes string) error {
	var r any
	if rating != nil {
		r = *rating
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET quality_rating = ?, notes = ?
		 WHERE id = (SELECT id FROM sessions WHERE local_id = ? ORDER BY ended_at DESC LIMIT 1)`,
		r, notes, localID,
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

// InsertReview stores a submitted review response.
func (s *Store) InsertReview(ctx context.Context, resp model.ReviewResponse) (int64, error) {
	answers, err := json.Marshal(resp.Answers)
	if err != nil {
		return 0, fmt.Errorf("failed to encode answers: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO review_responses (prompt_type, answers, completed_at) VALUES (?, ?, ?)`,
		string(resp.PromptType), string(answers), resp.CompletedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListReviews returns the most recent review responses, newest first.
func (s *Store) ListReviews(ctx context.Context, limit int) ([]model.ReviewResponse, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT prompt_type, answers, completed_at FROM review_responses ORDER BY completed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var out []model.ReviewResponse
	for rows.Next() {
		var promptType, answers, completedAt string
		if err := rows.Scan(&promptType, &answers, &completedAt); err != nil {
			return nil, err
		}
		resp := model.ReviewResponse{PromptType: model.PromptType(promptType)}
		if err := json.Unmarshal([]byte(answers), &resp.Answers); err != nil {
			return nil, &PersistenceError{Op: "parse", Key: "review_responses", Err: err}
		}
		if resp.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

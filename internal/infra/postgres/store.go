package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
)

// Store implements app.SessionStore and app.AnswerStore on Postgres. The
// UNIQUE (user_id, session_id, question_id) constraint on answer_records is
// the canonical double-submit guard: concurrent creates race on the insert
// and exactly one row wins.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateSession(ctx context.Context, session domain.Session, slots []domain.QuestionSlot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (id, start_time, end_time, status, answer_time_ms, result_time_ms, interval_time_ms, category, difficulty)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		session.ID, session.StartTime, session.EndTime, string(session.Status),
		session.AnswerTime.Milliseconds(), session.ResultTime.Milliseconds(), session.IntervalTime.Milliseconds(),
		session.Category, session.Difficulty)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, slot := range slots {
		_, err = tx.Exec(ctx, `
			INSERT INTO question_slots (session_id, question_id, ordinal, display_time, duration_ms)
			VALUES ($1, $2, $3, $4, $5)`,
			slot.SessionID, slot.QuestionID, slot.Ordinal, slot.DisplayTime, slot.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert slot %d: %w", slot.Ordinal, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var (
		session                          domain.Session
		status                           string
		answerMs, resultMs, intervalMs   int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, start_time, end_time, status, answer_time_ms, result_time_ms, interval_time_ms, category, difficulty
		FROM sessions WHERE id = $1`, id).
		Scan(&session.ID, &session.StartTime, &session.EndTime, &status,
			&answerMs, &resultMs, &intervalMs, &session.Category, &session.Difficulty)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	session.Status = domain.SessionStatus(status)
	session.AnswerTime = time.Duration(answerMs) * time.Millisecond
	session.ResultTime = time.Duration(resultMs) * time.Millisecond
	session.IntervalTime = time.Duration(intervalMs) * time.Millisecond
	return session, nil
}

func (s *Store) ListSlots(ctx context.Context, sessionID string) ([]domain.QuestionSlot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, question_id, ordinal, display_time, duration_ms
		FROM question_slots WHERE session_id = $1 ORDER BY ordinal`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.QuestionSlot
	for rows.Next() {
		var (
			slot       domain.QuestionSlot
			durationMs int64
		)
		if err := rows.Scan(&slot.SessionID, &slot.QuestionID, &slot.Ordinal, &slot.DisplayTime, &durationMs); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slot.Duration = time.Duration(durationMs) * time.Millisecond
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	if len(slots) == 0 {
		// Distinguish a slotless session from an unknown one.
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, sessionID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check session: %w", err)
		}
		if !exists {
			return nil, domain.ErrSessionNotFound
		}
	}
	return slots, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, from, to domain.SessionStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetSession(ctx, id); err != nil {
			return err
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *Store) CreateAnswer(ctx context.Context, rec domain.AnswerRecord) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO answer_records (user_id, session_id, question_id, submitted_answer, correct, time_to_answer_ms, score, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, session_id, question_id) DO NOTHING`,
		rec.UserID, rec.SessionID, rec.QuestionID, rec.SubmittedAnswer,
		rec.Correct, rec.TimeToAnswer.Milliseconds(), rec.Score, rec.AnsweredAt)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateSubmission
	}
	return nil
}

func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	return s.queryAnswers(ctx, `
		SELECT user_id, session_id, question_id, submitted_answer, correct, time_to_answer_ms, score, answered_at
		FROM answer_records WHERE session_id = $1 ORDER BY answered_at, user_id`, sessionID)
}

func (s *Store) ListByUser(ctx context.Context, sessionID, userID string) ([]domain.AnswerRecord, error) {
	return s.queryAnswers(ctx, `
		SELECT user_id, session_id, question_id, submitted_answer, correct, time_to_answer_ms, score, answered_at
		FROM answer_records WHERE session_id = $1 AND user_id = $2 ORDER BY answered_at`, sessionID, userID)
}

func (s *Store) ListByFilter(ctx context.Context, filter domain.LeaderboardFilter) ([]domain.AnswerRecord, error) {
	query := `
		SELECT a.user_id, a.session_id, a.question_id, a.submitted_answer, a.correct, a.time_to_answer_ms, a.score, a.answered_at
		FROM answer_records a
		JOIN sessions s ON s.id = a.session_id
		WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.SessionID != "" {
		query += ` AND a.session_id = ` + arg(filter.SessionID)
	}
	if !filter.From.IsZero() {
		query += ` AND a.answered_at >= ` + arg(filter.From)
	}
	if !filter.To.IsZero() {
		query += ` AND a.answered_at < ` + arg(filter.To)
	}
	if filter.Category != "" {
		query += ` AND s.category = ` + arg(filter.Category)
	}
	if filter.Difficulty != "" {
		query += ` AND s.difficulty = ` + arg(filter.Difficulty)
	}
	query += ` ORDER BY a.answered_at, a.user_id`
	return s.queryAnswers(ctx, query, args...)
}

func (s *Store) queryAnswers(ctx context.Context, query string, args ...interface{}) ([]domain.AnswerRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var records []domain.AnswerRecord
	for rows.Next() {
		var (
			rec   domain.AnswerRecord
			ttaMs int64
		)
		if err := rows.Scan(&rec.UserID, &rec.SessionID, &rec.QuestionID, &rec.SubmittedAnswer,
			&rec.Correct, &ttaMs, &rec.Score, &rec.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		rec.TimeToAnswer = time.Duration(ttaMs) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	return records, nil
}

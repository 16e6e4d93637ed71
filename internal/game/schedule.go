package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
)

// ScheduleParams are the session-level inputs supplied by the scheduling
// collaborator. EndTime may be zero, in which case it is derived from the
// last slot's window.
type ScheduleParams struct {
	StartTime    time.Time
	EndTime      time.Time
	AnswerTime   time.Duration
	ResultTime   time.Duration
	IntervalTime time.Duration
	Category     string
	Difficulty   string
}

// BuildSchedule lays out one slot per question ID, evenly spaced so each
// slot's answer window, reveal, and interval complete before the next slot
// opens. The returned session starts SCHEDULED.
func BuildSchedule(params ScheduleParams, questionIDs []string) (domain.Session, []domain.QuestionSlot, error) {
	if len(questionIDs) == 0 {
		return domain.Session{}, nil, fmt.Errorf("%w: no questions", domain.ErrInvalidSchedule)
	}
	if params.AnswerTime <= 0 || params.ResultTime < 0 || params.IntervalTime < 0 {
		return domain.Session{}, nil, fmt.Errorf("%w: non-positive timing parameters", domain.ErrInvalidSchedule)
	}
	if params.StartTime.IsZero() {
		return domain.Session{}, nil, fmt.Errorf("%w: missing start time", domain.ErrInvalidSchedule)
	}

	stride := params.AnswerTime + params.ResultTime + params.IntervalTime
	lastWindowEnd := params.StartTime.Add(time.Duration(len(questionIDs)) * stride)
	endTime := params.EndTime
	if endTime.IsZero() {
		endTime = lastWindowEnd
	}

	session := domain.Session{
		ID:           uuid.NewString(),
		StartTime:    params.StartTime,
		EndTime:      endTime,
		Status:       domain.StatusScheduled,
		AnswerTime:   params.AnswerTime,
		ResultTime:   params.ResultTime,
		IntervalTime: params.IntervalTime,
		Category:     params.Category,
		Difficulty:   params.Difficulty,
	}

	slots := make([]domain.QuestionSlot, len(questionIDs))
	for i, qid := range questionIDs {
		slots[i] = domain.QuestionSlot{
			SessionID:   session.ID,
			QuestionID:  qid,
			Ordinal:     i,
			DisplayTime: params.StartTime.Add(time.Duration(i) * stride),
			Duration:    params.AnswerTime,
		}
	}

	if err := ValidateSchedule(session, slots); err != nil {
		return domain.Session{}, nil, err
	}
	return session, slots, nil
}

// ValidateSchedule enforces the schedule invariants before a session may be
// activated: startTime < endTime, slots strictly ordered by display time,
// and no slot's question/reveal/interval span overlapping the next slot.
func ValidateSchedule(session domain.Session, slots []domain.QuestionSlot) error {
	if !session.StartTime.Before(session.EndTime) {
		return fmt.Errorf("%w: start time %s not before end time %s",
			domain.ErrInvalidSchedule, session.StartTime, session.EndTime)
	}
	for i, slot := range slots {
		if slot.Duration <= 0 {
			return fmt.Errorf("%w: slot %d has non-positive duration", domain.ErrInvalidSchedule, i)
		}
		if slot.DisplayTime.Before(session.StartTime) {
			return fmt.Errorf("%w: slot %d opens before the session starts", domain.ErrInvalidSchedule, i)
		}
		if i == 0 {
			continue
		}
		prev := slots[i-1]
		earliest := prev.DisplayTime.Add(prev.Duration + session.ResultTime + session.IntervalTime)
		if slot.DisplayTime.Before(earliest) {
			return fmt.Errorf("%w: slot %d overlaps slot %d", domain.ErrInvalidSchedule, i, i-1)
		}
	}
	if n := len(slots); n > 0 {
		last := slots[n-1]
		if last.AnswerWindowEnd().After(session.EndTime) {
			return fmt.Errorf("%w: last slot closes after the session ends", domain.ErrInvalidSchedule)
		}
	}
	return nil
}

package domain

import "time"

// SessionStatus is the lifecycle state of a game session.
// Legal transitions: SCHEDULED -> ACTIVE -> COMPLETED, or any -> CANCELLED
// from a non-terminal state. No other edges.
type SessionStatus string

const (
	StatusScheduled SessionStatus = "SCHEDULED"
	StatusActive    SessionStatus = "ACTIVE"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusCancelled SessionStatus = "CANCELLED"
)

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusActive || next == StatusCancelled
	case StatusActive:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// Session identifies one timed trivia game and its pacing parameters.
type Session struct {
	ID           string        `json:"id"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime"`
	Status       SessionStatus `json:"status"`
	AnswerTime   time.Duration `json:"answerTime"`   // default seconds allowed per question
	ResultTime   time.Duration `json:"resultTime"`   // how long the reveal phase lasts
	IntervalTime time.Duration `json:"intervalTime"` // gap between reveal and next question
	Category     string        `json:"category,omitempty"`
	Difficulty   string        `json:"difficulty,omitempty"`
}

// QuestionSlot is one scheduled appearance of a question within a session.
// Slots are strictly ordered by DisplayTime and immutable once the session
// is ACTIVE.
type QuestionSlot struct {
	SessionID   string        `json:"sessionId"`
	QuestionID  string        `json:"questionId"`
	Ordinal     int           `json:"ordinal"`
	DisplayTime time.Time     `json:"displayTime"`
	Duration    time.Duration `json:"duration"`
}

// AnswerWindowEnd is the instant the slot stops accepting answers.
func (s QuestionSlot) AnswerWindowEnd() time.Time {
	return s.DisplayTime.Add(s.Duration)
}

// AnswerRecord is one user's response to one slot. Created exactly once per
// (userId, sessionId, questionId); never updated or deleted.
type AnswerRecord struct {
	UserID          string        `json:"userId"`
	SessionID       string        `json:"sessionId"`
	QuestionID      string        `json:"questionId"`
	SubmittedAnswer string        `json:"submittedAnswer"`
	Correct         bool          `json:"correct"`
	TimeToAnswer    time.Duration `json:"timeToAnswer"`
	Score           float64       `json:"score"`
	AnsweredAt      time.Time     `json:"answeredAt"`
}

// Phase is the derived sub-state of a session at an instant. It is computed
// on demand from Session + QuestionSlot + AnswerRecord existence and has no
// independent lifecycle.
type Phase string

const (
	PhaseWaiting     Phase = "WAITING"
	PhaseQuestion    Phase = "QUESTION"
	PhaseResult      Phase = "RESULT"
	PhaseLeaderboard Phase = "LEADERBOARD"
	PhaseEnded       Phase = "ENDED"
)

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID         string   `json:"id"`
	Prompt     string   `json:"prompt"`
	Options    []Option `json:"options"`
	Category   string   `json:"category,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
}

// CorrectAnswer returns the text of the correct option, or "" if none is
// flagged.
func (q Question) CorrectAnswer() string {
	for _, opt := range q.Options {
		if opt.Correct {
			return opt.Text
		}
	}
	return ""
}

// HasOption reports whether text matches one of the question's options.
func (q Question) HasOption(text string) bool {
	for _, opt := range q.Options {
		if opt.Text == text {
			return true
		}
	}
	return false
}

// LeaderboardEntry is one ranked row of an aggregated leaderboard.
type LeaderboardEntry struct {
	UserID     string  `json:"userId"`
	TotalScore float64 `json:"totalScore"`
	Rank       int     `json:"rank"`
}

// Leaderboard captures the ordered scoreboard for a session (live view) or
// for a wider historical filter.
type Leaderboard struct {
	SessionID string             `json:"sessionId,omitempty"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// LeaderboardFilter selects answer records for historical aggregation. Zero
// fields match everything.
type LeaderboardFilter struct {
	SessionID  string
	From       time.Time
	To         time.Time
	Category   string
	Difficulty string
}

// SubmitResult is returned to the caller after a valid submission; the
// correct answer is only revealed here, once the caller is RESULT-eligible.
type SubmitResult struct {
	QuestionID    string  `json:"questionId"`
	Correct       bool    `json:"correct"`
	Score         float64 `json:"score"`
	CorrectAnswer string  `json:"correctAnswer"`
}

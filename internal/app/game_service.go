package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
	"github.com/rexedge/timed-trivia-challenge-sub000/internal/game"
)

// SessionStore persists sessions and their slot schedules.
type SessionStore interface {
	CreateSession(ctx context.Context, session domain.Session, slots []domain.QuestionSlot) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	ListSlots(ctx context.Context, sessionID string) ([]domain.QuestionSlot, error)
	// UpdateStatus moves a session from one status to another; it must fail
	// with ErrInvalidTransition if the stored status no longer matches from.
	UpdateStatus(ctx context.Context, id string, from, to domain.SessionStatus) error
}

// AnswerStore persists answer records. CreateAnswer must be conditionally
// atomic on (userId, sessionId, questionId): of any number of concurrent
// creates for the same key, exactly one succeeds and the rest return
// ErrDuplicateSubmission.
type AnswerStore interface {
	CreateAnswer(ctx context.Context, rec domain.AnswerRecord) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.AnswerRecord, error)
	ListByUser(ctx context.Context, sessionID, userID string) ([]domain.AnswerRecord, error)
	ListByFilter(ctx context.Context, filter domain.LeaderboardFilter) ([]domain.AnswerRecord, error)
}

// QuestionRepository loads question content (from cache/backing store).
type QuestionRepository interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
}

// Notifier fans out leaderboard updates to push subscribers. Delivery is
// best-effort; core correctness never depends on it.
type Notifier interface {
	PublishLeaderboard(ctx context.Context, lb domain.Leaderboard)
}

// GameService contains the core game use cases: schedule creation, status
// resolution, answer submission, and leaderboard aggregation.
type GameService struct {
	sessions  SessionStore
	answers   AnswerStore
	questions QuestionRepository
	notifier  Notifier
	clock     clockwork.Clock
}

// Option configures optional GameService collaborators.
type Option func(*GameService)

// WithNotifier attaches a push-layer notifier.
func WithNotifier(n Notifier) Option {
	return func(s *GameService) { s.notifier = n }
}

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *GameService) { s.clock = c }
}

func NewGameService(sessions SessionStore, answers AnswerStore, questions QuestionRepository, opts ...Option) *GameService {
	s := &GameService{
		sessions:  sessions,
		answers:   answers,
		questions: questions,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession validates and persists a new schedule from session
// parameters plus an ordered question ID list. The session starts SCHEDULED.
func (s *GameService) CreateSession(ctx context.Context, params game.ScheduleParams, questionIDs []string) (domain.Session, []domain.QuestionSlot, error) {
	for _, qid := range questionIDs {
		if _, err := s.questions.GetQuestion(ctx, qid); err != nil {
			return domain.Session{}, nil, translateStorageErr(err)
		}
	}
	session, slots, err := game.BuildSchedule(params, questionIDs)
	if err != nil {
		return domain.Session{}, nil, err
	}
	if err := s.sessions.CreateSession(ctx, session, slots); err != nil {
		return domain.Session{}, nil, translateStorageErr(err)
	}
	return session, slots, nil
}

// ActivateSession moves a SCHEDULED session to ACTIVE.
func (s *GameService) ActivateSession(ctx context.Context, sessionID string) error {
	return s.transition(ctx, sessionID, domain.StatusActive)
}

// CompleteSession moves an ACTIVE session to COMPLETED.
func (s *GameService) CompleteSession(ctx context.Context, sessionID string) error {
	return s.transition(ctx, sessionID, domain.StatusCompleted)
}

// CancelSession cancels a session from any non-terminal status.
func (s *GameService) CancelSession(ctx context.Context, sessionID string) error {
	return s.transition(ctx, sessionID, domain.StatusCancelled)
}

func (s *GameService) transition(ctx context.Context, sessionID string, to domain.SessionStatus) error {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return translateStorageErr(err)
	}
	if !session.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, session.Status, to)
	}
	if err := s.sessions.UpdateStatus(ctx, sessionID, session.Status, to); err != nil {
		return translateStorageErr(err)
	}
	return nil
}

// QuestionView is question content with the correct flag stripped, safe to
// show while the answer window is open.
type QuestionView struct {
	ID      string       `json:"id"`
	Prompt  string       `json:"prompt"`
	Options []OptionView `json:"options"`
}

type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Status is the full poll response for one user at one instant.
type Status struct {
	SessionID        string             `json:"sessionId"`
	Phase            domain.Phase       `json:"phase"`
	PhaseEndsAt      time.Time          `json:"phaseEndsAt,omitempty"`
	SlotIndex        int                `json:"slotIndex"`
	ActiveQuestion   *QuestionView      `json:"activeQuestion,omitempty"`
	CurrentUserScore float64            `json:"currentUserScore"`
	AnsweredIDs      []string           `json:"answeredQuestionIds"`
	LiveLeaderboard  domain.Leaderboard `json:"liveLeaderboard"`
}

// GetStatus resolves the session phase for one user at the given instant.
// The active question is included only during an unanswered QUESTION phase,
// and never carries the correct flag.
func (s *GameService) GetStatus(ctx context.Context, sessionID, userID string, now time.Time) (Status, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Status{}, translateStorageErr(err)
	}
	slots, err := s.sessions.ListSlots(ctx, sessionID)
	if err != nil {
		return Status{}, translateStorageErr(err)
	}
	userRecords, err := s.answers.ListByUser(ctx, sessionID, userID)
	if err != nil {
		return Status{}, translateStorageErr(err)
	}
	allRecords, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return Status{}, translateStorageErr(err)
	}

	log := game.AnswerLog(userRecords)
	info := game.Resolve(session, slots, now, log)

	status := Status{
		SessionID:   sessionID,
		Phase:       info.Phase,
		PhaseEndsAt: info.PhaseEndsAt,
		SlotIndex:   info.SlotIndex,
		AnsweredIDs: make([]string, 0, len(userRecords)),
		LiveLeaderboard: domain.Leaderboard{
			SessionID: sessionID,
			Entries:   AggregateLeaderboard(allRecords),
			UpdatedAt: now,
		},
	}
	for _, rec := range userRecords {
		status.CurrentUserScore += rec.Score
		status.AnsweredIDs = append(status.AnsweredIDs, rec.QuestionID)
	}

	if info.Phase == domain.PhaseQuestion && info.SlotIndex >= 0 {
		slot := slots[info.SlotIndex]
		if _, answered := log[slot.QuestionID]; !answered {
			question, err := s.questions.GetQuestion(ctx, slot.QuestionID)
			if err != nil {
				return Status{}, translateStorageErr(err)
			}
			status.ActiveQuestion = redactQuestion(question)
		}
	}
	return status, nil
}

// Submit validates and records one answer exactly once per (user, question).
// Preconditions are checked in order: session ACTIVE, resolver reports
// QUESTION for the targeted slot, no prior record, answer matches one of the
// question's options. The storage uniqueness constraint remains the final
// arbiter under concurrency.
func (s *GameService) Submit(ctx context.Context, userID, sessionID, questionID, answerText string, now time.Time) (domain.SubmitResult, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return domain.SubmitResult{}, translateStorageErr(err)
	}
	if session.Status != domain.StatusActive {
		return domain.SubmitResult{}, fmt.Errorf("%w: session is %s", domain.ErrOutOfWindow, session.Status)
	}

	slots, err := s.sessions.ListSlots(ctx, sessionID)
	if err != nil {
		return domain.SubmitResult{}, translateStorageErr(err)
	}
	slotIndex := -1
	for i, slot := range slots {
		if slot.QuestionID == questionID {
			slotIndex = i
			break
		}
	}
	if slotIndex == -1 {
		return domain.SubmitResult{}, domain.ErrQuestionNotFound
	}

	// Window check against the public schedule, ignoring the caller's own
	// answers so an already-answered active slot reports duplicate below
	// rather than out-of-window.
	info := game.Resolve(session, slots, now, nil)
	if info.Phase != domain.PhaseQuestion || info.SlotIndex != slotIndex {
		return domain.SubmitResult{}, domain.ErrOutOfWindow
	}

	userRecords, err := s.answers.ListByUser(ctx, sessionID, userID)
	if err != nil {
		return domain.SubmitResult{}, translateStorageErr(err)
	}
	for _, rec := range userRecords {
		if rec.QuestionID == questionID {
			return domain.SubmitResult{}, domain.ErrDuplicateSubmission
		}
	}

	question, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.SubmitResult{}, translateStorageErr(err)
	}
	if !question.HasOption(answerText) {
		return domain.SubmitResult{}, domain.ErrOptionNotFound
	}

	slot := slots[slotIndex]
	timeToAnswer := game.ClampTimeToAnswer(now.Sub(slot.DisplayTime), slot.Duration)
	correct := answerText == question.CorrectAnswer()

	rec := domain.AnswerRecord{
		UserID:          userID,
		SessionID:       sessionID,
		QuestionID:      questionID,
		SubmittedAnswer: answerText,
		Correct:         correct,
		TimeToAnswer:    timeToAnswer,
		Score:           game.Score(correct, timeToAnswer, slot.Duration),
		AnsweredAt:      now,
	}
	if err := s.answers.CreateAnswer(ctx, rec); err != nil {
		return domain.SubmitResult{}, translateStorageErr(err)
	}

	if s.notifier != nil {
		if lb, err := s.Leaderboard(ctx, sessionID); err == nil {
			s.notifier.PublishLeaderboard(ctx, lb)
		}
	}

	return domain.SubmitResult{
		QuestionID:    questionID,
		Correct:       correct,
		Score:         rec.Score,
		CorrectAnswer: question.CorrectAnswer(),
	}, nil
}

// Leaderboard returns the live ranking for one session.
func (s *GameService) Leaderboard(ctx context.Context, sessionID string) (domain.Leaderboard, error) {
	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return domain.Leaderboard{}, translateStorageErr(err)
	}
	records, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return domain.Leaderboard{}, translateStorageErr(err)
	}
	return domain.Leaderboard{
		SessionID: sessionID,
		Entries:   AggregateLeaderboard(records),
		UpdatedAt: s.clock.Now(),
	}, nil
}

// HistoricalLeaderboard aggregates across sessions under a wider filter,
// with the same grouping, sorting, and tie-break as the live view.
func (s *GameService) HistoricalLeaderboard(ctx context.Context, filter domain.LeaderboardFilter) (domain.Leaderboard, error) {
	records, err := s.answers.ListByFilter(ctx, filter)
	if err != nil {
		return domain.Leaderboard{}, translateStorageErr(err)
	}
	return domain.Leaderboard{
		SessionID: filter.SessionID,
		Entries:   AggregateLeaderboard(records),
		UpdatedAt: s.clock.Now(),
	}, nil
}

func redactQuestion(q domain.Question) *QuestionView {
	view := &QuestionView{ID: q.ID, Prompt: q.Prompt, Options: make([]OptionView, len(q.Options))}
	for i, opt := range q.Options {
		view.Options[i] = OptionView{ID: opt.ID, Text: opt.Text}
	}
	return view
}

// translateStorageErr keeps domain classifications intact and wraps anything
// else as retryable ErrUnavailable so driver errors never leak to callers.
func translateStorageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrOptionNotFound),
		errors.Is(err, domain.ErrDuplicateSubmission),
		errors.Is(err, domain.ErrOutOfWindow),
		errors.Is(err, domain.ErrInvalidSchedule),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
}

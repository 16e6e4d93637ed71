package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
)

type answerKey struct {
	userID     string
	sessionID  string
	questionID string
}

// Store is an in-memory implementation of app.SessionStore and
// app.AnswerStore. The single mutex makes CreateAnswer conditionally atomic:
// of concurrent creates for the same key, exactly one wins.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	slots    map[string][]domain.QuestionSlot
	answers  map[answerKey]domain.AnswerRecord
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]domain.Session),
		slots:    make(map[string][]domain.QuestionSlot),
		answers:  make(map[answerKey]domain.AnswerRecord),
	}
}

func (s *Store) CreateSession(_ context.Context, session domain.Session, slots []domain.QuestionSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	copied := make([]domain.QuestionSlot, len(slots))
	copy(copied, slots)
	s.slots[session.ID] = copied
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) ListSlots(_ context.Context, sessionID string) ([]domain.QuestionSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slots, ok := s.slots[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := make([]domain.QuestionSlot, len(slots))
	copy(out, slots)
	return out, nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, from, to domain.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Status != from {
		return domain.ErrInvalidTransition
	}
	session.Status = to
	s.sessions[id] = session
	return nil
}

func (s *Store) CreateAnswer(_ context.Context, rec domain.AnswerRecord) error {
	key := answerKey{rec.UserID, rec.SessionID, rec.QuestionID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.answers[key]; exists {
		return domain.ErrDuplicateSubmission
	}
	s.answers[key] = rec
	return nil
}

func (s *Store) ListBySession(_ context.Context, sessionID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AnswerRecord
	for key, rec := range s.answers {
		if key.sessionID == sessionID {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *Store) ListByUser(_ context.Context, sessionID, userID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AnswerRecord
	for key, rec := range s.answers {
		if key.sessionID == sessionID && key.userID == userID {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *Store) ListByFilter(_ context.Context, filter domain.LeaderboardFilter) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AnswerRecord
	for _, rec := range s.answers {
		if filter.SessionID != "" && rec.SessionID != filter.SessionID {
			continue
		}
		if !filter.From.IsZero() && rec.AnsweredAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !rec.AnsweredAt.Before(filter.To) {
			continue
		}
		if filter.Category != "" || filter.Difficulty != "" {
			session, ok := s.sessions[rec.SessionID]
			if !ok {
				continue
			}
			if filter.Category != "" && session.Category != filter.Category {
				continue
			}
			if filter.Difficulty != "" && session.Difficulty != filter.Difficulty {
				continue
			}
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(records []domain.AnswerRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].AnsweredAt.Equal(records[j].AnsweredAt) {
			return records[i].AnsweredAt.Before(records[j].AnsweredAt)
		}
		if records[i].UserID != records[j].UserID {
			return records[i].UserID < records[j].UserID
		}
		return records[i].QuestionID < records[j].QuestionID
	})
}

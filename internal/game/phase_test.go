package game

import (
	"sync"
	"testing"
	"time"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
)

var base = time.Date(2025, 6, 20, 18, 0, 0, 0, time.UTC)

// Two slots: [T, T+30) question, reveal to T+35, interval to T+37, second
// slot opens T+37, session ends T+74.
func fixture() (domain.Session, []domain.QuestionSlot) {
	session := domain.Session{
		ID:           "s1",
		StartTime:    base,
		EndTime:      base.Add(74 * time.Second),
		Status:       domain.StatusActive,
		AnswerTime:   30 * time.Second,
		ResultTime:   5 * time.Second,
		IntervalTime: 2 * time.Second,
	}
	slots := []domain.QuestionSlot{
		{SessionID: "s1", QuestionID: "q1", Ordinal: 0, DisplayTime: base, Duration: 30 * time.Second},
		{SessionID: "s1", QuestionID: "q2", Ordinal: 1, DisplayTime: base.Add(37 * time.Second), Duration: 30 * time.Second},
	}
	return session, slots
}

func TestResolveWaitingBeforeFirstSlot(t *testing.T) {
	session, slots := fixture()
	info := Resolve(session, slots, base.Add(-time.Minute), nil)
	if info.Phase != domain.PhaseWaiting || info.SlotIndex != -1 {
		t.Fatalf("expected WAITING/-1, got %s/%d", info.Phase, info.SlotIndex)
	}
	if !info.PhaseEndsAt.Equal(base) {
		t.Fatalf("expected WAITING to end at first display time, got %v", info.PhaseEndsAt)
	}
}

func TestResolveUnansweredProgression(t *testing.T) {
	session, slots := fixture()

	cases := []struct {
		offset time.Duration
		phase  domain.Phase
		slot   int
		endsAt time.Duration
	}{
		{10 * time.Second, domain.PhaseQuestion, 0, 30 * time.Second},
		{31 * time.Second, domain.PhaseResult, 0, 35 * time.Second},
		{35 * time.Second, domain.PhaseLeaderboard, 0, 37 * time.Second},
		{36 * time.Second, domain.PhaseLeaderboard, 0, 37 * time.Second},
		{37 * time.Second, domain.PhaseQuestion, 1, 67 * time.Second},
		{68 * time.Second, domain.PhaseResult, 1, 72 * time.Second},
		{73 * time.Second, domain.PhaseLeaderboard, 1, 74 * time.Second},
	}
	for _, tc := range cases {
		info := Resolve(session, slots, base.Add(tc.offset), nil)
		if info.Phase != tc.phase || info.SlotIndex != tc.slot {
			t.Fatalf("at +%v expected %s/%d, got %s/%d", tc.offset, tc.phase, tc.slot, info.Phase, info.SlotIndex)
		}
		if !info.PhaseEndsAt.Equal(base.Add(tc.endsAt)) {
			t.Fatalf("at +%v expected phase end +%v, got %v", tc.offset, tc.endsAt, info.PhaseEndsAt)
		}
	}
}

func TestResolveHalfOpenBoundaries(t *testing.T) {
	session, slots := fixture()

	// Exactly at the answer-window close the instant belongs to RESULT.
	info := Resolve(session, slots, base.Add(30*time.Second), nil)
	if info.Phase != domain.PhaseResult {
		t.Fatalf("expected RESULT at the window boundary, got %s", info.Phase)
	}
	// Exactly at the next display time the instant belongs to the next slot.
	info = Resolve(session, slots, base.Add(37*time.Second), nil)
	if info.Phase != domain.PhaseQuestion || info.SlotIndex != 1 {
		t.Fatalf("expected QUESTION/1 at the slot boundary, got %s/%d", info.Phase, info.SlotIndex)
	}
	// Exactly at the session end the game is over.
	info = Resolve(session, slots, session.EndTime, nil)
	if info.Phase != domain.PhaseEnded {
		t.Fatalf("expected ENDED at session end, got %s", info.Phase)
	}
	if !info.PhaseEndsAt.IsZero() {
		t.Fatalf("ENDED must have no phase end, got %v", info.PhaseEndsAt)
	}
}

func TestResolveAnsweredCallerSeesResultEarly(t *testing.T) {
	session, slots := fixture()
	answers := map[string]time.Time{"q1": base.Add(5 * time.Second)}

	// Mid-window but already answered: RESULT, ending a fixed resultTime
	// after the shared window close.
	info := Resolve(session, slots, base.Add(6*time.Second), answers)
	if info.Phase != domain.PhaseResult || info.SlotIndex != 0 {
		t.Fatalf("expected RESULT/0 for answered caller, got %s/%d", info.Phase, info.SlotIndex)
	}
	if !info.PhaseEndsAt.Equal(base.Add(35 * time.Second)) {
		t.Fatalf("expected result end +35s, got %v", info.PhaseEndsAt)
	}

	// An unanswered caller at the same instant still sees QUESTION.
	info = Resolve(session, slots, base.Add(6*time.Second), nil)
	if info.Phase != domain.PhaseQuestion {
		t.Fatalf("expected QUESTION for unanswered caller, got %s", info.Phase)
	}
}

func TestResolveAnswerForOtherSlotDoesNotAffectCurrent(t *testing.T) {
	session, slots := fixture()
	answers := map[string]time.Time{"q1": base.Add(5 * time.Second)}

	info := Resolve(session, slots, base.Add(40*time.Second), answers)
	if info.Phase != domain.PhaseQuestion || info.SlotIndex != 1 {
		t.Fatalf("expected QUESTION/1, got %s/%d", info.Phase, info.SlotIndex)
	}
}

func TestResolvePhaseCoverage(t *testing.T) {
	session, slots := fixture()

	// Every instant from the first display time to session end resolves to
	// exactly one of QUESTION, RESULT, LEADERBOARD.
	for offset := time.Duration(0); base.Add(offset).Before(session.EndTime); offset += 250 * time.Millisecond {
		info := Resolve(session, slots, base.Add(offset), nil)
		switch info.Phase {
		case domain.PhaseQuestion, domain.PhaseResult, domain.PhaseLeaderboard:
		default:
			t.Fatalf("at +%v expected an in-game phase, got %s", offset, info.Phase)
		}
		if info.PhaseEndsAt.IsZero() {
			t.Fatalf("at +%v missing phase end", offset)
		}
	}
}

func TestResolveDeterministicUnderConcurrency(t *testing.T) {
	session, slots := fixture()
	now := base.Add(31 * time.Second)
	want := Resolve(session, slots, now, nil)

	var wg sync.WaitGroup
	results := make([]PhaseInfo, 1000)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Resolve(session, slots, now, nil)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != want {
			t.Fatalf("call %d diverged: want %+v, got %+v", i, want, got)
		}
	}
}

func TestResolveNoSlots(t *testing.T) {
	session, _ := fixture()
	info := Resolve(session, nil, base, nil)
	if info.Phase != domain.PhaseWaiting {
		t.Fatalf("expected WAITING for empty schedule, got %s", info.Phase)
	}
	if !info.PhaseEndsAt.Equal(session.EndTime) {
		t.Fatalf("expected WAITING to end at session end, got %v", info.PhaseEndsAt)
	}
}

func TestAnswerLog(t *testing.T) {
	at := base.Add(3 * time.Second)
	log := AnswerLog([]domain.AnswerRecord{{QuestionID: "q1", AnsweredAt: at}})
	if got, ok := log["q1"]; !ok || !got.Equal(at) {
		t.Fatalf("expected q1 at %v, got %v (%v)", at, got, ok)
	}
}

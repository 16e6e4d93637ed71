package game

import (
	"sort"
	"time"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
)

// PhaseInfo is the resolved state of a session at one instant. SlotIndex is
// -1 while WAITING or ENDED. PhaseEndsAt is the zero time for ENDED.
type PhaseInfo struct {
	SlotIndex   int          `json:"slotIndex"`
	Phase       domain.Phase `json:"phase"`
	PhaseEndsAt time.Time    `json:"phaseEndsAt"`
}

// Resolve computes which slot is live, which phase is active, and when that
// phase ends, purely from the schedule, the instant, and the caller's own
// answer log (questionID -> answeredAt). It performs no I/O, holds no state,
// and returns identical results for identical inputs, so any client or
// server can replay it after missed polls or reconnects.
//
// All phase boundaries are half-open [start, end): an instant equal to a
// boundary belongs to the next phase.
func Resolve(session domain.Session, slots []domain.QuestionSlot, now time.Time, answers map[string]time.Time) PhaseInfo {
	if !now.Before(session.EndTime) {
		return PhaseInfo{SlotIndex: -1, Phase: domain.PhaseEnded}
	}
	if len(slots) == 0 {
		return PhaseInfo{SlotIndex: -1, Phase: domain.PhaseWaiting, PhaseEndsAt: session.EndTime}
	}
	if now.Before(slots[0].DisplayTime) {
		return PhaseInfo{SlotIndex: -1, Phase: domain.PhaseWaiting, PhaseEndsAt: slots[0].DisplayTime}
	}

	// Last slot whose window has opened. Slots are strictly ordered by
	// DisplayTime, so this is the unique slot whose active window
	// [displayTime[i], nextBoundary[i]) contains now.
	i := sort.Search(len(slots), func(j int) bool {
		return slots[j].DisplayTime.After(now)
	}) - 1

	slot := slots[i]
	nextBoundary := session.EndTime
	if i+1 < len(slots) {
		nextBoundary = slots[i+1].DisplayTime
	}

	answerEnd := slot.AnswerWindowEnd()
	answeredAt, answered := answers[slot.QuestionID]

	// QUESTION runs until the caller answers or the window closes,
	// whichever comes first.
	inQuestion := now.Before(answerEnd) && (!answered || now.Before(answeredAt))
	if inQuestion {
		return PhaseInfo{SlotIndex: i, Phase: domain.PhaseQuestion, PhaseEndsAt: answerEnd}
	}

	// RESULT ends a fixed resultTime after the answer window closes (or
	// after answeredAt, should a record ever land past the window), so the
	// reveal boundary is the same for every participant.
	resultEnd := answerEnd
	if answered && answeredAt.After(resultEnd) {
		resultEnd = answeredAt
	}
	resultEnd = resultEnd.Add(session.ResultTime)
	if resultEnd.After(nextBoundary) {
		resultEnd = nextBoundary
	}

	if now.Before(resultEnd) {
		return PhaseInfo{SlotIndex: i, Phase: domain.PhaseResult, PhaseEndsAt: resultEnd}
	}
	return PhaseInfo{SlotIndex: i, Phase: domain.PhaseLeaderboard, PhaseEndsAt: nextBoundary}
}

// AnswerLog converts a user's answer records into the lookup Resolve expects.
func AnswerLog(records []domain.AnswerRecord) map[string]time.Time {
	log := make(map[string]time.Time, len(records))
	for _, rec := range records {
		log[rec.QuestionID] = rec.AnsweredAt
	}
	return log
}

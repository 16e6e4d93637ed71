package app

import (
	"sort"
	"time"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
)

// AggregateLeaderboard reduces answer records into ranked per-user totals:
// scores are summed per user and sorted descending, ties broken by the
// earlier sum of answer timestamps (faster responders rank higher), then by
// user ID so the ordering never depends on storage order. Ranks are 1-based
// and strictly sequential; equal scores still receive distinct ranks.
//
// The same reduction serves both the live per-session view and historical
// cross-session views; callers choose which records to feed it.
func AggregateLeaderboard(records []domain.AnswerRecord) []domain.LeaderboardEntry {
	// Timestamp sums are kept as split (seconds, sub-second nanos) with the
	// nano part carried into seconds, because summing raw UnixNano values
	// overflows int64 after a handful of records.
	type userTotal struct {
		userID      string
		totalScore  float64
		answeredSec int64
		answeredNs  int64
	}

	totals := make(map[string]*userTotal)
	for _, rec := range records {
		t, ok := totals[rec.UserID]
		if !ok {
			t = &userTotal{userID: rec.UserID}
			totals[rec.UserID] = t
		}
		t.totalScore += rec.Score
		t.answeredSec += rec.AnsweredAt.Unix()
		t.answeredNs += int64(rec.AnsweredAt.Nanosecond())
		t.answeredSec += t.answeredNs / int64(time.Second)
		t.answeredNs %= int64(time.Second)
	}

	ordered := make([]*userTotal, 0, len(totals))
	for _, t := range totals {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].totalScore != ordered[j].totalScore {
			return ordered[i].totalScore > ordered[j].totalScore
		}
		if ordered[i].answeredSec != ordered[j].answeredSec {
			return ordered[i].answeredSec < ordered[j].answeredSec
		}
		if ordered[i].answeredNs != ordered[j].answeredNs {
			return ordered[i].answeredNs < ordered[j].answeredNs
		}
		return ordered[i].userID < ordered[j].userID
	})

	entries := make([]domain.LeaderboardEntry, len(ordered))
	for i, t := range ordered {
		entries[i] = domain.LeaderboardEntry{
			UserID:     t.userID,
			TotalScore: t.totalScore,
			Rank:       i + 1,
		}
	}
	return entries
}

package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
)

func TestBroadcasterPublishesToSubscribers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	b := NewBroadcaster(newClient(mr), zerolog.Nop())
	ctx := context.Background()

	updates, cancel, err := b.Subscribe(ctx, "s1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	lb := domain.Leaderboard{
		SessionID: "s1",
		Entries:   []domain.LeaderboardEntry{{UserID: "alice", TotalScore: 18.5, Rank: 1}},
	}
	b.PublishLeaderboard(ctx, lb)

	select {
	case got := <-updates:
		if got.SessionID != "s1" || len(got.Entries) != 1 || got.Entries[0].UserID != "alice" {
			t.Fatalf("unexpected update %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for published update")
	}
}

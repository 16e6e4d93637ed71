package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
)

// Broadcaster fans leaderboard updates out across server instances via
// Redis pub/sub. Delivery is best-effort: the resolver-driven polling path
// stays correct whether or not a published update arrives.
type Broadcaster struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewBroadcaster(client *redis.Client, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{client: client, log: log}
}

func (b *Broadcaster) PublishLeaderboard(ctx context.Context, lb domain.Leaderboard) {
	raw, err := json.Marshal(lb)
	if err != nil {
		b.log.Error().Err(err).Str("session", lb.SessionID).Msg("marshal leaderboard")
		return
	}
	if err := b.client.Publish(ctx, b.channel(lb.SessionID), raw).Err(); err != nil {
		b.log.Warn().Err(err).Str("session", lb.SessionID).Msg("publish leaderboard")
	}
}

// Subscribe returns a channel receiving leaderboard updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID string) (<-chan domain.Leaderboard, func(), error) {
	sub := b.client.Subscribe(ctx, b.channel(sessionID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan domain.Leaderboard, 8)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var lb domain.Leaderboard
			if err := json.Unmarshal([]byte(msg.Payload), &lb); err != nil {
				b.log.Warn().Err(err).Str("session", sessionID).Msg("decode leaderboard update")
				continue
			}
			select {
			case out <- lb:
			default:
				select {
				case <-out:
				default:
				}
				out <- lb
			}
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}
	return out, cancel, nil
}

func (b *Broadcaster) channel(sessionID string) string {
	return "session:" + sessionID + ":leaderboard"
}

package memory

import (
	"context"
	"sync"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
)

// Broadcaster fans leaderboard updates out to in-process subscribers. It is
// the single-instance counterpart of the Redis pub/sub broadcaster; slow
// subscribers have their stale update dropped rather than blocking the
// publisher.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]map[chan domain.Leaderboard]struct{}),
	}
}

func (b *Broadcaster) PublishLeaderboard(_ context.Context, lb domain.Leaderboard) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers[lb.SessionID] {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// Subscribe returns a channel receiving leaderboard updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (b *Broadcaster) Subscribe(_ context.Context, sessionID string) (<-chan domain.Leaderboard, func(), error) {
	ch := make(chan domain.Leaderboard, 8)

	b.mu.Lock()
	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = make(map[chan domain.Leaderboard]struct{})
	}
	b.subscribers[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if subs, ok := b.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subscribers, sessionID)
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel, nil
}

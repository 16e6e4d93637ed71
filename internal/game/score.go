package game

import "time"

const (
	baseScore     = 10.0
	speedBonusCap = 10.0
)

// Score computes the points earned by an answer. Incorrect answers score 0
// regardless of speed. Correct answers score base + speed bonus, where the
// bonus decays linearly from speedBonusCap at t=0 to zero at t=allowed.
// timeToAnswer is clamped to [0, allowed] first, so out-of-range inputs can
// never produce negative or inflated bonuses.
func Score(correct bool, timeToAnswer, allowed time.Duration) float64 {
	if !correct {
		return 0
	}
	if allowed <= 0 {
		return baseScore
	}
	t := ClampTimeToAnswer(timeToAnswer, allowed)
	bonus := float64(allowed-t) / float64(allowed) * speedBonusCap
	return baseScore + bonus
}

// ClampTimeToAnswer bounds an elapsed answer time to [0, allowed].
func ClampTimeToAnswer(t, allowed time.Duration) time.Duration {
	if t < 0 {
		return 0
	}
	if t > allowed {
		return allowed
	}
	return t
}

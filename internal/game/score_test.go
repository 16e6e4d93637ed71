package game

import (
	"math"
	"testing"
	"time"
)

func TestScoreBounds(t *testing.T) {
	d := 30 * time.Second

	if got := Score(false, 0, d); got != 0 {
		t.Fatalf("incorrect answer must score 0, got %v", got)
	}
	if got := Score(false, d, d); got != 0 {
		t.Fatalf("incorrect answer must score 0 regardless of speed, got %v", got)
	}
	if got := Score(true, 0, d); got != 20 {
		t.Fatalf("instant correct answer must score 20, got %v", got)
	}
	if got := Score(true, d, d); got != 10 {
		t.Fatalf("last-instant correct answer must score 10, got %v", got)
	}
}

func TestScoreSpeedBonus(t *testing.T) {
	// 5s into a 30s window: 10 + 25/30*10
	got := Score(true, 5*time.Second, 30*time.Second)
	want := 10 + 25.0/30.0*10
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestScoreClampsOutOfRangeTimes(t *testing.T) {
	d := 30 * time.Second

	if got := Score(true, -10*time.Second, d); got != 20 {
		t.Fatalf("negative time must clamp to 0, got %v", got)
	}
	if got := Score(true, 2*d, d); got != 10 {
		t.Fatalf("late time must clamp to duration, got %v", got)
	}
}

func TestScoreMonotonicity(t *testing.T) {
	d := 30 * time.Second
	prev := math.Inf(1)
	for tta := time.Duration(0); tta <= d; tta += time.Second {
		got := Score(true, tta, d)
		if got > prev {
			t.Fatalf("score increased from %v to %v at t=%v", prev, got, tta)
		}
		prev = got
	}
}

func TestScoreZeroDuration(t *testing.T) {
	if got := Score(true, 0, 0); got != 10 {
		t.Fatalf("zero-duration window must award base only, got %v", got)
	}
}

package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
	"github.com/rexedge/timed-trivia-challenge-sub000/internal/infra/memory"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(map[string]domain.Question{
			"q1": sampleQuestion(),
		}),
	}
	repo := NewQuestionRepository(client, loader, time.Minute)

	question, err := repo.GetQuestion(context.Background(), "q1")
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if question.CorrectAnswer() != "Paris" {
		t.Fatalf("expected round-tripped question, got %+v", question)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("question:q1") {
		t.Fatalf("expected redis cache key to be set")
	}

	// Second call should hit cache, loader not incremented.
	_, _ = repo.GetQuestion(context.Background(), "q1")
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestQuestionRepositoryRefillsAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(map[string]domain.Question{
			"q1": sampleQuestion(),
		}),
	}
	repo := NewQuestionRepository(newClient(mr), loader, time.Minute)

	if _, err := repo.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := repo.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question after expiry: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected refill after expiry, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestion(ctx, questionID)
}

func sampleQuestion() domain.Question {
	return domain.Question{
		ID:     "q1",
		Prompt: "What is the capital of France?",
		Options: []domain.Option{
			{ID: "o1", Text: "Lyon", Correct: false},
			{ID: "o2", Text: "Paris", Correct: true},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

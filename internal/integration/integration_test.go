package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/app"
	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
	"github.com/rexedge/timed-trivia-challenge-sub000/internal/game"
	pginfra "github.com/rexedge/timed-trivia-challenge-sub000/internal/infra/postgres"
	pgmigrations "github.com/rexedge/timed-trivia-challenge-sub000/internal/infra/postgres/migrations"
	infraredis "github.com/rexedge/timed-trivia-challenge-sub000/internal/infra/redis"
)

func TestSubmitAnswerEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestion(t, ctx, pgURL, sampleQuestion())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	store := pginfra.NewStore(pool)
	questions := infraredis.NewQuestionRepository(redisClient, pginfra.NewQuestionLoader(pool), 5*time.Minute)
	service := app.NewGameService(store, store, questions)

	start := time.Now().UTC().Truncate(time.Second)
	session, slots, err := service.CreateSession(ctx, game.ScheduleParams{
		StartTime:    start,
		AnswerTime:   30 * time.Second,
		ResultTime:   5 * time.Second,
		IntervalTime: 2 * time.Second,
		Category:     "geography",
	}, []string{"q1"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if err := service.ActivateSession(ctx, session.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	now := start.Add(5 * time.Second)
	result, err := service.Submit(ctx, "u2", session.ID, "q1", "Paris", now)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct || result.Score <= 10 {
		t.Fatalf("expected fast correct answer, got %+v", result)
	}
	if _, err := service.Submit(ctx, "u1", session.ID, "q1", "Lyon", start.Add(10*time.Second)); err != nil {
		t.Fatalf("submit incorrect: %v", err)
	}

	// Second write for the same (user, session, question) loses the race
	// against the unique constraint.
	if _, err := service.Submit(ctx, "u2", session.ID, "q1", "Lyon", start.Add(6*time.Second)); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	lb, err := service.Leaderboard(ctx, session.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].UserID != "u2" || lb.Entries[0].Rank != 1 {
		t.Fatalf("expected u2 leading, got %+v", lb.Entries)
	}
	if lb.Entries[1].UserID != "u1" || lb.Entries[1].TotalScore != 0 {
		t.Fatalf("expected u1 with zero score, got %+v", lb.Entries[1])
	}

	historical, err := service.HistoricalLeaderboard(ctx, domain.LeaderboardFilter{Category: "geography"})
	if err != nil {
		t.Fatalf("historical leaderboard: %v", err)
	}
	if len(historical.Entries) != 2 {
		t.Fatalf("expected 2 historical entries, got %+v", historical.Entries)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestion(t *testing.T, ctx context.Context, dsn string, question domain.Question) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(question)
	if err != nil {
		t.Fatalf("marshal question: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO questions (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, question.ID, string(data)); err != nil {
		t.Fatalf("insert question: %v", err)
	}
}

func sampleQuestion() domain.Question {
	return domain.Question{
		ID:     "q1",
		Prompt: "What is the capital of France?",
		Options: []domain.Option{
			{ID: "o1", Text: "Lyon", Correct: false},
			{ID: "o2", Text: "Paris", Correct: true},
			{ID: "o3", Text: "Marseille", Correct: false},
		},
		Category: "geography",
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}

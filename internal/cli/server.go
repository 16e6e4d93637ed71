package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rexedge/timed-trivia-challenge-sub000/internal/app"
	"github.com/rexedge/timed-trivia-challenge-sub000/internal/config"
	"github.com/rexedge/timed-trivia-challenge-sub000/internal/domain"
	"github.com/rexedge/timed-trivia-challenge-sub000/internal/infra/memory"
	pginfra "github.com/rexedge/timed-trivia-challenge-sub000/internal/infra/postgres"
	redisinfra "github.com/rexedge/timed-trivia-challenge-sub000/internal/infra/redis"
	transport "github.com/rexedge/timed-trivia-challenge-sub000/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "trivia").Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pginfra.NewQuestionLoader(pool)
	}

	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	var questionRepo app.QuestionRepository
	if redisClient != nil {
		questionRepo = redisinfra.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questionRepo = memory.NewQuestionRepository(loader, questionTTL)
	}

	memStore := memory.NewStore()
	var sessions app.SessionStore = memStore
	var answers app.AnswerStore = memStore
	if pool != nil {
		pgStore := pginfra.NewStore(pool)
		sessions = pgStore
		answers = pgStore
	}

	var notifier app.Notifier
	var subscriber transport.LeaderboardSubscriber
	if redisClient != nil {
		broadcaster := redisinfra.NewBroadcaster(redisClient, log)
		notifier = broadcaster
		subscriber = broadcaster
	} else {
		broadcaster := memory.NewBroadcaster()
		notifier = broadcaster
		subscriber = broadcaster
	}

	clock := clockwork.NewRealClock()
	service := app.NewGameService(sessions, answers, questionRepo,
		app.WithClock(clock), app.WithNotifier(notifier))

	defaults := transport.GameDefaults{
		AnswerTime:   config.Duration(cfg.Game.AnswerTime, 30*time.Second),
		ResultTime:   config.Duration(cfg.Game.ResultTime, 5*time.Second),
		IntervalTime: config.Duration(cfg.Game.IntervalTime, 2*time.Second),
	}

	handler := transport.NewHandler(service, defaults, clock, log)
	wsHandler := transport.NewWSHandler(service, subscriber, clock, log)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting trivia service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides minimal demo content; production deployments load
// questions from Postgres.
func sampleQuestions() map[string]domain.Question {
	return map[string]domain.Question{
		"q-capitals-1": {
			ID:     "q-capitals-1",
			Prompt: "What is the capital of France?",
			Options: []domain.Option{
				{ID: "o1", Text: "Lyon", Correct: false},
				{ID: "o2", Text: "Paris", Correct: true},
				{ID: "o3", Text: "Marseille", Correct: false},
			},
			Category:   "geography",
			Difficulty: "easy",
		},
		"q-math-1": {
			ID:     "q-math-1",
			Prompt: "What is 7 x 8?",
			Options: []domain.Option{
				{ID: "o1", Text: "54", Correct: false},
				{ID: "o2", Text: "56", Correct: true},
				{ID: "o3", Text: "63", Correct: false},
			},
			Category:   "math",
			Difficulty: "easy",
		},
	}
}

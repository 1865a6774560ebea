package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	psychobackend "github.com/GrSkiy/psycho-backend"
	"github.com/GrSkiy/psycho-backend/internal/config"
	"github.com/GrSkiy/psycho-backend/internal/repository"
	"github.com/GrSkiy/psycho-backend/internal/service/ai"
	"github.com/GrSkiy/psycho-backend/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded, using system environment", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.DB.URL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	migrationsFS, err := fs.Sub(psychobackend.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DB.URL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	aiService, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		slog.Error("failed to initialize AI service", "error", err)
		os.Exit(1)
	}

	analyzer := worker.NewAnalyzer(
		repository.NewChatRepository(pool),
		repository.NewDiaryRepository(pool),
		aiService,
		cfg.Chat.AnalysisMessageLimit,
		slog.Default(),
	)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Queues: map[string]int{
				worker.QueueAnalysis: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TypeAnalyzeChat, analyzer.HandleAnalyzeChat)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down worker")
		srv.Shutdown()
	}()

	slog.Info("analysis worker started",
		"queue", worker.QueueAnalysis, "concurrency", cfg.Queue.Concurrency)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
}

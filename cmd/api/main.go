package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	psychobackend "github.com/GrSkiy/psycho-backend"
	"github.com/GrSkiy/psycho-backend/internal/auth"
	"github.com/GrSkiy/psycho-backend/internal/config"
	"github.com/GrSkiy/psycho-backend/internal/handler"
	"github.com/GrSkiy/psycho-backend/internal/model/persona"
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

	dispatcher := worker.NewDispatcher(asynq.RedisClientOpt{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	defer dispatcher.Close()

	chatRepo := repository.NewChatRepository(pool)

	router := handler.NewRouter(handler.Deps{
		Users:      repository.NewUserRepository(pool),
		Store:      chatRepo,
		Completer:  aiService,
		Dispatcher: dispatcher,
		Entries:    repository.NewDiaryRepository(pool),
		Identity:   auth.FromHeader("X-User-ID"),
		Persona:    persona.Default(),
		ChatCfg:    cfg.Chat,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("api server listening", "addr", srv.Addr)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

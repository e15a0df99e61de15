package application

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-backend/internal/config"
	"github.com/rocketscienceinc/tictactoe-backend/internal/repository"
	"github.com/rocketscienceinc/tictactoe-backend/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-backend/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-backend/transport/rest"
	"github.com/rocketscienceinc/tictactoe-backend/transport/websocket"
)

// RunApp - runs the application until SIGINT or SIGTERM, or until a server fails.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gameRepo, checks, closeStore, err := openStore(ctx, log, conf)
	if err != nil {
		return err
	}
	defer closeStore()

	gameManager := usecase.NewGameManager(logger, gameRepo, conf.Game)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if err := rest.New(logger, gameManager, checks...).Start(ctx, conf.HTTPPort); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if err := websocket.New(logger, gameManager).Start(ctx, conf.SocketPort); err != nil {
			return fmt.Errorf("WebSocket server error: %w", err)
		}

		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

// openStore connects the configured game store and returns its health checks and its closer.
func openStore(ctx context.Context, log *slog.Logger, conf *config.Config) (repository.GameRepository, []rest.HealthCheck, func(), error) {
	if conf.Store == config.StoreMemory {
		log.Warn("using in-memory game store, games are lost on restart")

		return repository.NewMemoryGameRepository(), nil, func() {}, nil
	}

	redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	closeStore := func() {
		if err := redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}

	check := func(ctx context.Context) error {
		return redisStorage.Connection.Ping(ctx).Err()
	}

	return repository.NewGameRepository(redisStorage.Connection), []rest.HealthCheck{check}, closeStore, nil
}

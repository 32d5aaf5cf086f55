package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactoe-relay/internal/config"
	"github.com/rocketscienceinc/tictactoe-relay/internal/liveness"
	"github.com/rocketscienceinc/tictactoe-relay/internal/registry"
	"github.com/rocketscienceinc/tictactoe-relay/internal/repository"
	"github.com/rocketscienceinc/tictactoe-relay/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-relay/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-relay/pkg/handlers"
	"github.com/rocketscienceinc/tictactoe-relay/transport/rest"
	"github.com/rocketscienceinc/tictactoe-relay/transport/websocket"
)

const shutdownTimeout = 10 * time.Second

// RunApp - runs the application until ctx is cancelled or the listener fails.
func RunApp(ctx context.Context, logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	gameStore := repository.NewGameStore(redisStorage)
	if conf.Redis.FlushOnStart {
		if err = gameStore.Flush(ctx); err != nil {
			return fmt.Errorf("could not flush redis storage: %w", err)
		}

		log.Info("redis storage flushed")
	}

	connections := registry.New()
	monitor := liveness.NewMonitor(logger, connections, conf.Heartbeat.Interval)
	defer monitor.Stop()

	gameManager := usecase.NewGameManager(logger, gameStore, connections, monitor, conf.Redis.OpTimeout)
	wsServer := websocket.New(ctx, logger, gameManager, conf.Socket)

	router := rest.NewRouter(logger, wsServer, handlers.HealthHandler(logger, redisStorage))
	srv := rest.NewServer(conf.HTTPPort, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)

		if httpErr := srv.ListenAndServe(); httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", httpErr)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("Application context canceled, shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("HTTP server shutdown: %w", shutdownErr)
		}

		// hijacked connections are not closed by Shutdown
		connections.ForEach(connections.Terminate)

		if waitErr := wsServer.Wait(shutdownCtx); waitErr != nil {
			return fmt.Errorf("waiting for connections: %w", waitErr)
		}

		return nil
	})

	return group.Wait()
}

package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/triviashow/backend/internal/broadcast"
	"github.com/triviashow/backend/internal/config"
	"github.com/triviashow/backend/internal/game"
	"github.com/triviashow/backend/internal/history"
	"github.com/triviashow/backend/internal/host"
	"github.com/triviashow/backend/internal/leaderboard"
	"github.com/triviashow/backend/internal/logging"
	"github.com/triviashow/backend/internal/question"
	"github.com/triviashow/backend/internal/server"
	"github.com/triviashow/backend/pkg/http/ws"
)

// fanoutArchiver delivers a finished game to every configured sink.
type fanoutArchiver []game.Archiver

func (f fanoutArchiver) RecordGame(ctx context.Context, rec game.GameRecord) error {
	var firstErr error
	for _, a := range f {
		if err := a.RecordGame(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Application aggregates shared infrastructure (Redis, optional Postgres,
// HTTP server) and the gameplay services.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	fabric    *broadcast.Fabric
	reaper    *game.ReaperWorker
	bgCancels []context.CancelFunc
}

// New bootstraps config, logger, Redis, the optional history database and
// the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	// The history archive is optional: no PG_HOST, no archiving.
	var (
		pool    *pgxpool.Pool
		archive *history.Archive
	)
	if cfg.Postgres.Host != "" {
		connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
			cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

		var err error
		pool, err = pgxpool.New(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		archive = history.New(pool, logger)
		logger.Info().Msg("game history archive enabled")
	} else {
		logger.Warn().Msg("PG_HOST not set; game history archive disabled")
	}

	store := game.NewStore(redisClient, cfg.Game.StoreTimeout, logger)
	registry := game.NewRegistry(store, cfg.Game.DefaultInstanceID, cfg.Game.RetentionWindow, logger)
	scheduler := game.NewScheduler(logger)

	wsHub := ws.NewHub(logger)
	fabric := broadcast.New(redisClient, wsHub, cfg.Game.BroadcastChannel, logger)

	generator := question.NewGenerator(question.Config{
		GeneratorURL: cfg.Generator.URL,
		GeneratorKey: cfg.Generator.APIKey,
		Timeout:      cfg.Generator.HTTPTimeout,
		MaxRetries:   cfg.Generator.MaxRetries,
	}, logger)

	quipper := host.New(host.Config{
		ServiceURL: cfg.Generator.URL,
		APIKey:     cfg.Generator.APIKey,
		Timeout:    cfg.Generator.HTTPTimeout,
	}, logger)

	standings := leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{})

	// Finished games feed both the all-time standings and, when configured,
	// the Postgres archive.
	archivers := fanoutArchiver{standings}
	if archive != nil {
		archivers = append(archivers, archive)
	}

	gameSvc := game.NewService(
		registry,
		scheduler,
		generator,
		quipper,
		fabric,
		archivers,
		game.ServiceOptions{
			AdvanceDelay:  cfg.Game.AdvanceDelay,
			GameOverDelay: cfg.Game.GameOverDelay,
		},
		logger,
	)

	wsHandler := game.NewHandler(gameSvc, wsHub, logger)
	gameHandlers := game.NewHTTPHandlers(gameSvc, quipper, wsHub, logger)
	historyHandlers := history.NewHTTPHandlers(archive, logger)
	standingsHandler := leaderboard.NewHTTPHandler(standings, logger)
	reaper := game.NewReaperWorker(registry, cfg.Game.ReaperInterval, logger)

	apiServer := server.NewHTTPServer(cfg, logger, redisClient, gameHandlers, historyHandlers, standingsHandler, wsHandler.HandleWebSocket)

	return &Application{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		redis:     redisClient,
		http:      apiServer,
		fabric:    fabric,
		reaper:    reaper,
		bgCancels: make([]context.CancelFunc, 0, 2),
	}, nil
}

// Run starts the HTTP server and background workers and waits for
// termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancel)
	go func() {
		if err := a.fabric.Run(bgCtx); err != nil && err != context.Canceled {
			a.logger.Warn().Err(err).Msg("broadcast fabric stopped")
		}
	}()

	bgCtx, cancel = context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancel)
	go func() {
		if err := a.reaper.Run(bgCtx); err != nil && err != context.Canceled {
			a.logger.Warn().Err(err).Msg("instance reaper stopped")
		}
	}()
}

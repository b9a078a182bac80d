package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/internal/api"
	"github.com/Hoangnph/stock-tracking-data/internal/cache"
	"github.com/Hoangnph/stock-tracking-data/internal/calendar"
	"github.com/Hoangnph/stock-tracking-data/internal/database"
	"github.com/Hoangnph/stock-tracking-data/internal/messaging"
	"github.com/Hoangnph/stock-tracking-data/internal/services"
	"github.com/Hoangnph/stock-tracking-data/internal/source"
	syncer "github.com/Hoangnph/stock-tracking-data/internal/sync"
	"github.com/Hoangnph/stock-tracking-data/internal/universe"
	"github.com/Hoangnph/stock-tracking-data/pkg/config"
)

// App wires the sync engine, the background updater and the status API
// together for the long-running background mode. Redis and NATS are
// optional: a connection failure logs a warning and the app runs without
// them.
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Core components
	mysqlDB    *database.MySQLClient
	redisCache *cache.RedisClient
	natsClient *messaging.NATSClient
	client     *source.Client
	engine     *syncer.Engine
	universe   *universe.Loader

	// Services
	updater   *services.Updater
	apiServer *api.Server
}

// New creates a new application instance.
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize initializes all application components.
func (a *App) Initialize() error {
	if err := a.initializeDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	a.initializeCache()
	a.initializeMessaging()

	if err := a.initializeSync(); err != nil {
		return fmt.Errorf("failed to initialize sync engine: %w", err)
	}

	a.initializeAPIServer()

	return nil
}

// Start starts the background updater and the status API server.
func (a *App) Start() error {
	if err := a.updater.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start updater: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the application. An in-flight sync pass runs to a
// terminal state before connections close.
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	a.cancel()

	if err := a.updater.Stop(); err != nil {
		a.logger.WithError(err).Warn("Failed to stop updater")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.apiServer.Stop(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Failed to stop API server")
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		a.logger.Warn("Timed out waiting for goroutines to finish")
	}

	return a.closeConnections()
}

// GetConfig returns the application configuration.
func (a *App) GetConfig() *config.Config {
	return a.cfg
}

// GetLogger returns the application logger.
func (a *App) GetLogger() *logrus.Logger {
	return a.logger
}

func (a *App) initializeDatabase() error {
	mysqlDB, err := database.NewMySQLClient(&a.cfg.MySQL, a.logger)
	if err != nil {
		return err
	}
	a.mysqlDB = mysqlDB

	return a.mysqlDB.Migrate(a.ctx)
}

func (a *App) initializeCache() {
	redisCache, err := cache.NewRedisClient(&a.cfg.Redis, a.logger)
	if err != nil {
		a.logger.WithError(err).Warn("Redis unavailable, running without cache")
		return
	}
	a.redisCache = redisCache
}

func (a *App) initializeMessaging() {
	if !a.cfg.NATS.Enabled {
		return
	}
	natsClient, err := messaging.NewNATSClient(&a.cfg.NATS, a.logger)
	if err != nil {
		a.logger.WithError(err).Warn("NATS unavailable, running without events")
		return
	}
	a.natsClient = natsClient
}

func (a *App) initializeSync() error {
	a.client = source.NewClient(&a.cfg.Source, a.logger)

	cal := calendar.New(a.cfg.Sync.Holidays)
	fetcher := source.NewFetcher(a.client, &a.cfg.Sync, a.logger)

	var events syncer.Events
	if a.natsClient != nil {
		events = a.natsClient
	}
	a.engine = syncer.NewEngine(fetcher, a.mysqlDB, events, cal, &a.cfg.Sync, a.logger)

	a.universe = universe.NewLoader(a.client, a.mysqlDB, a.redisCache, &a.cfg.Source, a.cfg.Sync.UniverseCacheTTL, a.logger)
	a.updater = services.NewUpdater(a.universe, a.engine, a.redisCache, &a.cfg.Sync, a.logger)

	return nil
}

func (a *App) initializeAPIServer() {
	a.apiServer = api.NewServer(a.cfg, a.logger, a.mysqlDB, a.redisCache, a.natsClient, a.updater)
}

func (a *App) closeConnections() error {
	if a.natsClient != nil {
		a.natsClient.Close()
	}
	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close Redis connection")
		}
	}
	if a.mysqlDB != nil {
		if err := a.mysqlDB.Close(); err != nil {
			return fmt.Errorf("failed to close MySQL connection: %w", err)
		}
	}
	return nil
}

package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/internal/cache"
	syncer "github.com/Hoangnph/stock-tracking-data/internal/sync"
	"github.com/Hoangnph/stock-tracking-data/internal/universe"
	"github.com/Hoangnph/stock-tracking-data/pkg/config"
	"github.com/Hoangnph/stock-tracking-data/pkg/models"
)

// Updater runs as a background service that periodically refreshes the
// symbol universe and performs an incremental sync pass. Each pass runs
// under the configured run timeout so a stuck pass cannot block the next.
type Updater struct {
	universe *universe.Loader
	engine   *syncer.Engine
	cache    *cache.RedisClient
	cfg      *config.SyncConfig
	logger   *logrus.Entry

	// Control
	running bool
	done    chan struct{}
	wg      sync.WaitGroup

	mu        sync.RWMutex
	lastStats *models.RunStats
}

// NewUpdater creates a new background updater service.
func NewUpdater(
	loader *universe.Loader,
	engine *syncer.Engine,
	rc *cache.RedisClient,
	cfg *config.SyncConfig,
	logger *logrus.Logger,
) *Updater {
	return &Updater{
		universe: loader,
		engine:   engine,
		cache:    rc,
		cfg:      cfg,
		logger:   logger.WithField("component", "updater"),
		done:     make(chan struct{}),
	}
}

// Start starts the background update loop.
func (u *Updater) Start(ctx context.Context) error {
	if u.running {
		return nil
	}

	u.running = true
	u.logger.WithField("interval", u.cfg.UpdateInterval).Info("Starting background updater")

	u.wg.Add(1)
	go u.updateLoop(ctx)

	return nil
}

// Stop stops the background update loop and waits for an in-flight pass to
// reach a terminal state.
func (u *Updater) Stop() error {
	if !u.running {
		return nil
	}

	u.logger.Info("Stopping background updater")
	close(u.done)
	u.wg.Wait()
	u.running = false

	return nil
}

// LastStats returns the summary of the most recent completed pass, or nil
// when no pass has completed yet.
func (u *Updater) LastStats() *models.RunStats {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.lastStats
}

func (u *Updater) updateLoop(ctx context.Context) {
	defer u.wg.Done()

	// Initial pass on startup
	u.performPass(ctx)

	ticker := time.NewTicker(u.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-u.done:
			return
		case <-ticker.C:
			u.performPass(ctx)
		}
	}
}

func (u *Updater) performPass(ctx context.Context) {
	passCtx := ctx
	if u.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, u.cfg.RunTimeout)
		defer cancel()
	}

	symbols, err := u.universe.Refresh(passCtx)
	if err != nil {
		u.logger.WithError(err).Error("Universe refresh failed, using stored universe")
		symbols, err = u.universe.Symbols(passCtx)
		if err != nil {
			u.logger.WithError(err).Error("No symbol universe available, skipping pass")
			return
		}
	}

	stats := u.engine.Run(passCtx, symbols)

	u.mu.Lock()
	u.lastStats = stats
	u.mu.Unlock()

	if u.cache != nil {
		if err := u.cache.SetLastSummary(ctx, stats); err != nil {
			u.logger.WithError(err).Warn("Failed to cache run summary")
		}
	}
}

// ForcePass triggers an immediate sync pass.
func (u *Updater) ForcePass(ctx context.Context) *models.RunStats {
	u.logger.Info("Forced sync pass requested")
	u.performPass(ctx)
	return u.LastStats()
}

package universe

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/internal/cache"
	"github.com/Hoangnph/stock-tracking-data/internal/database"
	"github.com/Hoangnph/stock-tracking-data/internal/source"
	"github.com/Hoangnph/stock-tracking-data/pkg/config"
	"github.com/Hoangnph/stock-tracking-data/pkg/models"
)

// Loader maintains the tracked symbol universe: the constituents of the
// configured index group plus the benchmark index itself. Constituents that
// drop out of the index are deactivated, never deleted, so their history
// stays queryable.
type Loader struct {
	client   *source.Client
	db       *database.MySQLClient
	cache    *cache.RedisClient
	cfg      *config.SourceConfig
	cacheTTL time.Duration
	logger   *logrus.Entry
}

// NewLoader creates a universe loader. The cache client may be nil; the
// database remains the source of truth either way.
func NewLoader(client *source.Client, db *database.MySQLClient, rc *cache.RedisClient, cfg *config.SourceConfig, cacheTTL time.Duration, logger *logrus.Logger) *Loader {
	return &Loader{
		client:   client,
		db:       db,
		cache:    rc,
		cfg:      cfg,
		cacheTTL: cacheTTL,
		logger:   logger.WithField("component", "universe"),
	}
}

// Refresh fetches the current index constituents, upserts them, and
// deactivates symbols no longer in the group. It returns the active symbol
// list ordered alphabetically.
func (l *Loader) Refresh(ctx context.Context) ([]string, error) {
	components, err := l.client.FetchGroup(ctx, l.cfg.IndexGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group %s: %w", l.cfg.IndexGroup, err)
	}
	if len(components) == 0 {
		return nil, fmt.Errorf("group %s returned no constituents", l.cfg.IndexGroup)
	}

	infos := make([]*models.SymbolInfo, 0, len(components)+1)
	for i := range components {
		c := &components[i]
		if c.StockSymbol == "" {
			l.logger.Warn("Skipping constituent with empty symbol")
			continue
		}
		infos = append(infos, &models.SymbolInfo{
			Symbol:        c.StockSymbol,
			CompanyName:   c.CompanyNameVi,
			CompanyNameEn: c.CompanyNameEn,
			Sector:        c.Sector,
			Exchange:      c.Exchange,
			ISIN:          c.ISIN,
			BoardID:       c.BoardID,
			MarketCap:     c.MarketCap,
			IndexWeight:   c.Weight,
			IsActive:      true,
		})
	}

	// The benchmark index is synced like any other symbol but is never a
	// group constituent.
	if l.cfg.BenchmarkIndex != "" {
		infos = append(infos, &models.SymbolInfo{
			Symbol:      l.cfg.BenchmarkIndex,
			CompanyName: l.cfg.BenchmarkIndex,
			IsActive:    true,
		})
	}

	deactivated, err := l.db.ReplaceUniverse(ctx, infos)
	if err != nil {
		return nil, fmt.Errorf("failed to replace universe: %w", err)
	}

	active := make([]string, 0, len(infos))
	for _, info := range infos {
		active = append(active, info.Symbol)
	}

	sort.Strings(active)
	l.cacheUniverse(ctx, active)

	l.logger.WithFields(logrus.Fields{
		"group":       l.cfg.IndexGroup,
		"active":      len(active),
		"deactivated": deactivated,
	}).Info("Universe refreshed")

	return active, nil
}

// Symbols returns the active universe, preferring the cache and falling
// back to the database. A database hit repopulates the cache.
func (l *Loader) Symbols(ctx context.Context) ([]string, error) {
	if l.cache != nil {
		cached, err := l.cache.GetUniverse(ctx)
		if err != nil {
			l.logger.WithError(err).Warn("Universe cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	infos, err := l.db.GetActiveSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active symbols: %w", err)
	}

	symbols := make([]string, 0, len(infos))
	for _, info := range infos {
		symbols = append(symbols, info.Symbol)
	}
	l.cacheUniverse(ctx, symbols)
	return symbols, nil
}

func (l *Loader) cacheUniverse(ctx context.Context, symbols []string) {
	if l.cache == nil || len(symbols) == 0 {
		return
	}
	if err := l.cache.SetUniverse(ctx, symbols, l.cacheTTL); err != nil {
		l.logger.WithError(err).Warn("Universe cache write failed")
	}
}

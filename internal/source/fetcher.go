package source

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/pkg/config"
)

// DataSource is the pull side of the sync engine: paginated row-oriented
// records plus the parallel-array chart series. Implementations must be safe
// for concurrent use across symbol workers.
type DataSource interface {
	FetchPage(ctx context.Context, symbol string, start, end time.Time, page, pageSize int) (*Batch, error)
	FetchSeries(ctx context.Context, symbol string, start, end time.Time) (*ChartSeries, error)
}

// Fetcher wraps a DataSource with page iteration, retry with exponential
// backoff, a fixed inter-page delay, and a hard page-count ceiling against
// runaway pagination from a misbehaving source.
type Fetcher struct {
	ds         DataSource
	pageSize   int
	maxPages   int
	maxRetries int
	retryDelay time.Duration
	rateDelay  time.Duration
	logger     *logrus.Entry
}

// NewFetcher creates a paginated fetcher over the data source. MaxRetries
// counts attempts, so it is clamped to at least one; zero would skip the
// request entirely.
func NewFetcher(ds DataSource, cfg *config.SyncConfig, logger *logrus.Logger) *Fetcher {
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	return &Fetcher{
		ds:         ds,
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		maxRetries: retries,
		retryDelay: cfg.RetryDelay,
		rateDelay:  cfg.RateLimitDelay,
		logger:     logger.WithField("component", "fetcher"),
	}
}

// FetchRows pulls every row-oriented record for the symbol in the range.
// Continuation rule: request the next page while the cumulative row count is
// below the source-reported total, the current page was non-empty, and the
// page ceiling has not been hit. Rows outside the range are kept; date
// filtering belongs downstream because the source's range filter is
// advisory.
//
// A page that exhausts its retries aborts the whole fetch; partial data is
// never returned silently.
func (f *Fetcher) FetchRows(ctx context.Context, symbol string, start, end time.Time) ([]Row, error) {
	var rows []Row

	page := 1
	total := -1
	for page <= f.maxPages {
		var batch *Batch
		err := f.withRetry(ctx, func() error {
			var ferr error
			batch, ferr = f.ds.FetchPage(ctx, symbol, start, end, page, f.pageSize)
			return ferr
		})
		if err != nil {
			return nil, err
		}

		rows = append(rows, batch.Rows...)
		total = batch.Total

		f.logger.WithFields(logrus.Fields{
			"symbol":  symbol,
			"page":    page,
			"rows":    len(batch.Rows),
			"fetched": len(rows),
			"total":   total,
		}).Debug("Fetched page")

		if len(batch.Rows) == 0 {
			break
		}
		if total >= 0 && len(rows) >= total {
			break
		}

		page++
		if page <= f.maxPages {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.rateDelay):
			}
		}
	}

	if page > f.maxPages {
		f.logger.WithFields(logrus.Fields{
			"symbol":   symbol,
			"maxPages": f.maxPages,
			"fetched":  len(rows),
		}).Warn("Page ceiling reached, stopping pagination")
	}

	return rows, nil
}

// FetchSeries pulls the chart-history series for the symbol with the same
// retry policy as page fetches.
func (f *Fetcher) FetchSeries(ctx context.Context, symbol string, start, end time.Time) (*ChartSeries, error) {
	var series *ChartSeries
	err := f.withRetry(ctx, func() error {
		var ferr error
		series, ferr = f.ds.FetchSeries(ctx, symbol, start, end)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

// withRetry runs fn up to maxRetries times with exponential backoff.
// Context cancellation aborts immediately and is never retried.
func (f *Fetcher) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := f.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		f.logger.WithError(err).WithField("attempt", attempt+1).Warn("Request failed, retrying")
	}
	return err
}

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/pkg/config"
)

// Client calls the SSI iboard quote API. It is safe for concurrent use;
// the underlying http.Client pools connections.
type Client struct {
	client *http.Client
	cfg    *config.SourceConfig
	logger *logrus.Entry
}

// NewClient creates a new SSI API client.
func NewClient(cfg *config.SourceConfig, logger *logrus.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		cfg:    cfg,
		logger: logger.WithField("component", "ssi-client"),
	}
}

// FetchPage fetches one page of row-oriented daily statistics for a symbol.
// Dates are sent in the endpoint's dd/MM/yyyy format; the reported paging
// total drives the caller's continuation decision.
func (c *Client) FetchPage(ctx context.Context, symbol string, start, end time.Time, page, pageSize int) (*Batch, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("fromDate", start.Format("02/01/2006"))
	params.Set("toDate", end.Format("02/01/2006"))

	var resp struct {
		Data   []Row `json:"data"`
		Paging struct {
			Total    int `json:"total"`
			Page     int `json:"page"`
			PageSize int `json:"pageSize"`
		} `json:"paging"`
	}

	if err := c.getJSON(ctx, c.cfg.StockInfoURL, params, &resp); err != nil {
		return nil, fmt.Errorf("stock-info page %d for %s: %w", page, symbol, err)
	}

	pgSize := resp.Paging.PageSize
	if pgSize == 0 {
		pgSize = len(resp.Data)
	}

	c.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"page":   page,
		"rows":   len(resp.Data),
		"total":  resp.Paging.Total,
	}).Debug("Fetched stock-info page")

	return &Batch{
		Rows:     resp.Data,
		Total:    resp.Paging.Total,
		Page:     page,
		PageSize: pgSize,
	}, nil
}

// FetchSeries fetches the daily OHLCV chart history for a symbol as
// parallel arrays.
func (c *Client) FetchSeries(ctx context.Context, symbol string, start, end time.Time) (*ChartSeries, error) {
	params := url.Values{}
	params.Set("resolution", "1d")
	params.Set("symbol", symbol)
	params.Set("from", strconv.FormatInt(start.Unix(), 10))
	params.Set("to", strconv.FormatInt(end.AddDate(0, 0, 1).Unix()-1, 10))

	var resp struct {
		Data struct {
			Status     string    `json:"s"`
			Timestamps []int64   `json:"t"`
			Opens      []float64 `json:"o"`
			Highs      []float64 `json:"h"`
			Lows       []float64 `json:"l"`
			Closes     []float64 `json:"c"`
			Volumes    []float64 `json:"v"`
		} `json:"data"`
	}

	if err := c.getJSON(ctx, c.cfg.ChartsURL, params, &resp); err != nil {
		return nil, fmt.Errorf("chart history for %s: %w", symbol, err)
	}

	c.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"points": len(resp.Data.Timestamps),
	}).Debug("Fetched chart history")

	return &ChartSeries{
		Symbol:     symbol,
		Status:     resp.Data.Status,
		Timestamps: resp.Data.Timestamps,
		Opens:      resp.Data.Opens,
		Highs:      resp.Data.Highs,
		Lows:       resp.Data.Lows,
		Closes:     resp.Data.Closes,
		Volumes:    resp.Data.Volumes,
	}, nil
}

// FetchGroup fetches the constituents of an index group (e.g. VN100).
func (c *Client) FetchGroup(ctx context.Context, group string) ([]GroupComponent, error) {
	endpoint := fmt.Sprintf("%s/%s", c.cfg.GroupURL, group)

	var resp struct {
		Data []GroupComponent `json:"data"`
	}

	if err := c.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("group %s: %w", group, err)
	}

	c.logger.WithFields(logrus.Fields{
		"group": group,
		"count": len(resp.Data),
	}).Debug("Fetched index group")

	return resp.Data, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	fullURL := endpoint
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Referer", c.cfg.Referer)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

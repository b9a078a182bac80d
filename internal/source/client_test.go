package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Hoangnph/stock-tracking-data/pkg/config"
)

func testClient(srv *httptest.Server) *Client {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(&config.SourceConfig{
		StockInfoURL:   srv.URL + "/stock-info",
		ChartsURL:      srv.URL + "/charts/history",
		GroupURL:       srv.URL + "/stock/group",
		UserAgent:      "test-agent",
		Referer:        "https://example.test/",
		RequestTimeout: 5 * time.Second,
	}, log)
}

func TestFetchPage_DecodesRowsAndPaging(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		require.Equal(t, "/stock-info", r.URL.Path)
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [
				{"symbol": "ACB", "tradingDate": "02/10/2025", "close": "26.00"},
				{"symbol": "ACB", "tradingDate": "01/10/2025", "close": "25.50"}
			],
			"paging": {"total": 2, "page": 1, "pageSize": 100}
		}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC)

	batch, err := c.FetchPage(context.Background(), "ACB", start, end, 1, 100)
	require.NoError(t, err)
	require.Len(t, batch.Rows, 2)
	require.Equal(t, 2, batch.Total)
	require.Equal(t, "02/10/2025", batch.Rows[0]["tradingDate"])

	// Dates go over the wire in the endpoint's dd/MM/yyyy format.
	require.Contains(t, gotQuery, "fromDate=01%2F10%2F2025")
	require.Contains(t, gotQuery, "toDate=02%2F10%2F2025")
	require.Contains(t, gotQuery, "symbol=ACB")
}

func TestFetchPage_Non200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv)
	_, err := c.FetchPage(context.Background(), "ACB", time.Now(), time.Now(), 1, 100)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=429")
}

func TestFetchSeries_DecodesParallelArrays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/charts/history", r.URL.Path)
		require.Equal(t, "1d", r.URL.Query().Get("resolution"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"s": "ok",
				"t": [1759363200, 1759449600],
				"o": [25.5, 26.0],
				"h": [26.2, 26.4],
				"l": [25.3, 25.9],
				"c": [26.0, 26.3],
				"v": [1000000, 1200000]
			}
		}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	series, err := c.FetchSeries(context.Background(), "ACB",
		time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "ACB", series.Symbol)
	require.Equal(t, "ok", series.Status)
	require.Len(t, series.Timestamps, 2)
	require.Equal(t, 26.3, series.Closes[1])
}

func TestFetchGroup_DecodesConstituents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stock/group/VN100", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [
				{"stockSymbol": "ACB", "companyNameVi": "Ngân hàng TMCP Á Châu", "exchange": "HOSE"},
				{"stockSymbol": "VCB", "companyNameVi": "Ngân hàng TMCP Ngoại thương", "exchange": "HOSE"}
			]
		}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	components, err := c.FetchGroup(context.Background(), "VN100")
	require.NoError(t, err)
	require.Len(t, components, 2)
	require.Equal(t, "ACB", components[0].StockSymbol)
	require.Equal(t, "HOSE", components[1].Exchange)
}

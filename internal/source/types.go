package source

// Row is one row-oriented record from the stock-info endpoint, kept as a
// loose map because the endpoint's field set drifts; the normalizer maps
// known fields and drops unknown ones.
type Row map[string]interface{}

// Batch is one page of row-oriented records plus the source-reported
// pagination metadata. It exists only for the duration of the page loop.
type Batch struct {
	Rows     []Row
	Total    int
	Page     int
	PageSize int
}

// ChartSeries is the parallel-array daily OHLCV payload from the charts
// history endpoint. All arrays must be index-aligned; the normalizer treats
// a length mismatch as a hard error for the whole batch.
type ChartSeries struct {
	Symbol     string
	Status     string
	Timestamps []int64
	Opens      []float64
	Highs      []float64
	Lows       []float64
	Closes     []float64
	Volumes    []float64
}

// GroupComponent is one constituent of an index group (e.g. VN100),
// carrying the symbol identity plus descriptive metadata.
type GroupComponent struct {
	StockSymbol   string   `json:"stockSymbol"`
	CompanyNameVi string   `json:"companyNameVi"`
	CompanyNameEn string   `json:"companyNameEn"`
	Sector        string   `json:"sector"`
	Exchange      string   `json:"exchange"`
	ISIN          string   `json:"isin"`
	BoardID       string   `json:"boardId"`
	MarketCap     *float64 `json:"marketCap"`
	Weight        *float64 `json:"weight"`
}

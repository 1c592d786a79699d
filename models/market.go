package models

type MarketDataInput struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

type MarketDataOutput struct {
	Symbol string        `json:"symbol"`
	Source string        `json:"source"`
	Quote  *QuoteSummary `json:"quote,omitempty"`
	Data   []*MarketData `json:"data"`
	// Indicators holds the latest value of each technical indicator that
	// could be computed from Data.
	Indicators map[string]string `json:"indicators,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

type QuoteSummary struct {
	Name          string `json:"name,omitempty"`
	Exchange      string `json:"exchange,omitempty"`
	Currency      string `json:"currency,omitempty"`
	Price         string `json:"price"`
	ChangePercent string `json:"change_percent"`
}

type MarketData struct {
	Symbol string `json:"symbol"`
	Volume int64  `json:"volume"`
	Date   string `json:"date"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Open   string `json:"open"`
	Close  string `json:"close"`
}

type NewsInput struct {
	Symbol     string `json:"symbol"`
	MaxResults int    `json:"max_results"`
}

type NewsOutput struct {
	Symbol   string         `json:"symbol"`
	Articles []*NewsArticle `json:"articles"`
	Error    string         `json:"error,omitempty"`
}

type NewsArticle struct {
	Title       string `json:"title"`
	Source      string `json:"source,omitempty"`
	URL         string `json:"url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

type CodeExecutionInput struct {
	Code string `json:"code"`
}

type CodeExecutionOutput struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr,omitempty"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

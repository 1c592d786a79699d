package dataflows

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>"AAPL stock" - Google News</title>
<item>
  <title>Apple shares climb after earnings</title>
  <link>https://news.google.com/rss/articles/abc</link>
  <guid>abc</guid>
  <pubDate>Tue, 14 Oct 2025 13:45:00 GMT</pubDate>
  <description>&lt;a href="https://example.com"&gt;Apple shares   climb&lt;/a&gt;&amp;nbsp;&lt;font&gt;Reuters&lt;/font&gt;</description>
  <source url="https://www.reuters.com">Reuters</source>
</item>
<item>
  <title>Second story</title>
  <link>https://news.google.com/rss/articles/def</link>
  <pubDate>Mon, 13 Oct 2025 08:00:00 +0000</pubDate>
  <source url="https://www.cnbc.com"></source>
</item>
</channel></rss>`

var fastRetry = &RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

func TestParseRSS(t *testing.T) {
	articles, err := ParseRSS([]byte(sampleRSS), 0)
	require.NoError(t, err)
	require.Len(t, articles, 2)

	first := articles[0]
	assert.Equal(t, "Apple shares climb after earnings", first.Title)
	assert.Equal(t, "Reuters", first.Source)
	assert.Equal(t, "Apple shares climb Reuters", first.Content)
	assert.Equal(t, 2025, first.PublishedAt.Year())

	assert.Equal(t, "www.cnbc.com", articles[1].Source)
	assert.Empty(t, articles[1].Content)

	limited, err := ParseRSS([]byte(sampleRSS), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = ParseRSS([]byte("<html>"), 0)
	assert.Error(t, err)
}

func TestGoogleNewsSearchRSS(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	client := NewGoogleNewsClient(WithBaseURL(srv.URL), WithRetryConfig(fastRetry))
	articles, err := client.SearchRSS(context.Background(), "AAPL stock", 5)
	require.NoError(t, err)
	assert.Len(t, articles, 2)
	assert.Equal(t, "AAPL stock", gotQuery)

	_, err = client.SearchRSS(context.Background(), " ", 5)
	assert.Error(t, err)
}

func TestGoogleNewsSearchRSSHTTPError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewGoogleNewsClient(WithBaseURL(srv.URL), WithRetryConfig(fastRetry))
	_, err := client.SearchRSS(context.Background(), "AAPL", 5)
	assert.ErrorContains(t, err, "HTTP error 503")
	assert.Equal(t, 2, calls)
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), fastRetry, func() error {
		attempts++
		if attempts < 2 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = WithRetry(ctx, &RetryConfig{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}, func() error {
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSymbols(t *testing.T) {
	assert.NoError(t, ValidateSymbol(" aapl "))
	assert.Error(t, ValidateSymbol(""))
	assert.Error(t, ValidateSymbol("THISISWAYTOOLONG"))
	assert.Equal(t, "AAPL.US", LongportSymbol("aapl"))
	assert.Equal(t, "700.HK", LongportSymbol("700.hk"))
}

func TestNewLongportClientRequiresCredentials(t *testing.T) {
	_, err := NewLongportClient(LongportConfig{AppKey: "k"})
	assert.ErrorIs(t, err, ErrLongportNotConfigured)
}

func flatBars(n int, price float64) []*Bar {
	bars := make([]*Bar, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = &Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   decimal.NewFromFloat(price),
			High:   decimal.NewFromFloat(price + 1),
			Low:    decimal.NewFromFloat(price - 1),
			Close:  decimal.NewFromFloat(price),
			Volume: 1000,
		}
	}
	return bars
}

func TestComputeIndicatorsFlatSeries(t *testing.T) {
	ind := ComputeIndicators(flatBars(60, 100))

	require.NotNil(t, ind.SMA20)
	assert.Equal(t, "100", ind.SMA20.String())
	assert.Equal(t, "100", ind.SMA50.String())
	assert.Equal(t, "100", ind.EMA10.String())
	assert.Equal(t, "100", ind.RSI14.String())
	assert.Equal(t, "0", ind.MACD.String())
	assert.Equal(t, "100", ind.BollUp.String())
	assert.Equal(t, "100", ind.BollLow.String())
	assert.Equal(t, "2", ind.ATR14.String())
	assert.Equal(t, "2025-03-01", ind.LastDate)
}

func TestComputeIndicatorsShortSeries(t *testing.T) {
	ind := ComputeIndicators(flatBars(5, 10))
	assert.Nil(t, ind.SMA20)
	assert.Nil(t, ind.RSI14)
	assert.Nil(t, ind.MACD)
	assert.NotEmpty(t, ind.LastDate)

	assert.Empty(t, ComputeIndicators(nil).LastDate)
}

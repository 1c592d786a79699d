package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dyike/StockAnalyzer/models"
)

func TestMarketDataCacheExpires(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c := NewMarketDataCache(5 * time.Minute)
	c.now = func() time.Time { return now }

	out := &models.MarketDataOutput{Symbol: "AAPL", Source: "yahoo"}
	c.Set("aapl", 30, out)

	got, ok := c.Get("AAPL", 30)
	assert.True(t, ok)
	assert.Same(t, out, got)

	_, ok = c.Get("AAPL", 60)
	assert.False(t, ok)

	now = now.Add(6 * time.Minute)
	_, ok = c.Get("AAPL", 30)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestMarketDataCacheDisabled(t *testing.T) {
	c := NewMarketDataCache(0)
	c.Set("AAPL", 30, &models.MarketDataOutput{})
	_, ok := c.Get("AAPL", 30)
	assert.False(t, ok)

	var nilCache *MarketDataCache
	_, ok = nilCache.Get("AAPL", 30)
	assert.False(t, ok)
}

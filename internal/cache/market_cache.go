package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dyike/StockAnalyzer/models"
)

// MarketDataCache keeps recent market tool results in memory so the
// participants of one conversation, and concurrent jobs on the same ticker,
// do not refetch the same history.
type MarketDataCache struct {
	mu      sync.Mutex
	entries map[string]*CachedData
	ttl     time.Duration
	now     func() time.Time
}

type CachedData struct {
	Data      *models.MarketDataOutput
	Timestamp time.Time
}

func NewMarketDataCache(ttl time.Duration) *MarketDataCache {
	return &MarketDataCache{
		entries: make(map[string]*CachedData),
		ttl:     ttl,
		now:     time.Now,
	}
}

func key(symbol string, count int) string {
	return fmt.Sprintf("%s-%d", strings.ToUpper(symbol), count)
}

func (c *MarketDataCache) Get(symbol string, count int) (*models.MarketDataOutput, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(symbol, count)
	cached, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if c.now().Sub(cached.Timestamp) > c.ttl {
		delete(c.entries, k)
		return nil, false
	}
	return cached.Data, true
}

func (c *MarketDataCache) Set(symbol string, count int, data *models.MarketDataOutput) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(symbol, count)] = &CachedData{Data: data, Timestamp: c.now()}
}

func (c *MarketDataCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

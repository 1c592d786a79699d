package dataflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"
)

var ErrLongportNotConfigured = errors.New("longport API credentials not configured")

type LongportConfig struct {
	AppKey      string
	AppSecret   string
	AccessToken string
}

type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

func NewLongportClient(cfg LongportConfig) (*LongportClient, error) {
	if cfg.AppKey == "" || cfg.AppSecret == "" || cfg.AccessToken == "" {
		return nil, ErrLongportNotConfigured
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.AppKey, cfg.AppSecret, cfg.AccessToken))
	if err != nil {
		return nil, fmt.Errorf("longport config: %w", err)
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, fmt.Errorf("longport quote context: %w", err)
	}
	return &LongportClient{quoteCtx: quoteContext}, nil
}

// GetDailyBars returns the latest count daily candles for a Longport symbol
// such as "AAPL.US" or "700.HK".
func (lpc *LongportClient) GetDailyBars(ctx context.Context, symbol string, count int) ([]*Bar, error) {
	if lpc == nil || lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}
	sticks, err := lpc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(count), quote.AdjustTypeNo)
	if err != nil {
		return nil, fmt.Errorf("longport candlesticks for %s: %w", symbol, err)
	}

	bars := make([]*Bar, 0, len(sticks))
	for _, stick := range sticks {
		bars = append(bars, &Bar{
			Date:   time.Unix(stick.Timestamp, 0).UTC(),
			Open:   deref(stick.Open),
			High:   deref(stick.High),
			Low:    deref(stick.Low),
			Close:  deref(stick.Close),
			Volume: stick.Volume,
		})
	}
	return bars, nil
}

func (lpc *LongportClient) Close() error {
	if lpc == nil || lpc.quoteCtx == nil {
		return nil
	}
	return lpc.quoteCtx.Close()
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// LongportSymbol maps a Yahoo style ticker to the Longport form. Plain
// tickers are assumed to be US listed.
func LongportSymbol(symbol string) string {
	symbol = NormalizeSymbol(symbol)
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + ".US"
}

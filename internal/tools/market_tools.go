package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/shopspring/decimal"

	"github.com/dyike/StockAnalyzer/consts"
	"github.com/dyike/StockAnalyzer/internal/cache"
	"github.com/dyike/StockAnalyzer/models"
	"github.com/dyike/StockAnalyzer/pkg/dataflows"
)

const (
	defaultBarCount = 60
	maxBarCount     = 365
)

type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*dataflows.Quote, error)
	GetDailyBars(ctx context.Context, symbol string, days int) ([]*dataflows.Bar, error)
}

type BarSource interface {
	GetDailyBars(ctx context.Context, symbol string, count int) ([]*dataflows.Bar, error)
}

type MarketSources struct {
	Yahoo QuoteSource
	// Longport is optional; when set it is preferred for daily bars.
	Longport BarSource
	Cache    *cache.MarketDataCache
}

func NewMarketTool(src MarketSources) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: consts.ToolMarketData,
			Desc: "Get the latest quote, daily OHLCV bars and technical indicators (SMA, EMA, RSI, MACD, Bollinger, ATR) for a stock symbol",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {
					Type:     schema.String,
					Desc:     "The stock symbol, e.g. AAPL or 0700.HK",
					Required: true,
				},
				"count": {
					Type:     schema.Integer,
					Desc:     fmt.Sprintf("Number of trading days to retrieve (default: %d, max: %d)", defaultBarCount, maxBarCount),
					Required: false,
				},
			}),
		},
		func(ctx context.Context, input models.MarketDataInput) (*models.MarketDataOutput, error) {
			start := time.Now()
			out := fetchMarketData(ctx, src, input)
			outcome := "ok"
			if len(out.Data) == 0 {
				outcome = "empty"
			}
			observe(consts.ToolMarketData, start, outcome)
			return out, nil
		},
	)
}

func fetchMarketData(ctx context.Context, src MarketSources, input models.MarketDataInput) *models.MarketDataOutput {
	if err := dataflows.ValidateSymbol(input.Symbol); err != nil {
		return &models.MarketDataOutput{Symbol: input.Symbol, Warnings: []string{err.Error()}}
	}
	symbol := dataflows.NormalizeSymbol(input.Symbol)

	count := input.Count
	if count <= 0 {
		count = defaultBarCount
	}
	if count > maxBarCount {
		count = maxBarCount
	}

	if cached, ok := src.Cache.Get(symbol, count); ok {
		return cached
	}

	out := &models.MarketDataOutput{Symbol: symbol}
	var bars []*dataflows.Bar

	if src.Longport != nil {
		lpBars, err := src.Longport.GetDailyBars(ctx, dataflows.LongportSymbol(symbol), count)
		if err != nil {
			hlog.CtxWarnf(ctx, "longport bars for %s failed, falling back to yahoo: %v", symbol, err)
			out.Warnings = append(out.Warnings, "longport: "+err.Error())
		} else if len(lpBars) > 0 {
			bars = lpBars
			out.Source = "longport"
		}
	}

	if src.Yahoo != nil {
		if len(bars) == 0 {
			yBars, err := src.Yahoo.GetDailyBars(ctx, symbol, count)
			if err != nil {
				hlog.CtxWarnf(ctx, "yahoo bars for %s failed: %v", symbol, err)
				out.Warnings = append(out.Warnings, "yahoo history: "+err.Error())
			} else {
				bars = yBars
				out.Source = "yahoo"
			}
		}

		q, err := src.Yahoo.GetQuote(ctx, symbol)
		if err != nil {
			out.Warnings = append(out.Warnings, "yahoo quote: "+err.Error())
		} else {
			out.Quote = &models.QuoteSummary{
				Name:          q.Name,
				Exchange:      q.Exchange,
				Currency:      q.Currency,
				Price:         q.Price.StringFixed(2),
				ChangePercent: q.ChangePercent.StringFixed(2),
			}
		}
	}

	out.Data = make([]*models.MarketData, 0, len(bars))
	for _, b := range bars {
		out.Data = append(out.Data, &models.MarketData{
			Symbol: symbol,
			Date:   b.Date.Format("2006-01-02"),
			Open:   b.Open.StringFixed(2),
			High:   b.High.StringFixed(2),
			Low:    b.Low.StringFixed(2),
			Close:  b.Close.StringFixed(2),
			Volume: b.Volume,
		})
	}
	if len(bars) > 0 {
		out.Indicators = indicatorMap(dataflows.ComputeIndicators(bars))
	}

	if len(out.Data) > 0 && len(out.Warnings) == 0 {
		src.Cache.Set(symbol, count, out)
	}
	return out
}

func indicatorMap(ind *dataflows.Indicators) map[string]string {
	m := make(map[string]string)
	add := func(name string, v *decimal.Decimal) {
		if v != nil {
			m[name] = v.String()
		}
	}
	add("sma_20", ind.SMA20)
	add("sma_50", ind.SMA50)
	add("ema_10", ind.EMA10)
	add("rsi_14", ind.RSI14)
	add("macd", ind.MACD)
	add("macd_signal", ind.MACDSig)
	add("boll_upper", ind.BollUp)
	add("boll_lower", ind.BollLow)
	add("atr_14", ind.ATR14)
	if len(m) == 0 {
		return nil
	}
	m["as_of"] = ind.LastDate
	return m
}

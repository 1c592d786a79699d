package dataflows

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

type YahooFinanceClient struct {
	retry *RetryConfig
}

func NewYahooFinanceClient() *YahooFinanceClient {
	return &YahooFinanceClient{retry: DefaultRetryConfig()}
}

func (yf *YahooFinanceClient) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	var result *Quote
	err := WithRetry(ctx, yf.retry, func() error {
		q, err := quote.Get(symbol)
		if err != nil {
			return fmt.Errorf("get quote for %s: %w", symbol, err)
		}
		if q == nil {
			return fmt.Errorf("no quote for %s", symbol)
		}
		result = &Quote{
			Symbol:        symbol,
			Name:          q.ShortName,
			Exchange:      q.FullExchangeName,
			Currency:      q.CurrencyID,
			Price:         decimal.NewFromFloat(q.RegularMarketPrice),
			ChangePercent: decimal.NewFromFloat(q.RegularMarketChangePercent),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetDailyBars returns up to days trading-day bars ending today, oldest first.
func (yf *YahooFinanceClient) GetDailyBars(ctx context.Context, symbol string, days int) ([]*Bar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	end := time.Now()
	// Calendar days cover weekends and holidays.
	start := end.AddDate(0, 0, -(days*7/5 + 7))

	var result []*Bar
	err := WithRetry(ctx, yf.retry, func() error {
		iter := chart.Get(&chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		})

		result = make([]*Bar, 0, days)
		for iter.Next() {
			bar := iter.Bar()
			result = append(result, &Bar{
				Date:   time.Unix(int64(bar.Timestamp), 0).UTC(),
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("get history for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result) > days {
		result = result[len(result)-days:]
	}
	return result, nil
}

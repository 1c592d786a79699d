package dataflows

import (
	"math"

	"github.com/shopspring/decimal"
)

// Indicators is a snapshot of common technical indicators at the last bar.
// A nil field means there were not enough bars to compute it.
type Indicators struct {
	SMA20    *decimal.Decimal `json:"sma_20,omitempty"`
	SMA50    *decimal.Decimal `json:"sma_50,omitempty"`
	EMA10    *decimal.Decimal `json:"ema_10,omitempty"`
	RSI14    *decimal.Decimal `json:"rsi_14,omitempty"`
	MACD     *decimal.Decimal `json:"macd,omitempty"`
	MACDSig  *decimal.Decimal `json:"macd_signal,omitempty"`
	BollUp   *decimal.Decimal `json:"boll_upper,omitempty"`
	BollLow  *decimal.Decimal `json:"boll_lower,omitempty"`
	ATR14    *decimal.Decimal `json:"atr_14,omitempty"`
	LastDate string           `json:"as_of,omitempty"`
}

// ComputeIndicators expects bars oldest first.
func ComputeIndicators(bars []*Bar) *Indicators {
	ind := &Indicators{}
	if len(bars) == 0 {
		return ind
	}
	ind.LastDate = bars[len(bars)-1].Date.Format("2006-01-02")

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i], _ = b.Close.Float64()
	}

	ind.SMA20 = round(sma(closes, 20))
	ind.SMA50 = round(sma(closes, 50))
	if ema10 := ema(closes, 10); len(ema10) > 0 {
		ind.EMA10 = round(ema10[len(ema10)-1], true)
	}
	ind.RSI14 = round(rsi(closes, 14))

	ema12, ema26 := ema(closes, 12), ema(closes, 26)
	if len(ema26) > 0 {
		// ema12 starts 14 bars earlier than ema26.
		offset := len(ema12) - len(ema26)
		macd := make([]float64, len(ema26))
		for i := range ema26 {
			macd[i] = ema12[i+offset] - ema26[i]
		}
		ind.MACD = round(macd[len(macd)-1], true)
		if sig := ema(macd, 9); len(sig) > 0 {
			ind.MACDSig = round(sig[len(sig)-1], true)
		}
	}

	if mid, ok := sma(closes, 20); ok {
		window := closes[len(closes)-20:]
		var variance float64
		for _, c := range window {
			variance += (c - mid) * (c - mid)
		}
		sd := math.Sqrt(variance / 20)
		ind.BollUp = round(mid+2*sd, true)
		ind.BollLow = round(mid-2*sd, true)
	}

	ind.ATR14 = round(atr(bars, 14))
	return ind
}

func sma(values []float64, period int) (float64, bool) {
	if len(values) < period || period <= 0 {
		return 0, false
	}
	var total float64
	for _, v := range values[len(values)-period:] {
		total += v
	}
	return total / float64(period), true
}

// ema returns the series starting at index period-1, seeded with the SMA.
func ema(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}
	k := 2.0 / float64(period+1)
	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	out := []float64{seed / float64(period)}
	for _, v := range values[period:] {
		prev := out[len(out)-1]
		out = append(out, (v-prev)*k+prev)
	}
	return out
}

// rsi uses Wilder smoothing.
func rsi(closes []float64, period int) (float64, bool) {
	if len(closes) <= period {
		return 0, false
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(period)
	loss /= float64(period)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*float64(period-1) + g) / float64(period)
		loss = (loss*float64(period-1) + l) / float64(period)
	}
	if loss == 0 {
		return 100, true
	}
	rs := gain / loss
	return 100 - 100/(1+rs), true
}

func atr(bars []*Bar, period int) (float64, bool) {
	if len(bars) <= period {
		return 0, false
	}
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		high, _ := bars[i].High.Float64()
		low, _ := bars[i].Low.Float64()
		prevClose, _ := bars[i-1].Close.Float64()
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trs = append(trs, tr)
	}
	var total float64
	for _, tr := range trs[len(trs)-period:] {
		total += tr
	}
	return total / float64(period), true
}

func round(v float64, ok bool) *decimal.Decimal {
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	d := decimal.NewFromFloat(v).Round(4)
	return &d
}

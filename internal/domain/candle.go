package domain

import (
	"strings"
	"time"
)

// Candle represents a single OHLCV candle for a trading pair at a given interval.
type Candle struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// DefaultQuoteAsset is the currency balances and prices are denominated in.
const DefaultQuoteAsset = "USDT"

// DefaultTradingPairs is the scan set used when none is configured.
var DefaultTradingPairs = []string{
	"BTC/USDT", "ETH/USDT", "BNB/USDT", "XRP/USDT", "ADA/USDT",
}

// SupportedIntervals defines the candle intervals the scanner accepts.
var SupportedIntervals = []string{"5m", "15m", "1h", "4h", "1d"}

// ExchangeSymbol converts a pair like "BTC/USDT" to the exchange form "BTCUSDT".
func ExchangeSymbol(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(pair), "/", ""))
}

// BaseAsset returns the left side of a "BASE/QUOTE" pair.
func BaseAsset(pair string) string {
	base, _, _ := strings.Cut(strings.ToUpper(strings.TrimSpace(pair)), "/")
	return base
}

// NormalizePair upper-cases a pair and appends the quote asset when the
// caller passed a bare base ("btc" -> "BTC/USDT").
func NormalizePair(pair, quote string) string {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	if pair == "" {
		return ""
	}
	if quote == "" {
		quote = DefaultQuoteAsset
	}
	if !strings.Contains(pair, "/") {
		return pair + "/" + strings.ToUpper(quote)
	}
	return pair
}

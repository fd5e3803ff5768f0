package domain

import (
	"time"
)

type SignalKind string

const (
	SignalBuy     SignalKind = "buy"
	SignalSell    SignalKind = "sell"
	SignalNeutral SignalKind = "neutral"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// MaxSignalStrength is the number of independent buy conditions the scorer checks.
const MaxSignalStrength = 4

// IndicatorSnapshot holds indicator values for the most recent candle of one symbol.
type IndicatorSnapshot struct {
	Symbol      string    `json:"symbol"`
	Interval    string    `json:"interval"`
	Time        time.Time `json:"time"`
	Price       float64   `json:"price"`
	RSI         float64   `json:"rsi"`
	MACD        float64   `json:"macd"`
	MACDSignal  float64   `json:"macd_signal"`
	BBUpper     float64   `json:"bb_upper"`
	BBMiddle    float64   `json:"bb_middle"`
	BBLower     float64   `json:"bb_lower"`
	SMAShort    float64   `json:"sma_short"`
	SMALong     float64   `json:"sma_long"`
	Volume      float64   `json:"volume"`
	VolumeRatio float64   `json:"volume_ratio"`
}

// BandPosition classifies the price relative to the Bollinger envelope.
type BandPosition string

const (
	BandBelow  BandPosition = "below"
	BandWithin BandPosition = "within"
	BandAbove  BandPosition = "above"
)

func (s IndicatorSnapshot) BandPosition() BandPosition {
	switch {
	case s.Price < s.BBLower:
		return BandBelow
	case s.Price > s.BBUpper:
		return BandAbove
	default:
		return BandWithin
	}
}

// Signal is the scorer's verdict for one snapshot. SellFlag is evaluated
// independently of Kind; a buy signal may carry a raised sell flag.
type Signal struct {
	Kind       SignalKind `json:"kind"`
	Strength   int        `json:"strength"`
	Confidence Confidence `json:"confidence"`
	SellFlag   bool       `json:"sell_flag"`
	Reasons    []string   `json:"reasons,omitempty"`
}

// Actionable reports whether the signal is strong enough for an order.
func (s Signal) Actionable() bool {
	return s.Kind == SignalBuy && s.Confidence == ConfidenceHigh
}

// RationaleUnavailable is returned in place of prose when the AI service
// is disabled, times out or fails.
const RationaleUnavailable = "AI rationale unavailable"

// Analysis bundles everything produced for one symbol on demand.
type Analysis struct {
	Snapshot  IndicatorSnapshot `json:"snapshot"`
	Signal    Signal            `json:"signal"`
	Rationale string            `json:"rationale,omitempty"`
}

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderReceipt is the exchange acknowledgement of a placed market order.
type OrderReceipt struct {
	OrderID  string    `json:"order_id"`
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Quantity float64   `json:"quantity"`
	Status   string    `json:"status"`
}

// TradeRecord is appended for every real or simulated order and never mutated.
type TradeRecord struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Simulated bool      `json:"simulated"`
	OrderID   string    `json:"order_id,omitempty"`
}

type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one line of the operator-facing activity log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// RunState describes the scan loop as seen by operators.
type RunState struct {
	Running     bool       `json:"running"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	Cycles      int        `json:"cycles"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
	AutoExecute bool       `json:"auto_execute"`
	AIEnabled   bool       `json:"ai_enabled"`
	Pairs       []string   `json:"trading_pairs"`
}

// Balance is one asset's holdings on the exchange.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

func (b Balance) Total() float64 {
	return b.Free + b.Locked
}

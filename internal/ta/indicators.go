package ta

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Fixed indicator windows.
const (
	SMAShortPeriod   = 20
	SMALongPeriod    = 50
	RSIPeriod        = 14
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
	BBPeriod         = 20
	BBStdDevs        = 2.0
	VolumePeriod     = 20
)

// MinHistory is the smallest candle count for which every indicator has a
// value on the last candle. It equals the longest lookback.
const MinHistory = SMALongPeriod

// neutralRSI is reported when the series never moved; talib returns 0 there,
// which would read as deeply oversold.
const neutralRSI = 50.0

func last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// LastSMA returns the simple moving average ending at the last value, or NaN
// when there are fewer values than the period.
func LastSMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}
	return last(talib.Sma(values, period))
}

// LastRSI returns Wilder's RSI at the last value, or NaN without period+1 values.
func LastRSI(closes []float64, period int) float64 {
	if period < 2 || len(closes) <= period {
		return math.NaN()
	}
	if isFlat(closes) {
		return neutralRSI
	}
	return last(talib.Rsi(closes, period))
}

// LastMACD returns the MACD line and its signal line at the last value.
func LastMACD(closes []float64, fast, slow, signal int) (float64, float64) {
	if len(closes) < slow+signal-1 {
		return math.NaN(), math.NaN()
	}
	macd, sig, _ := talib.Macd(closes, fast, slow, signal)
	return last(macd), last(sig)
}

// LastBollinger returns upper, middle and lower bands at the last value.
func LastBollinger(closes []float64, period int, stdDevs float64) (float64, float64, float64) {
	if period <= 0 || len(closes) < period {
		return math.NaN(), math.NaN(), math.NaN()
	}
	upper, middle, lower := talib.BBands(closes, period, stdDevs, stdDevs, talib.SMA)
	return last(upper), last(middle), last(lower)
}

// VolumeRatio divides the last volume by the rolling mean over period values,
// the last one included. A zero mean yields 0.
func VolumeRatio(volumes []float64, period int) float64 {
	mean := LastSMA(volumes, period)
	if math.IsNaN(mean) {
		return math.NaN()
	}
	if mean == 0 {
		return 0
	}
	return last(volumes) / mean
}

func isFlat(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

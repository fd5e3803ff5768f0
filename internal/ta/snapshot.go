package ta

import (
	"sort"

	"signal-scanner/internal/domain"
	apperrors "signal-scanner/pkg/errors"
)

// BuildSnapshot computes indicator values for the most recent candle.
// Candles may arrive unordered; nil entries are ignored. minHistory below
// MinHistory is raised to MinHistory.
func BuildSnapshot(symbol string, candles []*domain.Candle, minHistory int) (domain.IndicatorSnapshot, error) {
	if minHistory < MinHistory {
		minHistory = MinHistory
	}

	ordered := make([]*domain.Candle, 0, len(candles))
	for _, c := range candles {
		if c != nil {
			ordered = append(ordered, c)
		}
	}
	if len(ordered) < minHistory {
		return domain.IndicatorSnapshot{}, apperrors.NewInsufficientHistory(symbol, minHistory, len(ordered))
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OpenTime.Before(ordered[j].OpenTime)
	})

	closes := make([]float64, len(ordered))
	volumes := make([]float64, len(ordered))
	for i, c := range ordered {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	latest := ordered[len(ordered)-1]
	snap := domain.IndicatorSnapshot{
		Symbol:   symbol,
		Interval: latest.Interval,
		Time:     latest.OpenTime,
		Price:    latest.Close,
		Volume:   latest.Volume,
	}
	snap.RSI = LastRSI(closes, RSIPeriod)
	snap.MACD, snap.MACDSignal = LastMACD(closes, MACDFastPeriod, MACDSlowPeriod, MACDSignalPeriod)
	snap.BBUpper, snap.BBMiddle, snap.BBLower = LastBollinger(closes, BBPeriod, BBStdDevs)
	snap.SMAShort = LastSMA(closes, SMAShortPeriod)
	snap.SMALong = LastSMA(closes, SMALongPeriod)
	snap.VolumeRatio = VolumeRatio(volumes, VolumePeriod)

	if field, ok := firstNonFinite(snap); !ok {
		return domain.IndicatorSnapshot{}, apperrors.Wrapf(
			apperrors.ErrCodeInsufficientHistory,
			apperrors.NewInsufficientHistory(symbol, minHistory, len(ordered)),
			"%s is not a finite number", field,
		)
	}
	return snap, nil
}

func firstNonFinite(s domain.IndicatorSnapshot) (string, bool) {
	fields := []struct {
		name  string
		value float64
	}{
		{"price", s.Price},
		{"rsi", s.RSI},
		{"macd", s.MACD},
		{"macd_signal", s.MACDSignal},
		{"bb_upper", s.BBUpper},
		{"bb_middle", s.BBMiddle},
		{"bb_lower", s.BBLower},
		{"sma_short", s.SMAShort},
		{"sma_long", s.SMALong},
		{"volume", s.Volume},
		{"volume_ratio", s.VolumeRatio},
	}
	for _, f := range fields {
		if !finite(f.value) {
			return f.name, false
		}
	}
	return "", true
}

package signal

import (
	"fmt"

	"signal-scanner/internal/domain"
	apperrors "signal-scanner/pkg/errors"
)

// Thresholds tune the scorer. RSI levels are on the 0-100 scale; Medium and
// High are strength cut-offs.
type Thresholds struct {
	Oversold       float64
	StrictOversold float64
	Overbought     float64
	Medium         int
	High           int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Oversold:       35,
		StrictOversold: 30,
		Overbought:     65,
		Medium:         2,
		High:           3,
	}
}

func (t Thresholds) Validate() error {
	if t.StrictOversold <= 0 || t.StrictOversold > t.Oversold {
		return apperrors.Newf(apperrors.ErrCodeConfigValidation,
			"strict oversold %.2f must be in (0, oversold %.2f]", t.StrictOversold, t.Oversold)
	}
	if t.Overbought <= t.Oversold || t.Overbought >= 100 {
		return apperrors.Newf(apperrors.ErrCodeConfigValidation,
			"overbought %.2f must be in (oversold %.2f, 100)", t.Overbought, t.Oversold)
	}
	if t.Medium < 1 || t.High < t.Medium || t.High > domain.MaxSignalStrength {
		return apperrors.Newf(apperrors.ErrCodeConfigValidation,
			"strength tiers must satisfy 1 <= medium(%d) <= high(%d) <= %d", t.Medium, t.High, domain.MaxSignalStrength)
	}
	return nil
}

// Scorer turns an indicator snapshot into a discrete signal. It holds no
// state beyond its thresholds and is safe for concurrent use.
type Scorer struct {
	thresholds Thresholds
}

func NewScorer(t Thresholds) *Scorer {
	return &Scorer{thresholds: t}
}

func (s *Scorer) Thresholds() Thresholds {
	return s.thresholds
}

// Score adds one point per buy condition. The sell flag is computed
// independently and does not change Kind.
func (s *Scorer) Score(snap domain.IndicatorSnapshot) domain.Signal {
	t := s.thresholds
	var (
		strength int
		reasons  []string
	)

	if snap.RSI < t.Oversold {
		strength++
		reasons = append(reasons, fmt.Sprintf("RSI %.2f below %.0f", snap.RSI, t.Oversold))
	}
	if snap.RSI < t.StrictOversold {
		strength++
		reasons = append(reasons, fmt.Sprintf("RSI %.2f below %.0f (strongly oversold)", snap.RSI, t.StrictOversold))
	}
	if snap.MACD > snap.MACDSignal {
		strength++
		reasons = append(reasons, "MACD above signal line")
	}
	if snap.BandPosition() == domain.BandBelow {
		strength++
		reasons = append(reasons, "price below lower Bollinger band")
	}

	sig := domain.Signal{
		Strength: strength,
		SellFlag: snap.RSI > t.Overbought || snap.MACD < snap.MACDSignal || snap.BandPosition() == domain.BandAbove,
		Reasons:  reasons,
	}
	switch {
	case strength >= t.High:
		sig.Kind, sig.Confidence = domain.SignalBuy, domain.ConfidenceHigh
	case strength >= t.Medium:
		sig.Kind, sig.Confidence = domain.SignalBuy, domain.ConfidenceMedium
	default:
		sig.Kind, sig.Confidence = domain.SignalNeutral, domain.ConfidenceLow
	}
	return sig
}

// Exit reports the kind a caller acting on exits would see: sell when the
// sell flag is raised and no buy is present.
func Exit(sig domain.Signal) domain.SignalKind {
	if sig.Kind == domain.SignalBuy {
		return domain.SignalBuy
	}
	if sig.SellFlag {
		return domain.SignalSell
	}
	return domain.SignalNeutral
}

package advisor

import (
	"fmt"
	"strings"

	"signal-scanner/internal/domain"
)

const analystPersona = `You are a crypto market analyst. You explain technical signals that have already been computed; you do not change them.

Rules:
- Refer only to the indicator values provided. Never fabricate data.
- Explain in 3-5 short sentences why the indicators support or contradict the signal.
- Mention the main risk to the trade idea.
- Plain text, no markdown, no disclaimers.`

// BuildRationalePrompt renders the snapshot and signal as the user turn.
func BuildRationalePrompt(symbol string, snap domain.IndicatorSnapshot, sig domain.Signal) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Symbol: %s (%s candles)\n", symbol, snap.Interval)
	sb.WriteString(FormatSnapshot(snap))
	fmt.Fprintf(&sb, "\nComputed signal: %s, confidence %s, strength %d/%d\n",
		strings.ToUpper(string(sig.Kind)), sig.Confidence, sig.Strength, domain.MaxSignalStrength)
	if len(sig.Reasons) > 0 {
		sb.WriteString("Conditions met:\n")
		for _, r := range sig.Reasons {
			sb.WriteString("  - ")
			sb.WriteString(r)
			sb.WriteString("\n")
		}
	}
	if sig.SellFlag {
		sb.WriteString("Note: at least one exit condition is also present.\n")
	}
	sb.WriteString("\nExplain this signal.")
	return sb.String()
}

// FormatSnapshot lists indicator values one per line.
func FormatSnapshot(snap domain.IndicatorSnapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Price: %.6g\n", snap.Price)
	fmt.Fprintf(&sb, "  RSI(14): %.2f\n", snap.RSI)
	fmt.Fprintf(&sb, "  MACD: %.6g (signal %.6g)\n", snap.MACD, snap.MACDSignal)
	fmt.Fprintf(&sb, "  Bollinger(20,2): lower %.6g / middle %.6g / upper %.6g (price %s)\n",
		snap.BBLower, snap.BBMiddle, snap.BBUpper, snap.BandPosition())
	fmt.Fprintf(&sb, "  SMA20: %.6g  SMA50: %.6g\n", snap.SMAShort, snap.SMALong)
	fmt.Fprintf(&sb, "  Volume ratio (20): %.2f\n", snap.VolumeRatio)
	return sb.String()
}

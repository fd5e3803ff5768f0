package scanner

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"signal-scanner/internal/domain"
	apperrors "signal-scanner/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Analyze scores one pair on demand. It never places an order. The
// rationale is requested only when AI is enabled; otherwise it carries
// domain.RationaleUnavailable.
func (s *Supervisor) Analyze(ctx context.Context, pair string) (domain.Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "scanner.analyze")
	defer span.End()

	cfg, ex := s.snapshot()
	pair = domain.NormalizePair(pair, cfg.QuoteAsset)
	if pair == "" {
		return domain.Analysis{}, apperrors.New(apperrors.ErrCodeUnknownSymbol, "symbol is required")
	}
	span.SetAttributes(attribute.String("pair", pair))

	snap, sig, err := s.evaluate(ctx, ex, pair)
	if err != nil {
		span.RecordError(err)
		return domain.Analysis{}, err
	}

	out := domain.Analysis{Snapshot: snap, Signal: sig, Rationale: domain.RationaleUnavailable}
	if cfg.AIEnabled && s.rationale != nil {
		out.Rationale, _ = s.rationale.Explain(ctx, pair, snap, sig)
	}
	s.logs.Info(fmt.Sprintf("analysis %s: %s/%s strength %d", pair, sig.Kind, sig.Confidence, sig.Strength))
	return out, nil
}

// GetBalance returns non-zero exchange balances.
func (s *Supervisor) GetBalance(ctx context.Context) ([]domain.Balance, error) {
	ctx, span := s.tracer.Start(ctx, "scanner.get-balance")
	defer span.End()

	_, ex := s.snapshot()
	if ex == nil {
		return nil, apperrors.New(apperrors.ErrCodeExchangeNotReady, "exchange client not initialised")
	}
	balances, err := ex.FetchBalances(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Asset < balances[j].Asset })
	return balances, nil
}

// UpdateConfig applies a partial update atomically: the update is applied to
// a copy, validated, and swapped in only when every key is valid. Changing
// credentials rebuilds the exchange client.
func (s *Supervisor) UpdateConfig(updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.cfg.Clone()
	next, err := applyUpdates(current, updates)
	if err == nil {
		if verr := next.Validate(); verr != nil {
			err = apperrors.Wrap(apperrors.ErrCodeConfigValidation, "config update rejected", verr)
		}
	}
	if err != nil {
		s.logs.Error(err.Error())
		return err
	}

	credsChanged := next.APIKey != current.APIKey || next.APISecret != current.APISecret
	if credsChanged {
		s.exchange = s.newEx(next.APIKey, next.APISecret)
	}
	s.cfg = next

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.logs.Info(fmt.Sprintf("config updated: %s", strings.Join(keys, ", ")))
	s.log.Info("config updated", zap.Strings("keys", keys), zap.Bool("exchange_reinitialised", credsChanged))
	return nil
}

// SetAIEnabled toggles the rationale provider.
func (s *Supervisor) SetAIEnabled(enabled bool) error {
	return s.UpdateConfig(map[string]any{"ai_enabled": enabled})
}

func applyUpdates(cfg domain.TradingConfig, updates map[string]any) (domain.TradingConfig, error) {
	if len(updates) == 0 {
		return cfg, apperrors.New(apperrors.ErrCodeConfigValidation, "empty config update")
	}
	for key, raw := range updates {
		var err error
		switch key {
		case "auto_execute":
			cfg.AutoExecute, err = toBool(raw)
		case "ai_enabled":
			cfg.AIEnabled, err = toBool(raw)
		case "warn_insufficient_history":
			cfg.WarnInsufficientHistory, err = toBool(raw)
		case "risk_percentage":
			cfg.RiskPercentage, err = toFloat(raw)
		case "trading_pairs":
			var pairs []string
			pairs, err = toStrings(raw)
			cfg.TradingPairs = normalizePairs(pairs, cfg.QuoteAsset)
		case "api_key":
			cfg.APIKey, err = toString(raw)
		case "api_secret":
			cfg.APISecret, err = toString(raw)
		default:
			err = fmt.Errorf("unknown key")
		}
		if err != nil {
			return cfg, apperrors.Wrapf(apperrors.ErrCodeConfigValidation, err, "config key %q", key)
		}
	}
	return cfg, nil
}

func normalizePairs(pairs []string, quote string) []string {
	seen := make(map[string]bool, len(pairs))
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		n := domain.NormalizePair(p, quote)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(t))
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return strings.TrimSpace(s), nil
}

func toStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case string:
		return strings.Split(t, ","), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected list of strings, got element %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", v)
	}
}

package scanner

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"signal-scanner/internal/domain"
	apperrors "signal-scanner/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func (s *Supervisor) run(ctx context.Context, prev <-chan struct{}, done chan struct{}) {
	defer close(done)

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return
		}
	}

	for {
		delay := s.opts.Timing.CycleDelay
		if err := s.safeCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logs.Error(fmt.Sprintf("scan cycle failed, retrying in %s: %v", s.opts.Timing.ErrorBackoff, err))
			s.log.Error("scan cycle failed", zap.Error(err), zap.Duration("backoff", s.opts.Timing.ErrorBackoff))
			delay = s.opts.Timing.ErrorBackoff
		}
		if !sleep(ctx, delay) {
			return
		}
	}
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Supervisor) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scan cycle panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic in scan cycle: %v", r)
		}
	}()
	return s.runCycle(ctx)
}

func (s *Supervisor) runCycle(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "scanner.cycle")
	defer span.End()

	cfg, ex := s.snapshot()
	if len(cfg.TradingPairs) == 0 {
		return apperrors.New(apperrors.ErrCodeConfigValidation, "no trading pairs configured")
	}
	if ex == nil {
		return apperrors.New(apperrors.ErrCodeExchangeNotReady, "exchange client not initialised")
	}
	span.SetAttributes(attribute.Int("pairs", len(cfg.TradingPairs)))

	for _, pair := range cfg.TradingPairs {
		if ctx.Err() != nil {
			return nil
		}
		s.safeSymbol(ctx, cfg, ex, pair)
		if !sleep(ctx, s.opts.Timing.SymbolDelay) {
			return nil
		}
	}

	s.mu.Lock()
	s.cycles++
	s.lastCycleAt = s.now().UTC()
	cycles := s.cycles
	s.mu.Unlock()
	s.log.Debug("scan cycle complete", zap.Int("cycle", cycles))
	return nil
}

func (s *Supervisor) safeSymbol(ctx context.Context, cfg domain.TradingConfig, ex Exchange, pair string) {
	defer func() {
		if r := recover(); r != nil {
			s.logs.Error(fmt.Sprintf("%s: internal error: %v", pair, r))
			s.log.Error("symbol panic", zap.String("pair", pair), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()
	s.processSymbol(ctx, cfg, ex, pair)
}

func (s *Supervisor) processSymbol(ctx context.Context, cfg domain.TradingConfig, ex Exchange, pair string) {
	ctx, span := s.tracer.Start(ctx, "scanner.symbol")
	defer span.End()
	span.SetAttributes(attribute.String("pair", pair))

	snap, sig, err := s.evaluate(ctx, ex, pair)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.reportSymbolError(cfg, pair, err)
		return
	}
	span.SetAttributes(
		attribute.String("signal.kind", string(sig.Kind)),
		attribute.Int("signal.strength", sig.Strength),
	)

	if sig.Kind == domain.SignalBuy && sig.SellFlag {
		s.logs.Warn(fmt.Sprintf("%s: sell condition also present, buy signal takes precedence", pair))
	}
	if !sig.Actionable() {
		s.log.Debug("no actionable signal",
			zap.String("pair", pair),
			zap.String("kind", string(sig.Kind)),
			zap.Int("strength", sig.Strength),
			zap.Float64("rsi", snap.RSI),
		)
		return
	}

	s.logs.Info(fmt.Sprintf("%s: BUY signal, strength %d/%d, RSI %.2f, price %.6g",
		pair, sig.Strength, domain.MaxSignalStrength, snap.RSI, snap.Price))
	s.executeBuy(ctx, cfg, ex, pair, snap)
}

func (s *Supervisor) evaluate(ctx context.Context, ex Exchange, pair string) (domain.IndicatorSnapshot, domain.Signal, error) {
	var source CandleSource = ex
	if s.candles != nil {
		source = s.candles
	}
	if source == nil {
		return domain.IndicatorSnapshot{}, domain.Signal{}, apperrors.New(apperrors.ErrCodeExchangeNotReady, "no candle source")
	}
	candles, err := source.FetchCandles(ctx, pair, s.opts.Interval, s.opts.CandleLimit)
	if err != nil {
		return domain.IndicatorSnapshot{}, domain.Signal{}, err
	}
	snap, err := s.build(pair, candles, s.opts.MinHistory)
	if err != nil {
		return domain.IndicatorSnapshot{}, domain.Signal{}, err
	}
	return snap, s.scorer.Score(snap), nil
}

func (s *Supervisor) reportSymbolError(cfg domain.TradingConfig, pair string, err error) {
	if apperrors.IsInsufficientHistory(err) {
		if cfg.WarnInsufficientHistory {
			s.logs.Warn(fmt.Sprintf("%s: skipped, %v", pair, err))
		}
		s.log.Debug("insufficient history", zap.String("pair", pair), zap.Error(err))
		return
	}
	s.logs.Error(fmt.Sprintf("%s: %v", pair, err))
	s.log.Warn("symbol failed", zap.String("pair", pair), zap.Error(err))
}

func (s *Supervisor) executeBuy(ctx context.Context, cfg domain.TradingConfig, ex Exchange, pair string, snap domain.IndicatorSnapshot) {
	ctx, span := s.tracer.Start(ctx, "scanner.execute-buy")
	defer span.End()

	live := cfg.AutoExecute && ex.HasCredentials()
	balance, err := s.quoteBalance(ctx, cfg, ex)
	if err != nil {
		s.logs.Error(fmt.Sprintf("%s: order skipped, balance unavailable: %v", pair, err))
		return
	}

	size, err := s.sizer.Size(balance, cfg.RiskPercentage, snap.Price)
	if err != nil {
		s.logs.Warn(fmt.Sprintf("%s: order skipped: %v", pair, err))
		return
	}

	rec := domain.TradeRecord{
		ID:        s.newID(),
		Symbol:    pair,
		Side:      domain.SideBuy,
		Quantity:  size.QuantityFloat(),
		Price:     snap.Price,
		Timestamp: s.now().UTC(),
		Simulated: !live,
	}

	if live {
		receipt, err := ex.PlaceMarketOrder(ctx, pair, domain.SideBuy, size.Quantity, rec.ID)
		if err != nil {
			span.RecordError(err)
			s.logs.Error(fmt.Sprintf("%s: order failed: %v", pair, err))
			s.log.Error("order failed", zap.String("pair", pair), zap.Error(err))
			return
		}
		rec.OrderID = receipt.OrderID
		if receipt.Quantity > 0 {
			rec.Quantity = receipt.Quantity
		}
	}

	s.recordTrade(ctx, rec)
	verb := "simulated buy"
	if live {
		verb = "bought"
	}
	s.logs.Info(fmt.Sprintf("%s: %s %s at %.6g (%s %s committed)",
		pair, verb, size.Quantity.String(), snap.Price, size.Notional.StringFixed(2), cfg.QuoteAsset))
}

func (s *Supervisor) quoteBalance(ctx context.Context, cfg domain.TradingConfig, ex Exchange) (float64, error) {
	if !ex.HasCredentials() {
		if s.opts.SimulatedBalance > 0 {
			return s.opts.SimulatedBalance, nil
		}
		return 0, apperrors.New(apperrors.ErrCodeExchangeNotReady, "exchange credentials not configured")
	}
	balances, err := ex.FetchBalances(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range balances {
		if b.Asset == cfg.QuoteAsset {
			return b.Free, nil
		}
	}
	return 0, nil
}

func (s *Supervisor) recordTrade(ctx context.Context, rec domain.TradeRecord) {
	s.mu.Lock()
	s.trades = append(s.trades, rec)
	s.mu.Unlock()

	if s.journal == nil {
		return
	}
	// The write outlives Stop but not the journal timeout.
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timing.JournalTimeout)
	defer cancel()
	if _, err := s.journal.SaveTrade(jctx, rec); err != nil {
		s.log.Warn("trade journal write failed", zap.String("trade_id", rec.ID), zap.Error(err))
	}
}

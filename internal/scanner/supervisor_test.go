package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"signal-scanner/internal/domain"
	"signal-scanner/internal/logbuf"
	apperrors "signal-scanner/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() domain.TradingConfig {
	return domain.TradingConfig{
		RiskPercentage:          1,
		TradingPairs:            []string{"BTC/USDT", "ETH/USDT"},
		QuoteAsset:              "USDT",
		WarnInsufficientHistory: true,
	}
}

func fastTiming() Timing {
	return Timing{SymbolDelay: time.Millisecond, CycleDelay: time.Hour, ErrorBackoff: time.Hour}
}

// buySnapshot scores buy/high under default thresholds.
func buySnapshot(pair string) domain.IndicatorSnapshot {
	return domain.IndicatorSnapshot{
		Symbol: pair, Price: 100, RSI: 25, MACD: 1, MACDSignal: 0.5,
		BBUpper: 120, BBMiddle: 110, BBLower: 101,
	}
}

func neutralSnapshot(pair string) domain.IndicatorSnapshot {
	return domain.IndicatorSnapshot{
		Symbol: pair, Price: 100, RSI: 50, MACD: 0, MACDSignal: 0,
		BBUpper: 110, BBMiddle: 100, BBLower: 90,
	}
}

type harness struct {
	sup       *Supervisor
	ex        *stubExchange
	journal   *stubJournal
	factories atomic.Int32
}

func newHarness(t *testing.T, cfg domain.TradingConfig, build SnapshotBuilder, mutate ...func(*Options, *Deps)) *harness {
	t.Helper()
	h := &harness{ex: newStubExchange(), journal: &stubJournal{}}
	opts := Options{Timing: fastTiming(), SimulatedBalance: 1000}
	var ids atomic.Int32
	deps := Deps{
		NewExchange: func(key, secret string) Exchange {
			h.factories.Add(1)
			h.ex.setCreds(key != "" && secret != "")
			return h.ex
		},
		Journal: h.journal,
		Logs:    logbuf.New(logbuf.DefaultCapacity),
		Build:   build,
		NewID:   func() string { return fmt.Sprintf("trade-%d", ids.Add(1)) },
	}
	for _, m := range mutate {
		m(&opts, &deps)
	}
	sup, err := New(cfg, opts, deps)
	require.NoError(t, err)
	h.sup = sup
	t.Cleanup(func() {
		sup.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sup.Wait(ctx)
	})
	return h
}

func staticBuild(f func(pair string) domain.IndicatorSnapshot) SnapshotBuilder {
	return func(symbol string, candles []*domain.Candle, minHistory int) (domain.IndicatorSnapshot, error) {
		return f(symbol), nil
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func messages(entries []domain.LogEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(string(e.Level))
		sb.WriteString(": ")
		sb.WriteString(e.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.RiskPercentage = 0
	_, err := New(cfg, Options{}, Deps{NewExchange: func(string, string) Exchange { return newStubExchange() }})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigValidation))

	_, err = New(baseConfig(), Options{}, Deps{})
	assert.Error(t, err)
}

func TestStartTwiceRunsSingleLoop(t *testing.T) {
	h := newHarness(t, baseConfig(), staticBuild(neutralSnapshot), func(o *Options, _ *Deps) {
		o.Timing.CycleDelay = time.Millisecond
	})
	h.ex.fetchDelay = 2 * time.Millisecond

	assert.True(t, h.sup.Start())
	assert.False(t, h.sup.Start())
	assert.True(t, h.sup.Running())

	eventually(t, func() bool { return h.sup.Status().Cycles >= 3 })

	// Rapid stop/start cycles must never overlap two loop bodies.
	for i := 0; i < 5; i++ {
		h.sup.Stop()
		h.sup.Start()
	}
	eventually(t, func() bool { return h.sup.Status().Cycles >= 6 })
	assert.Equal(t, int32(1), h.ex.maxActive.Load())
}

func TestStopDuringCycleSleepIsPrompt(t *testing.T) {
	h := newHarness(t, baseConfig(), staticBuild(neutralSnapshot))

	require.True(t, h.sup.Start())
	eventually(t, func() bool { return h.sup.Status().Cycles == 1 })

	start := time.Now()
	assert.True(t, h.sup.Stop())
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, h.sup.Wait(ctx))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.False(t, h.sup.Running())
	assert.False(t, h.sup.Stop(), "second stop is a no-op")
	assert.Nil(t, h.sup.Status().StartedAt)
}

func TestCycleSimulatesBuyOnHighConfidence(t *testing.T) {
	build := staticBuild(func(pair string) domain.IndicatorSnapshot {
		if pair == "BTC/USDT" {
			return buySnapshot(pair)
		}
		return neutralSnapshot(pair)
	})
	h := newHarness(t, baseConfig(), build)

	require.NoError(t, h.sup.runCycle(context.Background()))

	trades := h.sup.Trades()
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Equal(t, "trade-1", tr.ID)
	assert.Equal(t, "BTC/USDT", tr.Symbol)
	assert.Equal(t, domain.SideBuy, tr.Side)
	assert.True(t, tr.Simulated)
	// 1000 * 1% / 100
	assert.InDelta(t, 0.1, tr.Quantity, 1e-12)
	assert.Equal(t, 100.0, tr.Price)
	assert.Empty(t, h.ex.orders, "simulation must not place orders")
	assert.Equal(t, 1, h.journal.count())
	assert.Equal(t, 1, h.sup.Status().Cycles)
	assert.Contains(t, messages(h.sup.GetLogs(0)), "simulated buy")
}

func TestStopIsHonoredWhenJournalHangs(t *testing.T) {
	cfg := baseConfig()
	cfg.TradingPairs = []string{"BTC/USDT"}
	journal := &blockingJournal{entered: make(chan struct{}, 1)}
	h := newHarness(t, cfg, staticBuild(buySnapshot), func(o *Options, d *Deps) {
		o.Timing.JournalTimeout = 50 * time.Millisecond
		d.Journal = journal
	})

	require.True(t, h.sup.Start())
	select {
	case <-journal.entered:
	case <-time.After(time.Second):
		t.Fatal("journal write never started")
	}
	assert.True(t, h.sup.Stop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.sup.Wait(ctx))
	assert.False(t, h.sup.Running())
	require.Len(t, h.sup.Trades(), 1, "in-memory record survives a failed journal write")
	assert.ErrorIs(t, journal.lastErr(), context.DeadlineExceeded)

	// A fresh loop starts instead of queueing behind the stalled one.
	require.True(t, h.sup.Start())
	select {
	case <-journal.entered:
	case <-time.After(time.Second):
		t.Fatal("restarted loop never reached the journal")
	}
}

func TestCyclePlacesLiveOrderWhenArmed(t *testing.T) {
	cfg := baseConfig()
	cfg.AutoExecute = true
	cfg.APIKey, cfg.APISecret = "key", "secret"
	cfg.TradingPairs = []string{"BTC/USDT"}
	h := newHarness(t, cfg, staticBuild(buySnapshot))
	h.ex.balances = []domain.Balance{{Asset: "USDT", Free: 500}, {Asset: "BTC", Free: 0.2}}

	require.NoError(t, h.sup.runCycle(context.Background()))

	require.Len(t, h.ex.orders, 1)
	order := h.ex.orders[0]
	assert.Equal(t, "BTC/USDT", order.pair)
	assert.Equal(t, "0.05", order.qty.String())
	assert.Equal(t, "trade-1", order.clientID)

	trades := h.sup.Trades()
	require.Len(t, trades, 1)
	assert.False(t, trades[0].Simulated)
	assert.Equal(t, "order-1", trades[0].OrderID)
}

func TestCycleSkipsOrderBelowBalanceFloor(t *testing.T) {
	cfg := baseConfig()
	cfg.AutoExecute = true
	cfg.APIKey, cfg.APISecret = "key", "secret"
	cfg.TradingPairs = []string{"BTC/USDT"}
	h := newHarness(t, cfg, staticBuild(buySnapshot))
	h.ex.balances = []domain.Balance{{Asset: "USDT", Free: 10}}

	require.NoError(t, h.sup.runCycle(context.Background()))
	assert.Empty(t, h.ex.orders)
	assert.Empty(t, h.sup.Trades())
	assert.Contains(t, messages(h.sup.GetLogs(0)), "order skipped")
}

func TestCycleContinuesPastSymbolErrors(t *testing.T) {
	cfg := baseConfig()
	cfg.TradingPairs = []string{"BAD/USDT", "PANIC/USDT", "BTC/USDT"}
	build := func(symbol string, candles []*domain.Candle, minHistory int) (domain.IndicatorSnapshot, error) {
		if symbol == "PANIC/USDT" {
			panic("boom")
		}
		return buySnapshot(symbol), nil
	}
	h := newHarness(t, cfg, build)
	h.ex.fetchErr = map[string]error{"BAD/USDT": apperrors.New(apperrors.ErrCodeExchange, "503")}

	require.NoError(t, h.sup.safeCycle(context.Background()))

	trades := h.sup.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, "BTC/USDT", trades[0].Symbol)
	logs := messages(h.sup.GetLogs(0))
	assert.Contains(t, logs, "BAD/USDT")
	assert.Contains(t, logs, "PANIC/USDT: internal error")
}

func TestInsufficientHistoryPolicy(t *testing.T) {
	build := func(symbol string, candles []*domain.Candle, minHistory int) (domain.IndicatorSnapshot, error) {
		return domain.IndicatorSnapshot{}, apperrors.NewInsufficientHistory(symbol, 50, 12)
	}

	h := newHarness(t, baseConfig(), build)
	require.NoError(t, h.sup.runCycle(context.Background()))
	logs := messages(h.sup.GetLogs(0))
	assert.Contains(t, logs, "warn: BTC/USDT: skipped, insufficient history")

	cfg := baseConfig()
	cfg.WarnInsufficientHistory = false
	quiet := newHarness(t, cfg, build)
	require.NoError(t, quiet.sup.runCycle(context.Background()))
	assert.NotContains(t, messages(quiet.sup.GetLogs(0)), "insufficient history")
}

func TestBuyWithSellFlagIsLogged(t *testing.T) {
	cfg := baseConfig()
	cfg.TradingPairs = []string{"BTC/USDT"}
	build := staticBuild(func(pair string) domain.IndicatorSnapshot {
		s := buySnapshot(pair)
		s.MACD = -1 // raises the sell flag; RSI and band still give strength 3
		s.Price = 95
		return s
	})
	h := newHarness(t, cfg, build)

	require.NoError(t, h.sup.runCycle(context.Background()))
	assert.Contains(t, messages(h.sup.GetLogs(0)), "buy signal takes precedence")
	assert.Len(t, h.sup.Trades(), 1)
}

func TestCycleErrorTriggersBackoffWithoutStopping(t *testing.T) {
	h := newHarness(t, baseConfig(), staticBuild(neutralSnapshot), func(o *Options, _ *Deps) {
		o.Timing.ErrorBackoff = time.Hour
	})
	h.sup.mu.Lock()
	h.sup.exchange = nil
	h.sup.mu.Unlock()

	require.True(t, h.sup.Start())
	eventually(t, func() bool { return strings.Contains(messages(h.sup.GetLogs(0)), "scan cycle failed") })
	assert.True(t, h.sup.Running())
	assert.Equal(t, 0, h.sup.Status().Cycles)
}

func TestUpdateConfigRejectsOutOfRangeRisk(t *testing.T) {
	h := newHarness(t, baseConfig(), staticBuild(neutralSnapshot))

	err := h.sup.UpdateConfig(map[string]any{"risk_percentage": "150"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigValidation))
	assert.Equal(t, 1.0, h.sup.Config().RiskPercentage)

	// Partial application is not allowed either.
	err = h.sup.UpdateConfig(map[string]any{"auto_execute": true, "risk_percentage": -1})
	require.Error(t, err)
	assert.False(t, h.sup.Config().AutoExecute)

	err = h.sup.UpdateConfig(map[string]any{"risk_percentage": "abc"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigValidation))

	err = h.sup.UpdateConfig(map[string]any{"leverage": 10})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigValidation))

	err = h.sup.UpdateConfig(map[string]any{"trading_pairs": []any{}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigValidation))
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, h.sup.Config().TradingPairs)
}

func TestUpdateConfigApplies(t *testing.T) {
	h := newHarness(t, baseConfig(), staticBuild(neutralSnapshot))

	err := h.sup.UpdateConfig(map[string]any{
		"risk_percentage": 2.5,
		"trading_pairs":   []any{"sol", "BTC/USDT", "btc/usdt"},
		"ai_enabled":      "true",
		"auto_execute":    true,
	})
	require.NoError(t, err)

	cfg := h.sup.Config()
	assert.Equal(t, 2.5, cfg.RiskPercentage)
	assert.Equal(t, []string{"SOL/USDT", "BTC/USDT"}, cfg.TradingPairs)
	assert.True(t, cfg.AIEnabled)
	assert.True(t, cfg.AutoExecute)
	assert.Equal(t, int32(1), h.factories.Load(), "no credential change, no rebuild")
}

func TestUpdateConfigCredentialsRebuildExchange(t *testing.T) {
	h := newHarness(t, baseConfig(), staticBuild(neutralSnapshot))
	require.False(t, h.ex.HasCredentials())

	require.NoError(t, h.sup.UpdateConfig(map[string]any{"api_key": "abcd1234", "api_secret": "s3cr3tvalue"}))
	assert.Equal(t, int32(2), h.factories.Load())
	assert.True(t, h.ex.HasCredentials())

	cfg := h.sup.Config()
	assert.Equal(t, "****1234", cfg.APIKey)
	assert.NotContains(t, cfg.APISecret, "s3cr3t")
}

func TestAnalyzeAttachesRationaleWhenEnabled(t *testing.T) {
	rationale := &stubRationale{text: "RSI deeply oversold"}
	h := newHarness(t, baseConfig(), staticBuild(buySnapshot), func(_ *Options, d *Deps) {
		d.Rationale = rationale
	})

	got, err := h.sup.Analyze(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", got.Snapshot.Symbol)
	assert.Equal(t, domain.SignalBuy, got.Signal.Kind)
	assert.Equal(t, domain.RationaleUnavailable, got.Rationale, "AI disabled by default")
	assert.Equal(t, 0, rationale.calls)
	assert.Empty(t, h.sup.Trades(), "analyze never trades")

	require.NoError(t, h.sup.SetAIEnabled(true))
	got, err = h.sup.Analyze(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "RSI deeply oversold", got.Rationale)
	assert.Equal(t, 1, rationale.calls)

	_, err = h.sup.Analyze(context.Background(), " ")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnknownSymbol))
}

func TestAnalyzeUsesCandleSourceOverride(t *testing.T) {
	source := &stubCandles{}
	h := newHarness(t, baseConfig(), staticBuild(neutralSnapshot), func(_ *Options, d *Deps) {
		d.Candles = source
	})

	_, err := h.sup.Analyze(context.Background(), "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, int32(0), h.ex.fetches.Load())
}

func TestGetBalance(t *testing.T) {
	h := newHarness(t, baseConfig(), staticBuild(neutralSnapshot))
	_, err := h.sup.GetBalance(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExchangeNotReady))

	require.NoError(t, h.sup.UpdateConfig(map[string]any{"api_key": "k", "api_secret": "s"}))
	h.ex.balances = []domain.Balance{{Asset: "USDT", Free: 5}, {Asset: "BTC", Free: 1}}
	got, err := h.sup.GetBalance(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BTC", got[0].Asset)
}

func TestClearLogs(t *testing.T) {
	h := newHarness(t, baseConfig(), staticBuild(neutralSnapshot))
	h.sup.Start()
	require.NotEmpty(t, h.sup.GetLogs(0))
	h.sup.ClearLogs()
	assert.Empty(t, h.sup.GetLogs(0))
}

// --- Stubs ---

type placedOrder struct {
	pair     string
	qty      decimal.Decimal
	clientID string
}

type stubExchange struct {
	mu         sync.Mutex
	creds      bool
	balances   []domain.Balance
	fetchErr   map[string]error
	fetchDelay time.Duration
	orders     []placedOrder

	fetches   atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func newStubExchange() *stubExchange {
	return &stubExchange{}
}

func (s *stubExchange) setCreds(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = v
}

func (s *stubExchange) HasCredentials() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

func (s *stubExchange) FetchCandles(ctx context.Context, pair, interval string, limit int) ([]*domain.Candle, error) {
	s.fetches.Add(1)
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if s.fetchDelay > 0 {
		time.Sleep(s.fetchDelay)
	}
	if err := s.fetchErr[pair]; err != nil {
		return nil, err
	}
	return []*domain.Candle{{Symbol: pair}}, nil
}

func (s *stubExchange) FetchBalances(ctx context.Context) ([]domain.Balance, error) {
	if !s.HasCredentials() {
		return nil, apperrors.New(apperrors.ErrCodeExchangeNotReady, "no credentials")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Balance(nil), s.balances...), nil
}

func (s *stubExchange) PlaceMarketOrder(ctx context.Context, pair string, side domain.OrderSide, qty decimal.Decimal, clientOrderID string) (*domain.OrderReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, placedOrder{pair: pair, qty: qty, clientID: clientOrderID})
	f, _ := qty.Float64()
	return &domain.OrderReceipt{OrderID: fmt.Sprintf("order-%d", len(s.orders)), Symbol: pair, Side: side, Quantity: f, Status: "FILLED"}, nil
}

type stubJournal struct {
	mu    sync.Mutex
	saved []domain.TradeRecord
	err   error
}

func (j *stubJournal) SaveTrade(ctx context.Context, rec domain.TradeRecord) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return false, j.err
	}
	j.saved = append(j.saved, rec)
	return true, nil
}

// blockingJournal never completes a write on its own; it returns only when
// the caller's context ends.
type blockingJournal struct {
	entered chan struct{}
	mu      sync.Mutex
	err     error
}

func (j *blockingJournal) SaveTrade(ctx context.Context, rec domain.TradeRecord) (bool, error) {
	select {
	case j.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	j.mu.Lock()
	j.err = ctx.Err()
	j.mu.Unlock()
	return false, ctx.Err()
}

func (j *blockingJournal) lastErr() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *stubJournal) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.saved)
}

type stubRationale struct {
	text  string
	calls int
}

func (r *stubRationale) Explain(ctx context.Context, symbol string, snap domain.IndicatorSnapshot, sig domain.Signal) (string, bool) {
	r.calls++
	if r.text == "" {
		return domain.RationaleUnavailable, false
	}
	return r.text, true
}

type stubCandles struct {
	calls int
}

func (c *stubCandles) FetchCandles(ctx context.Context, pair, interval string, limit int) ([]*domain.Candle, error) {
	c.calls++
	return nil, nil
}

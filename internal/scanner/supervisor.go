package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signal-scanner/internal/domain"
	"signal-scanner/internal/logbuf"
	"signal-scanner/internal/logger"
	"signal-scanner/internal/signal"
	"signal-scanner/internal/sizing"
	"signal-scanner/internal/ta"
	apperrors "signal-scanner/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CandleSource loads recent candles for a pair.
type CandleSource interface {
	FetchCandles(ctx context.Context, pair, interval string, limit int) ([]*domain.Candle, error)
}

// Exchange is the trading venue. Signed calls fail with ErrCodeExchangeNotReady
// when HasCredentials is false.
type Exchange interface {
	CandleSource
	HasCredentials() bool
	FetchBalances(ctx context.Context) ([]domain.Balance, error)
	PlaceMarketOrder(ctx context.Context, pair string, side domain.OrderSide, qty decimal.Decimal, clientOrderID string) (*domain.OrderReceipt, error)
}

// ExchangeFactory builds an exchange client for a credential pair. It is
// called at construction and whenever credentials change.
type ExchangeFactory func(apiKey, apiSecret string) Exchange

// RationaleProvider explains a final signal in prose.
type RationaleProvider interface {
	Explain(ctx context.Context, symbol string, snap domain.IndicatorSnapshot, sig domain.Signal) (string, bool)
}

// TradeJournal persists trade records.
type TradeJournal interface {
	SaveTrade(ctx context.Context, rec domain.TradeRecord) (bool, error)
}

// SnapshotBuilder turns candles into an indicator snapshot.
type SnapshotBuilder func(symbol string, candles []*domain.Candle, minHistory int) (domain.IndicatorSnapshot, error)

type Timing struct {
	SymbolDelay    time.Duration
	CycleDelay     time.Duration
	ErrorBackoff   time.Duration
	// JournalTimeout bounds each trade journal write.
	JournalTimeout time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		SymbolDelay:    time.Second,
		CycleDelay:     300 * time.Second,
		ErrorBackoff:   60 * time.Second,
		JournalTimeout: 2 * time.Second,
	}
}

type Options struct {
	Interval         string
	CandleLimit      int
	MinHistory       int
	SimulatedBalance float64
	Timing           Timing
}

type Deps struct {
	Tracer      trace.Tracer
	Log         *zap.Logger
	NewExchange ExchangeFactory
	// Candles overrides the exchange as candle source, e.g. with a cache.
	Candles   CandleSource
	Scorer    *signal.Scorer
	Sizer     *sizing.Sizer
	Rationale RationaleProvider
	Journal   TradeJournal
	Logs      *logbuf.Buffer
	Build     SnapshotBuilder
	Now       func() time.Time
	NewID     func() string
}

// Supervisor owns the scan loop and everything operators can read or change
// about it. One mutex guards config, run state and trade records; the log
// buffer has its own lock.
type Supervisor struct {
	tracer    trace.Tracer
	log       *zap.Logger
	logs      *logbuf.Buffer
	newEx     ExchangeFactory
	candles   CandleSource
	scorer    *signal.Scorer
	sizer     *sizing.Sizer
	rationale RationaleProvider
	journal   TradeJournal
	build     SnapshotBuilder
	now       func() time.Time
	newID     func() string
	opts      Options

	mu          sync.Mutex
	cfg         domain.TradingConfig
	exchange    Exchange
	running     bool
	startedAt   time.Time
	lastCycleAt time.Time
	cycles      int
	cancel      context.CancelFunc
	done        chan struct{}
	trades      []domain.TradeRecord
}

func New(cfg domain.TradingConfig, opts Options, deps Deps) (*Supervisor, error) {
	if deps.NewExchange == nil {
		return nil, fmt.Errorf("scanner: exchange factory is required")
	}
	cfg = cfg.Clone()
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = domain.DefaultQuoteAsset
	}
	cfg.TradingPairs = normalizePairs(cfg.TradingPairs, cfg.QuoteAsset)
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeConfigValidation, "invalid trading config", err)
	}

	if opts.Interval == "" {
		opts.Interval = "1h"
	}
	if opts.CandleLimit <= 0 {
		opts.CandleLimit = 100
	}
	if opts.MinHistory < ta.MinHistory {
		opts.MinHistory = ta.MinHistory
	}
	if opts.CandleLimit < opts.MinHistory {
		opts.CandleLimit = opts.MinHistory
	}
	def := DefaultTiming()
	if opts.Timing.SymbolDelay <= 0 {
		opts.Timing.SymbolDelay = def.SymbolDelay
	}
	if opts.Timing.CycleDelay <= 0 {
		opts.Timing.CycleDelay = def.CycleDelay
	}
	if opts.Timing.ErrorBackoff <= 0 {
		opts.Timing.ErrorBackoff = def.ErrorBackoff
	}
	if opts.Timing.JournalTimeout <= 0 {
		opts.Timing.JournalTimeout = def.JournalTimeout
	}

	if deps.Tracer == nil {
		deps.Tracer = trace.NewNoopTracerProvider().Tracer("scanner")
	}
	if deps.Scorer == nil {
		deps.Scorer = signal.NewScorer(signal.DefaultThresholds())
	}
	if deps.Sizer == nil {
		deps.Sizer = sizing.NewSizer(sizing.DefaultMinBalance)
	}
	if deps.Logs == nil {
		deps.Logs = logbuf.New(logbuf.DefaultCapacity)
	}
	if deps.Build == nil {
		deps.Build = ta.BuildSnapshot
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.NewString() }
	}

	return &Supervisor{
		tracer:    deps.Tracer,
		log:       logger.OrNop(deps.Log).Named("scanner"),
		logs:      deps.Logs,
		newEx:     deps.NewExchange,
		candles:   deps.Candles,
		scorer:    deps.Scorer,
		sizer:     deps.Sizer,
		rationale: deps.Rationale,
		journal:   deps.Journal,
		build:     deps.Build,
		now:       deps.Now,
		newID:     deps.NewID,
		opts:      opts,
		cfg:       cfg,
		exchange:  deps.NewExchange(cfg.APIKey, cfg.APISecret),
	}, nil
}

// Start launches the scan loop. It returns false when the loop is already
// running. A loop started right after Stop waits for the previous one to
// exit before its first cycle, so at most one cycle body runs at a time.
func (s *Supervisor) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	prev := s.done
	done := make(chan struct{})

	s.running = true
	s.startedAt = s.now().UTC()
	s.cancel = cancel
	s.done = done

	mode := "simulation"
	if s.cfg.AutoExecute && s.exchange != nil && s.exchange.HasCredentials() {
		mode = "live"
	}
	s.logs.Info(fmt.Sprintf("scanner started (%s mode, %d pairs)", mode, len(s.cfg.TradingPairs)))
	s.log.Info("scanner started", zap.String("mode", mode), zap.Strings("pairs", s.cfg.TradingPairs))

	go s.run(ctx, prev, done)
	return true
}

// Stop cancels the running loop. It is safe to call when stopped and
// returns false in that case.
func (s *Supervisor) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	s.cancel()
	s.cancel = nil
	s.running = false
	s.logs.Info("scanner stopped")
	s.log.Info("scanner stopped")
	return true
}

// Wait blocks until the most recently started loop has exited or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Supervisor) Status() domain.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.RunState{
		Running:     s.running,
		Cycles:      s.cycles,
		AutoExecute: s.cfg.AutoExecute,
		AIEnabled:   s.cfg.AIEnabled,
		Pairs:       append([]string(nil), s.cfg.TradingPairs...),
	}
	if s.running {
		t := s.startedAt
		st.StartedAt = &t
	}
	if !s.lastCycleAt.IsZero() {
		t := s.lastCycleAt
		st.LastCycleAt = &t
	}
	return st
}

// Logs exposes the operator log buffer.
func (s *Supervisor) Logs() *logbuf.Buffer {
	return s.logs
}

func (s *Supervisor) GetLogs(limit int) []domain.LogEntry {
	return s.logs.Recent(limit)
}

func (s *Supervisor) ClearLogs() {
	s.logs.Clear()
	s.log.Info("operator logs cleared")
}

// Trades returns a copy of the trade records, oldest first.
func (s *Supervisor) Trades() []domain.TradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TradeRecord(nil), s.trades...)
}

// Config returns the current configuration with credentials masked.
func (s *Supervisor) Config() domain.TradingConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Redacted()
}

func (s *Supervisor) snapshot() (domain.TradingConfig, Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone(), s.exchange
}

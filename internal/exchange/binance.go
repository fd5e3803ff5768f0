package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"signal-scanner/internal/domain"
	"signal-scanner/internal/logger"
	apperrors "signal-scanner/pkg/errors"
)

const (
	DefaultTimeout = 10 * time.Second
	testnetBaseURL = "https://testnet.binance.vision"

	klinesWeight       = 2
	accountWeight      = 20
	orderWeight        = 1
	exchangeInfoWeight = 20
)

// Service interfaces over the go-binance builders so tests can fake the API.

type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	NewClientOrderID(id string) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

type ExchangeInfoService interface {
	Symbol(symbol string) ExchangeInfoService
	Do(ctx context.Context) (*binance.ExchangeInfo, error)
}

type API interface {
	NewKlinesService() KlinesService
	NewGetAccountService() GetAccountService
	NewCreateOrderService() CreateOrderService
	NewExchangeInfoService() ExchangeInfoService
}

// lotSize is a symbol's LOT_SIZE filter.
type lotSize struct {
	step   decimal.Decimal
	minQty decimal.Decimal
}

type Options struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Timeout   time.Duration
	Limiter   *WeightLimiter
}

// BinanceClient fetches candles and balances and places market orders on
// Binance spot. Every call is rate limited and bounded by Timeout.
type BinanceClient struct {
	tracer   trace.Tracer
	log      *zap.Logger
	api      API
	limiter  *WeightLimiter
	timeout  time.Duration
	hasCreds bool

	lotMu sync.Mutex
	lots  map[string]lotSize
}

func NewBinanceClient(tracer trace.Tracer, log *zap.Logger, opts Options) *BinanceClient {
	client := binance.NewClient(opts.APIKey, opts.APISecret)
	if opts.Testnet {
		client.BaseURL = testnetBaseURL
	}
	return newBinanceClientWithAPI(tracer, log, &realAPI{client: client}, opts)
}

func newBinanceClientWithAPI(tracer trace.Tracer, log *zap.Logger, api API, opts Options) *BinanceClient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Limiter == nil {
		opts.Limiter = NewWeightLimiter(1200, time.Minute)
	}
	return &BinanceClient{
		tracer:   tracer,
		log:      logger.OrNop(log).Named("exchange"),
		api:      api,
		limiter:  opts.Limiter,
		timeout:  opts.Timeout,
		hasCreds: opts.APIKey != "" && opts.APISecret != "",
		lots:     make(map[string]lotSize),
	}
}

// HasCredentials reports whether signed endpoints are usable.
func (c *BinanceClient) HasCredentials() bool {
	return c.hasCreds
}

// FetchCandles returns up to limit candles for pair ("BTC/USDT"), oldest first.
// Kline data is public and works without credentials.
func (c *BinanceClient) FetchCandles(ctx context.Context, pair, interval string, limit int) ([]*domain.Candle, error) {
	ctx, span := c.tracer.Start(ctx, "exchange.fetch-candles")
	defer span.End()
	symbol := domain.ExchangeSymbol(pair)
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("interval", interval), attribute.Int("limit", limit))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.limiter.Wait(ctx, klinesWeight); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCodeExchange, err, "rate limit wait for %s", symbol)
	}

	klines, err := c.api.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrapf(apperrors.ErrCodeExchange, err, "fetch klines %s %s", symbol, interval)
	}

	candles := make([]*domain.Candle, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		candle, err := klineToCandle(pair, interval, k)
		if err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrCodeExchange, err, "parse kline %s", symbol)
		}
		candles = append(candles, candle)
	}
	span.SetAttributes(attribute.Int("candles", len(candles)))
	return candles, nil
}

// FetchBalances returns assets with a non-zero total.
func (c *BinanceClient) FetchBalances(ctx context.Context) ([]domain.Balance, error) {
	if !c.hasCreds {
		return nil, apperrors.New(apperrors.ErrCodeExchangeNotReady, "exchange credentials not configured")
	}
	ctx, span := c.tracer.Start(ctx, "exchange.fetch-balances")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.limiter.Wait(ctx, accountWeight); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeExchange, "rate limit wait for account", err)
	}

	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(apperrors.ErrCodeExchange, "fetch account", err)
	}

	balances := make([]domain.Balance, 0, len(account.Balances))
	for _, b := range account.Balances {
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			c.log.Warn("unparseable free balance", zap.String("asset", b.Asset), zap.String("value", b.Free))
			continue
		}
		locked, err := strconv.ParseFloat(b.Locked, 64)
		if err != nil {
			c.log.Warn("unparseable locked balance", zap.String("asset", b.Asset), zap.String("value", b.Locked))
			continue
		}
		bal := domain.Balance{Asset: strings.ToUpper(b.Asset), Free: free, Locked: locked}
		if bal.Total() > 0 {
			balances = append(balances, bal)
		}
	}
	span.SetAttributes(attribute.Int("assets", len(balances)))
	return balances, nil
}

// PlaceMarketOrder submits a market order for qty units of the pair's base asset.
func (c *BinanceClient) PlaceMarketOrder(ctx context.Context, pair string, side domain.OrderSide, qty decimal.Decimal, clientOrderID string) (*domain.OrderReceipt, error) {
	if !c.hasCreds {
		return nil, apperrors.New(apperrors.ErrCodeExchangeNotReady, "exchange credentials not configured")
	}
	ctx, span := c.tracer.Start(ctx, "exchange.place-market-order")
	defer span.End()
	symbol := domain.ExchangeSymbol(pair)
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("side", string(side)),
		attribute.String("quantity", qty.String()),
	)

	if !qty.IsPositive() {
		return nil, apperrors.Newf(apperrors.ErrCodeOrderFailed, "quantity must be positive, got %s", qty)
	}
	binanceSide, err := toBinanceSide(side)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	lot, err := c.lotSize(ctx, symbol)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	qty = lot.floor(qty)
	if !qty.IsPositive() || qty.LessThan(lot.minQty) {
		return nil, apperrors.Newf(apperrors.ErrCodeOrderFailed,
			"quantity %s below %s minimum %s (step %s)", qty, symbol, lot.minQty, lot.step)
	}
	span.SetAttributes(attribute.String("quantity.rounded", qty.String()))

	if err := c.limiter.Wait(ctx, orderWeight); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeExchange, "rate limit wait for order", err)
	}
	svc := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(binanceSide).
		Type(binance.OrderTypeMarket).
		Quantity(qty.String())
	if clientOrderID != "" {
		svc = svc.NewClientOrderID(clientOrderID)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrapf(apperrors.ErrCodeOrderFailed, err, "market %s %s", side, symbol)
	}

	filled := qty
	if resp.ExecutedQuantity != "" {
		if v, err := decimal.NewFromString(resp.ExecutedQuantity); err == nil && v.IsPositive() {
			filled = v
		}
	}
	qf, _ := filled.Float64()
	return &domain.OrderReceipt{
		OrderID:  strconv.FormatInt(resp.OrderID, 10),
		Symbol:   pair,
		Side:     side,
		Quantity: qf,
		Status:   string(resp.Status),
	}, nil
}

// lotSize returns the symbol's LOT_SIZE filter, fetching exchange info once
// per symbol.
func (c *BinanceClient) lotSize(ctx context.Context, symbol string) (lotSize, error) {
	c.lotMu.Lock()
	lot, ok := c.lots[symbol]
	c.lotMu.Unlock()
	if ok {
		return lot, nil
	}

	if err := c.limiter.Wait(ctx, exchangeInfoWeight); err != nil {
		return lotSize{}, apperrors.Wrap(apperrors.ErrCodeExchange, "rate limit wait for exchange info", err)
	}
	info, err := c.api.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return lotSize{}, apperrors.Wrapf(apperrors.ErrCodeExchange, err, "exchange info %s", symbol)
	}
	lot, err = lotSizeFromInfo(info, symbol)
	if err != nil {
		return lotSize{}, err
	}

	c.lotMu.Lock()
	c.lots[symbol] = lot
	c.lotMu.Unlock()
	return lot, nil
}

func lotSizeFromInfo(info *binance.ExchangeInfo, symbol string) (lotSize, error) {
	if info != nil {
		for i := range info.Symbols {
			sym := &info.Symbols[i]
			if sym.Symbol != symbol {
				continue
			}
			f := sym.LotSizeFilter()
			if f == nil {
				break
			}
			step, err := decimal.NewFromString(f.StepSize)
			if err != nil || !step.IsPositive() {
				return lotSize{}, apperrors.Newf(apperrors.ErrCodeExchange, "invalid LOT_SIZE step %q for %s", f.StepSize, symbol)
			}
			minQty, err := decimal.NewFromString(f.MinQuantity)
			if err != nil {
				minQty = decimal.Zero
			}
			return lotSize{step: step, minQty: minQty}, nil
		}
	}
	return lotSize{}, apperrors.Newf(apperrors.ErrCodeUnknownSymbol, "no LOT_SIZE filter for %s", symbol)
}

// floor truncates qty down to a whole number of steps.
func (l lotSize) floor(qty decimal.Decimal) decimal.Decimal {
	return qty.Div(l.step).Floor().Mul(l.step)
}

func toBinanceSide(side domain.OrderSide) (binance.SideType, error) {
	switch side {
	case domain.SideBuy:
		return binance.SideTypeBuy, nil
	case domain.SideSell:
		return binance.SideTypeSell, nil
	default:
		return "", apperrors.Newf(apperrors.ErrCodeOrderFailed, "unsupported order side %q", side)
	}
}

func klineToCandle(pair, interval string, k *binance.Kline) (*domain.Candle, error) {
	values := make([]float64, 5)
	for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d %q: %w", i, raw, err)
		}
		values[i] = v
	}
	return &domain.Candle{
		Symbol:   pair,
		Interval: interval,
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
	}, nil
}

// realAPI adapts *binance.Client to API.
type realAPI struct {
	client *binance.Client
}

func (r *realAPI) NewKlinesService() KlinesService {
	return &realKlinesService{service: r.client.NewKlinesService()}
}

func (r *realAPI) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

func (r *realAPI) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realAPI) NewExchangeInfoService() ExchangeInfoService {
	return &realExchangeInfoService{service: r.client.NewExchangeInfoService()}
}

type realKlinesService struct {
	service *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service = s.service.Symbol(symbol)
	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service = s.service.Interval(interval)
	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.service = s.service.Limit(limit)
	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)
	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)
	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)
	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)
	return s
}

func (s *realCreateOrderService) NewClientOrderID(id string) CreateOrderService {
	s.service = s.service.NewClientOrderID(id)
	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realExchangeInfoService struct {
	service *binance.ExchangeInfoService
}

func (s *realExchangeInfoService) Symbol(symbol string) ExchangeInfoService {
	s.service = s.service.Symbol(symbol)
	return s
}

func (s *realExchangeInfoService) Do(ctx context.Context) (*binance.ExchangeInfo, error) {
	return s.service.Do(ctx)
}

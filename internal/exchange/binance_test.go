package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"signal-scanner/internal/domain"
	apperrors "signal-scanner/pkg/errors"
)

type fakeAPI struct {
	klines *fakeKlinesService
	acct   *fakeAccountService
	order  *fakeOrderService
	info   *fakeExchangeInfoService
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		klines: &fakeKlinesService{},
		acct:   &fakeAccountService{},
		order:  &fakeOrderService{},
		info:   &fakeExchangeInfoService{info: lotSizeInfo("BTCUSDT", "0.00001000", "0.00001000")},
	}
}

func (f *fakeAPI) NewExchangeInfoService() ExchangeInfoService { return f.info }

func (f *fakeAPI) NewKlinesService() KlinesService         { return f.klines }
func (f *fakeAPI) NewGetAccountService() GetAccountService { return f.acct }
func (f *fakeAPI) NewCreateOrderService() CreateOrderService {
	return f.order
}

type fakeKlinesService struct {
	symbol, interval string
	limit            int
	klines           []*binance.Kline
	err              error
	block            bool
}

func (s *fakeKlinesService) Symbol(v string) KlinesService   { s.symbol = v; return s }
func (s *fakeKlinesService) Interval(v string) KlinesService { s.interval = v; return s }
func (s *fakeKlinesService) Limit(v int) KlinesService       { s.limit = v; return s }
func (s *fakeKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.klines, s.err
}

type fakeAccountService struct {
	account *binance.Account
	err     error
}

func (s *fakeAccountService) Do(context.Context) (*binance.Account, error) { return s.account, s.err }

type fakeOrderService struct {
	symbol, quantity, clientID string
	side                       binance.SideType
	orderType                  binance.OrderType
	resp                       *binance.CreateOrderResponse
	err                        error
}

func (s *fakeOrderService) Symbol(v string) CreateOrderService { s.symbol = v; return s }
func (s *fakeOrderService) Side(v binance.SideType) CreateOrderService {
	s.side = v
	return s
}
func (s *fakeOrderService) Type(v binance.OrderType) CreateOrderService {
	s.orderType = v
	return s
}
func (s *fakeOrderService) Quantity(v string) CreateOrderService { s.quantity = v; return s }
func (s *fakeOrderService) NewClientOrderID(v string) CreateOrderService {
	s.clientID = v
	return s
}
func (s *fakeOrderService) Do(context.Context) (*binance.CreateOrderResponse, error) {
	return s.resp, s.err
}

type fakeExchangeInfoService struct {
	symbol string
	calls  int
	info   *binance.ExchangeInfo
	err    error
}

func (s *fakeExchangeInfoService) Symbol(v string) ExchangeInfoService { s.symbol = v; return s }
func (s *fakeExchangeInfoService) Do(context.Context) (*binance.ExchangeInfo, error) {
	s.calls++
	return s.info, s.err
}

func lotSizeInfo(symbol, minQty, step string) *binance.ExchangeInfo {
	return &binance.ExchangeInfo{Symbols: []binance.Symbol{{
		Symbol: symbol,
		Filters: []map[string]interface{}{
			{"filterType": "PRICE_FILTER", "tickSize": "0.01000000"},
			{"filterType": "LOT_SIZE", "minQty": minQty, "maxQty": "9000.00000000", "stepSize": step},
		},
	}}}
}

func newTestClient(api API, withCreds bool) *BinanceClient {
	opts := Options{Timeout: time.Second}
	if withCreds {
		opts.APIKey, opts.APISecret = "key", "secret"
	}
	return newBinanceClientWithAPI(trace.NewNoopTracerProvider().Tracer("test"), nil, api, opts)
}

func TestFetchCandlesConvertsKlines(t *testing.T) {
	api := newFakeAPI()
	api.klines.klines = []*binance.Kline{
		{OpenTime: 1700000000000, Open: "100.5", High: "101", Low: "99.5", Close: "100.8", Volume: "12.25"},
		nil,
		{OpenTime: 1700003600000, Open: "100.8", High: "102", Low: "100", Close: "101.9", Volume: "8"},
	}
	client := newTestClient(api, false)

	candles, err := client.FetchCandles(context.Background(), "btc/usdt", "1h", 100)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, "BTCUSDT", api.klines.symbol)
	assert.Equal(t, "1h", api.klines.interval)
	assert.Equal(t, 100, api.klines.limit)
	assert.Equal(t, "btc/usdt", candles[0].Symbol)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), candles[0].OpenTime)
	assert.Equal(t, 100.8, candles[0].Close)
	assert.Equal(t, 12.25, candles[0].Volume)
	assert.Equal(t, 101.9, candles[1].Close)
}

func TestFetchCandlesErrors(t *testing.T) {
	api := newFakeAPI()
	api.klines.err = errors.New("503")
	client := newTestClient(api, false)

	_, err := client.FetchCandles(context.Background(), "BTC/USDT", "1h", 100)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExchange))

	api.klines.err = nil
	api.klines.klines = []*binance.Kline{{Open: "x", High: "1", Low: "1", Close: "1", Volume: "1"}}
	_, err = client.FetchCandles(context.Background(), "BTC/USDT", "1h", 100)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExchange))
}

func TestFetchCandlesHonorsTimeout(t *testing.T) {
	api := newFakeAPI()
	api.klines.block = true
	client := newBinanceClientWithAPI(trace.NewNoopTracerProvider().Tracer("test"), nil, api, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := client.FetchCandles(context.Background(), "BTC/USDT", "1h", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchBalancesFiltersZero(t *testing.T) {
	api := newFakeAPI()
	api.acct.account = &binance.Account{
		Balances: []binance.Balance{
			{Asset: "BTC", Free: "1.5", Locked: "0.5"},
			{Asset: "usdt", Free: "250.75", Locked: "0"},
			{Asset: "ETH", Free: "0", Locked: "0"},
			{Asset: "BAD", Free: "n/a", Locked: "0"},
		},
	}
	client := newTestClient(api, true)

	balances, err := client.FetchBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, domain.Balance{Asset: "BTC", Free: 1.5, Locked: 0.5}, balances[0])
	assert.Equal(t, "USDT", balances[1].Asset)
	assert.Equal(t, 2.0, balances[0].Total())
}

func TestSignedCallsRequireCredentials(t *testing.T) {
	client := newTestClient(newFakeAPI(), false)
	assert.False(t, client.HasCredentials())

	_, err := client.FetchBalances(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExchangeNotReady))

	_, err = client.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.SideBuy, decimal.NewFromFloat(0.1), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExchangeNotReady))
}

func TestPlaceMarketOrder(t *testing.T) {
	api := newFakeAPI()
	api.order.resp = &binance.CreateOrderResponse{
		OrderID:          12345,
		Symbol:           "BTCUSDT",
		Status:           binance.OrderStatusTypeFilled,
		ExecutedQuantity: "0.00150000",
	}
	client := newTestClient(api, true)

	receipt, err := client.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.SideBuy, decimal.RequireFromString("0.0015"), "abc-123")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", api.order.symbol)
	assert.Equal(t, binance.SideTypeBuy, api.order.side)
	assert.Equal(t, binance.OrderTypeMarket, api.order.orderType)
	assert.Equal(t, "0.0015", api.order.quantity)
	assert.Equal(t, "abc-123", api.order.clientID)

	assert.Equal(t, "12345", receipt.OrderID)
	assert.Equal(t, "BTC/USDT", receipt.Symbol)
	assert.Equal(t, domain.SideBuy, receipt.Side)
	assert.Equal(t, 0.0015, receipt.Quantity)
	assert.Equal(t, "FILLED", receipt.Status)
}

func TestPlaceMarketOrderRejects(t *testing.T) {
	api := newFakeAPI()
	api.order.err = errors.New("insufficient balance")
	client := newTestClient(api, true)

	_, err := client.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.SideSell, decimal.NewFromInt(1), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeOrderFailed))

	_, err = client.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.SideBuy, decimal.Zero, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeOrderFailed))

	_, err = client.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.OrderSide("hold"), decimal.NewFromInt(1), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeOrderFailed))
}

func TestPlaceMarketOrderFloorsToLotStep(t *testing.T) {
	api := newFakeAPI()
	api.order.resp = &binance.CreateOrderResponse{OrderID: 1, Status: binance.OrderStatusTypeFilled}
	client := newTestClient(api, true)

	receipt, err := client.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.SideBuy, decimal.RequireFromString("0.00156789"), "")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", api.info.symbol)
	assert.Equal(t, "0.00156", api.order.quantity)
	assert.InDelta(t, 0.00156, receipt.Quantity, 1e-12)

	_, err = client.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.SideBuy, decimal.RequireFromString("0.002"), "")
	require.NoError(t, err)
	assert.Equal(t, 1, api.info.calls, "lot size is cached per symbol")
}

func TestPlaceMarketOrderBelowLotMinimum(t *testing.T) {
	api := newFakeAPI()
	api.info.info = lotSizeInfo("ETHUSDT", "0.01000000", "0.00010000")
	client := newTestClient(api, true)

	_, err := client.PlaceMarketOrder(context.Background(), "ETH/USDT", domain.SideBuy, decimal.RequireFromString("0.00999"), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeOrderFailed))
	assert.Empty(t, api.order.symbol, "no order sent")
}

func TestPlaceMarketOrderExchangeInfoErrors(t *testing.T) {
	api := newFakeAPI()
	api.info.err = errors.New("exchange info down")
	client := newTestClient(api, true)

	_, err := client.PlaceMarketOrder(context.Background(), "BTC/USDT", domain.SideBuy, decimal.RequireFromString("0.01"), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeExchange))

	api.info.err = nil
	_, err = client.PlaceMarketOrder(context.Background(), "SOL/USDT", domain.SideBuy, decimal.RequireFromString("1"), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnknownSymbol))
	assert.Empty(t, api.order.symbol)
}

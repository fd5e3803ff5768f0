package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"signal-scanner/internal/domain"
	"signal-scanner/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultCandleCacheTTL = 60 * time.Second

// CandleFetcher loads candles from the exchange.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, pair, interval string, limit int) ([]*domain.Candle, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// CandleService puts a short-lived Redis cache in front of the exchange so
// repeated analyze commands and the scan loop share one fetch per TTL.
type CandleService struct {
	tracer  trace.Tracer
	log     *zap.Logger
	fetcher CandleFetcher
	redis   RedisClient
	ttl     time.Duration
}

func NewCandleService(tracer trace.Tracer, log *zap.Logger, fetcher CandleFetcher, redisClient RedisClient, ttl time.Duration) *CandleService {
	if ttl <= 0 {
		ttl = DefaultCandleCacheTTL
	}
	return &CandleService{
		tracer:  tracer,
		log:     logger.OrNop(log).Named("candles"),
		fetcher: fetcher,
		redis:   redisClient,
		ttl:     ttl,
	}
}

// FetchCandles returns cached candles when present, otherwise fetches and
// caches them. Cache failures are logged and never fail the call.
func (s *CandleService) FetchCandles(ctx context.Context, pair, interval string, limit int) ([]*domain.Candle, error) {
	ctx, span := s.tracer.Start(ctx, "candle-service.fetch-candles")
	defer span.End()
	span.SetAttributes(attribute.String("pair", pair), attribute.String("interval", interval))

	key := candleKey(pair, interval, limit)
	if s.redis != nil {
		cached, err := s.getCache(ctx, key)
		if err != nil {
			s.log.Warn("redis cache read error", zap.String("key", key), zap.Error(err))
		}
		if cached != nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached, nil
		}
	}

	candles, err := s.fetcher.FetchCandles(ctx, pair, interval, limit)
	if err != nil {
		return nil, err
	}
	if s.redis != nil && len(candles) > 0 {
		if err := s.setCache(ctx, key, candles); err != nil {
			s.log.Warn("redis cache write error", zap.String("key", key), zap.Error(err))
		}
	}
	return candles, nil
}

func candleKey(pair, interval string, limit int) string {
	return fmt.Sprintf("candles:%s:%s:%d", domain.ExchangeSymbol(pair), strings.ToLower(interval), limit)
}

func (s *CandleService) setCache(ctx context.Context, key string, candles []*domain.Candle) error {
	data, err := json.Marshal(candles)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, s.ttl).Err()
}

func (s *CandleService) getCache(ctx context.Context, key string) ([]*domain.Candle, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var candles []*domain.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"signal-scanner/internal/advisor"
	"signal-scanner/internal/bot"
	"signal-scanner/internal/cache"
	"signal-scanner/internal/command"
	"signal-scanner/internal/config"
	"signal-scanner/internal/db"
	"signal-scanner/internal/exchange"
	"signal-scanner/internal/handler"
	"signal-scanner/internal/logbuf"
	"signal-scanner/internal/logger"
	"signal-scanner/internal/mcpserver"
	"signal-scanner/internal/repository"
	"signal-scanner/internal/scanner"
	"signal-scanner/internal/service"
	scoring "signal-scanner/internal/signal"
	"signal-scanner/internal/sizing"
	"signal-scanner/pkg/tracing"

	_ "signal-scanner/docs"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	loadEnvFunc     = godotenv.Load
	newLoggerFunc   = logger.New
	loadConfigFunc  = config.Load
	initTracerFunc  = tracing.InitTracer
	connectDBFunc   = db.Connect
	migrateFunc     = migrateUp
	initRedisFunc   = cache.InitRedis
	newExchangeFunc = func(tracer trace.Tracer, log *zap.Logger, opts exchange.Options) scanner.Exchange {
		return exchange.NewBinanceClient(tracer, log, opts)
	}
	newLLMClientFunc  = advisor.NewOpenAIClient
	newTelegramBot    = bot.New
	newRouterFunc     = gin.New
	setupSignalNotify = signal.Notify
	waitForShutdown   = func(ctx context.Context, quit <-chan os.Signal) {
		select {
		case <-quit:
		case <-ctx.Done():
		}
	}
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Signal Scanner API
// @version         2.0
// @description     Operator API for the market-signal scan loop.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  AdminToken
// @in                          header
// @name                        X-Admin-Token
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "signal-scanner: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = loadEnvFunc()

	log, err := newLoggerFunc(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	cfg := loadConfigFunc(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, cfg.TracingEnabled, handler.Version)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := tp.Shutdown(sctx); err != nil {
			log.Warn("error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Trade journal (optional)
	var (
		journal scanner.TradeJournal
		history handler.TradeHistory
	)
	pool, err := connectDBFunc(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn("postgres unavailable, trade journal disabled", zap.Error(err))
	}
	if pool != nil {
		defer pool.Close()
		if err := migrateFunc(ctx, log, pool); err != nil {
			return err
		}
		repo := repository.NewTradeRepository(pool, tracer)
		journal, history = repo, repo
	}

	// Candle cache (optional)
	var candleCache service.RedisClient
	rc, err := initRedisFunc(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, candle cache disabled", zap.Error(err))
	}
	if rc != nil {
		defer rc.Close()
		candleCache = rc
	}

	limiter := exchange.NewWeightLimiter(1200, time.Minute)
	exchangeOpts := func(key, secret string) exchange.Options {
		return exchange.Options{APIKey: key, APISecret: secret, Testnet: cfg.BinanceTestnet, Limiter: limiter}
	}
	// Klines are public, so one unsigned client feeds the cache for every
	// credential set.
	public := newExchangeFunc(tracer, log, exchangeOpts("", ""))
	candles := service.NewCandleService(tracer, log, public, candleCache, time.Duration(cfg.CandleCacheSecs)*time.Second)

	rationale := advisor.NewRationaleService(tracer, log, newLLMClientFunc(cfg.OpenAIAPIKey), cfg.OpenAIModel, advisor.DefaultTimeout)

	logs := logbuf.New(logbuf.DefaultCapacity)
	sup, err := scanner.New(cfg.TradingConfig(), scanner.Options{
		Interval:         cfg.CandleInterval,
		CandleLimit:      cfg.CandleLimit,
		MinHistory:       cfg.MinHistory,
		SimulatedBalance: cfg.SimulatedBalance,
		Timing: scanner.Timing{
			SymbolDelay:  cfg.SymbolDelay,
			CycleDelay:   cfg.ScanInterval,
			ErrorBackoff: cfg.ErrorBackoff,
		},
	}, scanner.Deps{
		Tracer: tracer,
		Log:    log,
		NewExchange: func(key, secret string) scanner.Exchange {
			return newExchangeFunc(tracer, log, exchangeOpts(key, secret))
		},
		Candles:   candles,
		Scorer:    scoring.NewScorer(cfg.Thresholds()),
		Sizer:     sizing.NewSizer(cfg.MinBalance),
		Rationale: rationale,
		Journal:   journal,
		Logs:      logs,
	})
	if err != nil {
		return fmt.Errorf("init scanner: %w", err)
	}
	router := command.NewRouter(tracer, log, sup, logs)

	// HTTP operator API
	h := handler.New(tracer, sup, router, history)
	r := newRouterFunc()
	r.Use(gin.Recovery(), otelgin.Middleware(tracing.ServiceName))
	h.RegisterRoutes(r, cfg.AdminToken)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	servers := []*http.Server{{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}}

	if cfg.MCPHTTPEnabled {
		ms := mcpserver.NewServer(tracer, log, sup, router, mcpserver.Options{
			Version: handler.Version,
			Timeout: time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
		})
		servers = append(servers, &http.Server{
			Addr:              net.JoinHostPort(cfg.MCPHTTPBind, strconv.Itoa(cfg.MCPHTTPPort)),
			Handler:           mcpserver.HTTPHandler(ms, cfg.MCPAuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	tg, err := newTelegramBot(cfg.TelegramBotToken, cfg.TelegramAllowedChats, router, log)
	if err != nil {
		log.Warn("telegram bot disabled", zap.Error(err))
	}
	tg.Start()
	defer tg.Stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("listening", zap.String("addr", srv.Addr))
			if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForShutdown(gctx, quit)
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	sup.Stop()
	if err := sup.Wait(shutdownCtx); err != nil {
		log.Warn("scan loop did not stop in time", zap.Error(err))
	}
	for _, srv := range servers {
		if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
			log.Warn("server forced to shutdown", zap.String("addr", srv.Addr), zap.Error(err))
		}
	}
	cancel()

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server exiting")
	return nil
}

func migrateUp(ctx context.Context, log *zap.Logger, pool *pgxpool.Pool) error {
	migrations, err := db.Migrations()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	applied, err := db.Up(ctx, pool, migrations)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("migrations applied", zap.Int("count", applied))
	return nil
}

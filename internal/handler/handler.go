package handler

import (
	"context"
	"net/http"
	"time"

	"signal-scanner/internal/domain"
	apperrors "signal-scanner/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// Version is reported by /health.
const Version = "2.0"

const (
	homeLogLimit      = 20
	defaultLogLimit   = 50
	defaultTradeLimit = 50
	maxListLimit      = 500
)

// Scanner is the operator surface of the scan loop.
type Scanner interface {
	Start() bool
	Stop() bool
	Status() domain.RunState
	Analyze(ctx context.Context, pair string) (domain.Analysis, error)
	GetBalance(ctx context.Context) ([]domain.Balance, error)
	UpdateConfig(updates map[string]any) error
	Config() domain.TradingConfig
	GetLogs(limit int) []domain.LogEntry
	ClearLogs()
	Trades() []domain.TradeRecord
}

type CommandProcessor interface {
	Process(ctx context.Context, text string) string
}

// TradeHistory is the persistent trade journal. When nil, /trades serves the
// in-memory records of the running process.
type TradeHistory interface {
	RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error)
}

type Handler struct {
	tracer   trace.Tracer
	scanner  Scanner
	commands CommandProcessor
	history  TradeHistory
	now      func() time.Time
}

func New(tracer trace.Tracer, scanner Scanner, commands CommandProcessor, history TradeHistory) *Handler {
	return &Handler{
		tracer:   tracer,
		scanner:  scanner,
		commands: commands,
		history:  history,
		now:      time.Now,
	}
}

// RegisterRoutes mounts the operator API. Routes that trade, move money or
// expose account data require the admin token when one is configured.
func (h *Handler) RegisterRoutes(r *gin.Engine, adminToken string) {
	r.GET("/", h.Home)
	r.GET("/health", h.Health)
	r.GET("/status", h.GetStatus)
	r.GET("/logs", h.GetLogs)
	r.GET("/trades", h.GetTrades)
	r.GET("/analyze/:symbol", h.Analyze)

	admin := r.Group("/", AdminAuth(adminToken))
	admin.POST("/start", h.Start)
	admin.POST("/stop", h.Stop)
	admin.GET("/balance", h.GetBalance)
	admin.POST("/command", h.Command)
	admin.GET("/config", h.GetConfig)
	admin.POST("/config", h.UpdateConfig)
	admin.POST("/logs/clear", h.ClearLogs)
}

// statusFor maps error codes to HTTP status codes.
func statusFor(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeConfigValidation, apperrors.ErrCodeUnknownSymbol, apperrors.ErrCodeInvalidRisk:
		return http.StatusBadRequest
	case apperrors.ErrCodeInsufficientHistory:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeExchangeNotReady:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeExchange:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

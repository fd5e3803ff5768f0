package handler

import (
	"net/http"
	"strconv"
	"strings"

	"signal-scanner/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// Home godoc
// @Summary      Scan loop state with the most recent log entries
// @Tags         scanner
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       / [get]
func (h *Handler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": h.scanner.Status(),
		"logs":   h.scanner.GetLogs(homeLogLimit),
	})
}

// GetStatus godoc
// @Summary      Scan loop state
// @Tags         scanner
// @Produce      json
// @Success      200  {object}  domain.RunState
// @Router       /status [get]
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scanner.Status())
}

// Start godoc
// @Summary      Start the scan loop
// @Tags         scanner
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Security     AdminToken
// @Router       /start [post]
func (h *Handler) Start(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.start")
	defer span.End()

	if h.scanner.Start() {
		c.JSON(http.StatusOK, gin.H{"started": true, "message": "auto trading started"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": false, "message": "auto trading already running"})
}

// Stop godoc
// @Summary      Stop the scan loop
// @Tags         scanner
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Security     AdminToken
// @Router       /stop [post]
func (h *Handler) Stop(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.stop")
	defer span.End()

	stopped := h.scanner.Stop()
	c.JSON(http.StatusOK, gin.H{"stopped": stopped, "message": "auto trading stopped"})
}

// GetBalance godoc
// @Summary      Exchange balances
// @Tags         scanner
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Security     AdminToken
// @Router       /balance [get]
func (h *Handler) GetBalance(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-balance")
	defer span.End()

	balances, err := h.scanner.GetBalance(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

// Analyze godoc
// @Summary      Score one pair on demand
// @Description  Builds the indicator snapshot and signal for a pair. Never places an order.
// @Tags         scanner
// @Produce      json
// @Param        symbol  path  string  true  "Base asset or BASE-QUOTE pair (e.g., btc, ETH-USDT)"
// @Success      200  {object}  domain.Analysis
// @Failure      422  {object}  map[string]string
// @Router       /analyze/{symbol} [get]
func (h *Handler) Analyze(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.analyze")
	defer span.End()

	// Path params cannot carry a slash, so BASE-QUOTE is accepted too.
	pair := strings.ReplaceAll(c.Param("symbol"), "-", "/")
	span.SetAttributes(attribute.String("symbol", pair))

	analysis, err := h.scanner.Analyze(ctx, pair)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// commandRequest carries free text. An empty command is passed through and
// answered by the router like any other unmatched input.
type commandRequest struct {
	Command string `json:"command"`
}

// Command godoc
// @Summary      Run a free-text operator command
// @Tags         scanner
// @Accept       json
// @Produce      json
// @Param        request  body  commandRequest  true  "Free-text command"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Security     AdminToken
// @Router       /command [post]
func (h *Handler) Command(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.command")
	defer span.End()

	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"command\": \"...\"}"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": h.commands.Process(ctx, req.Command)})
}

// GetConfig godoc
// @Summary      Current trading config with credentials masked
// @Tags         config
// @Produce      json
// @Success      200  {object}  domain.TradingConfig
// @Security     AdminToken
// @Router       /config [get]
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.scanner.Config())
}

// UpdateConfig godoc
// @Summary      Partially update the trading config
// @Description  The update is applied atomically. Any invalid key rejects the whole update.
// @Tags         config
// @Accept       json
// @Produce      json
// @Success      200  {object}  domain.TradingConfig
// @Failure      400  {object}  map[string]string
// @Security     AdminToken
// @Router       /config [post]
func (h *Handler) UpdateConfig(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.update-config")
	defer span.End()

	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
		return
	}
	if err := h.scanner.UpdateConfig(updates); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.scanner.Config())
}

// GetLogs godoc
// @Summary      Recent operator log entries, newest first
// @Tags         logs
// @Produce      json
// @Param        limit  query  int  false  "Number of entries (default 50)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Router       /logs [get]
func (h *Handler) GetLogs(c *gin.Context) {
	limit, ok := parseLimit(c, defaultLogLimit)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": h.scanner.GetLogs(limit)})
}

// ClearLogs godoc
// @Summary      Clear the operator log
// @Tags         logs
// @Produce      json
// @Success      200  {object}  map[string]string
// @Security     AdminToken
// @Router       /logs/clear [post]
func (h *Handler) ClearLogs(c *gin.Context) {
	h.scanner.ClearLogs()
	c.JSON(http.StatusOK, gin.H{"message": "logs cleared"})
}

// GetTrades godoc
// @Summary      Recent trades, simulated and live
// @Tags         trades
// @Produce      json
// @Param        limit  query  int  false  "Number of trades (default 50, max 500)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Router       /trades [get]
func (h *Handler) GetTrades(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-trades")
	defer span.End()

	limit, ok := parseLimit(c, defaultTradeLimit)
	if !ok {
		return
	}

	if h.history != nil {
		trades, err := h.history.RecentTrades(ctx, limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"trades": trades, "source": "journal"})
		return
	}

	trades := h.scanner.Trades()
	// newest first, like the journal
	out := make([]domain.TradeRecord, 0, limit)
	for i := len(trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, trades[i])
	}
	c.JSON(http.StatusOK, gin.H{"trades": out, "source": "memory"})
}

func parseLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}

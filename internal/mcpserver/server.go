package mcpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"signal-scanner/internal/command"
	"signal-scanner/internal/domain"
	"signal-scanner/internal/logger"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultLogLimit = 20
	maxLogLimit     = 100
)

// Operator is the read side of the scanner plus on-demand analysis.
type Operator interface {
	Status() domain.RunState
	Analyze(ctx context.Context, pair string) (domain.Analysis, error)
	GetLogs(limit int) []domain.LogEntry
}

type CommandProcessor interface {
	Process(ctx context.Context, text string) string
}

type Options struct {
	Version string
	Timeout time.Duration
}

type AnalyzeInput struct {
	Symbol string `json:"symbol" jsonschema:"base asset or pair, e.g. btc or ETH/USDT"`
}

type AnalyzeOutput struct {
	Symbol     string   `json:"symbol"`
	Price      float64  `json:"price"`
	RSI        float64  `json:"rsi"`
	MACD       float64  `json:"macd"`
	MACDSignal float64  `json:"macd_signal"`
	Signal     string   `json:"signal"`
	Confidence string   `json:"confidence"`
	Strength   int      `json:"strength"`
	SellFlag   bool     `json:"sell_flag"`
	Reasons    []string `json:"reasons,omitempty"`
	Rationale  string   `json:"rationale,omitempty"`
}

type StatusInput struct{}

type StatusOutput struct {
	Running     bool     `json:"running"`
	StartedAt   string   `json:"started_at,omitempty"`
	Cycles      int      `json:"cycles"`
	LastCycleAt string   `json:"last_cycle_at,omitempty"`
	AutoExecute bool     `json:"auto_execute"`
	AIEnabled   bool     `json:"ai_enabled"`
	Pairs       []string `json:"trading_pairs,omitempty"`
}

type CommandInput struct {
	Text string `json:"text" jsonschema:"free-text operator command, e.g. analyze btc or status"`
}

type CommandOutput struct {
	Response string `json:"response"`
}

type LogsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of entries, newest first (default 20, max 100)"`
}

type LogLine struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

type LogsOutput struct {
	Logs []LogLine `json:"logs,omitempty"`
}

type tools struct {
	tracer   trace.Tracer
	log      *zap.Logger
	op       Operator
	commands CommandProcessor
	timeout  time.Duration
}

// NewServer registers the scanner tools on a new MCP server.
func NewServer(tracer trace.Tracer, log *zap.Logger, op Operator, commands CommandProcessor, opts Options) *mcp.Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	t := &tools{
		tracer:   tracer,
		log:      logger.OrNop(log).Named("mcp"),
		op:       op,
		commands: commands,
		timeout:  opts.Timeout,
	}

	s := mcp.NewServer(&mcp.Implementation{Name: "signal-scanner", Version: opts.Version}, nil)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "analyze",
		Description: "Score one trading pair from live candles: indicators, buy signal strength and optional AI rationale. Never places an order.",
	}, t.analyze)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "status",
		Description: "Report whether the scan loop is running, its cycle count and configured pairs.",
	}, t.status)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "command",
		Description: "Run a free-text operator command such as 'start', 'stop', 'balance' or 'analyze eth'.",
	}, t.command)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "logs",
		Description: "Recent operator log entries, newest first.",
	}, t.logs)
	return s
}

func (t *tools) analyze(ctx context.Context, _ *mcp.CallToolRequest, in AnalyzeInput) (*mcp.CallToolResult, AnalyzeOutput, error) {
	ctx, span := t.tracer.Start(ctx, "mcp.analyze")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", in.Symbol))

	if strings.TrimSpace(in.Symbol) == "" {
		return nil, AnalyzeOutput{}, errors.New("symbol is required")
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	a, err := t.op.Analyze(ctx, in.Symbol)
	if err != nil {
		t.log.Warn("analyze tool failed", zap.String("symbol", in.Symbol), zap.Error(err))
		return nil, AnalyzeOutput{}, err
	}
	out := AnalyzeOutput{
		Symbol:     a.Snapshot.Symbol,
		Price:      a.Snapshot.Price,
		RSI:        a.Snapshot.RSI,
		MACD:       a.Snapshot.MACD,
		MACDSignal: a.Snapshot.MACDSignal,
		Signal:     string(a.Signal.Kind),
		Confidence: string(a.Signal.Confidence),
		Strength:   a.Signal.Strength,
		SellFlag:   a.Signal.SellFlag,
		Reasons:    a.Signal.Reasons,
		Rationale:  a.Rationale,
	}
	return textResult(command.FormatAnalysis(a)), out, nil
}

func (t *tools) status(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	st := t.op.Status()
	out := StatusOutput{
		Running:     st.Running,
		Cycles:      st.Cycles,
		AutoExecute: st.AutoExecute,
		AIEnabled:   st.AIEnabled,
		Pairs:       st.Pairs,
	}
	if st.StartedAt != nil {
		out.StartedAt = st.StartedAt.UTC().Format(time.RFC3339)
	}
	if st.LastCycleAt != nil {
		out.LastCycleAt = st.LastCycleAt.UTC().Format(time.RFC3339)
	}
	return textResult(command.FormatStatus(st)), out, nil
}

func (t *tools) command(ctx context.Context, _ *mcp.CallToolRequest, in CommandInput) (*mcp.CallToolResult, CommandOutput, error) {
	ctx, span := t.tracer.Start(ctx, "mcp.command")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	reply := t.commands.Process(ctx, in.Text)
	return textResult(reply), CommandOutput{Response: reply}, nil
}

func (t *tools) logs(ctx context.Context, _ *mcp.CallToolRequest, in LogsInput) (*mcp.CallToolResult, LogsOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	entries := t.op.GetLogs(limit)
	out := LogsOutput{Logs: make([]LogLine, 0, len(entries))}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		ts := e.Timestamp.UTC().Format(time.RFC3339)
		out.Logs = append(out.Logs, LogLine{Timestamp: ts, Level: string(e.Level), Message: e.Message})
		lines = append(lines, ts+" ["+string(e.Level)+"] "+e.Message)
	}
	text := strings.Join(lines, "\n")
	if text == "" {
		text = "No log entries."
	}
	return textResult(text), out, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// HTTPHandler serves the server over streamable HTTP. A non-empty token is
// required as a Bearer credential.
func HTTPHandler(s *mcp.Server, token string) http.Handler {
	h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s }, nil)
	if token == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

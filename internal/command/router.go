package command

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"signal-scanner/internal/domain"
	"signal-scanner/internal/logbuf"
	"signal-scanner/internal/logger"
	apperrors "signal-scanner/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	replyUnknown   = "Didn't understand that. Try \"analyze btc\", \"start\", \"stop\" or \"balance\"."
	replyNeedPair  = "Please name a symbol, for example \"analyze btc\"."
	replyLogs      = "Use the web view (GET /logs) to see the full log."
	replyStarted   = "Auto trading started."
	replyRunning   = "Auto trading is already running."
	replyStopped   = "Auto trading stopped."
	replyNotActive = "Auto trading is not running."
)

// Operator is the part of the scanner the router drives.
type Operator interface {
	Start() bool
	Stop() bool
	Status() domain.RunState
	Analyze(ctx context.Context, pair string) (domain.Analysis, error)
	GetBalance(ctx context.Context) ([]domain.Balance, error)
	SetAIEnabled(enabled bool) error
	Config() domain.TradingConfig
}

type Router struct {
	tracer trace.Tracer
	log    *zap.Logger
	op     Operator
	logs   *logbuf.Buffer
}

func NewRouter(tracer trace.Tracer, log *zap.Logger, op Operator, logs *logbuf.Buffer) *Router {
	if logs == nil {
		logs = logbuf.New(logbuf.DefaultCapacity)
	}
	return &Router{
		tracer: tracer,
		log:    logger.OrNop(log).Named("command"),
		op:     op,
		logs:   logs,
	}
}

// Process classifies text, runs it and returns the operator-facing reply.
// Both the command and the reply are appended to the log buffer.
func (r *Router) Process(ctx context.Context, text string) (reply string) {
	ctx, span := r.tracer.Start(ctx, "command.process")
	defer span.End()

	text = strings.TrimSpace(text)
	r.logs.Info("command received: " + text)

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("command panic", zap.String("text", text), zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			reply = fmt.Sprintf("Command failed: %v", rec)
			r.logs.Error("command reply: " + reply)
		}
	}()

	cmd := Classify(text, r.op.Config().QuoteAsset)
	span.SetAttributes(attribute.String("intent", string(cmd.Intent)))

	reply = r.dispatch(ctx, cmd)
	r.logs.Info("command reply: " + reply)
	r.log.Info("command processed", zap.String("intent", string(cmd.Intent)), zap.String("pair", cmd.Pair))
	return reply
}

func (r *Router) dispatch(ctx context.Context, cmd Command) string {
	switch cmd.Intent {
	case IntentAnalyze:
		if cmd.Pair == "" {
			return replyNeedPair
		}
		a, err := r.op.Analyze(ctx, cmd.Pair)
		if err != nil {
			return fmt.Sprintf("Cannot analyze %s: %s", cmd.Pair, describe(err))
		}
		return FormatAnalysis(a)
	case IntentStart:
		if r.op.Start() {
			return replyStarted
		}
		return replyRunning
	case IntentStop:
		if r.op.Stop() {
			return replyStopped
		}
		return replyNotActive
	case IntentBalance:
		balances, err := r.op.GetBalance(ctx)
		if err != nil {
			return "Balance unavailable: " + describe(err)
		}
		return FormatBalances(balances)
	case IntentStatus:
		return FormatStatus(r.op.Status())
	case IntentLogs:
		return replyLogs
	case IntentToggleAI:
		enable := !r.op.Config().AIEnabled
		if cmd.Enable != nil {
			enable = *cmd.Enable
		}
		if err := r.op.SetAIEnabled(enable); err != nil {
			return "Could not change AI setting: " + describe(err)
		}
		if enable {
			return "AI rationale enabled."
		}
		return "AI rationale disabled."
	case IntentHelp:
		return helpText
	default:
		return replyUnknown
	}
}

func describe(err error) string {
	if apperrors.HasCode(err, apperrors.ErrCodeExchangeNotReady) {
		return "exchange credentials are not configured"
	}
	return err.Error()
}

const helpText = `Commands:
  analyze <symbol>   score one pair (btc, eth, ada, dot, link, bnb, xrp, sol, doge)
  start / stop       control the scan loop
  balance            exchange balances
  status             loop state
  ai on / ai off     toggle AI rationale
  logs               where to read the log`

func FormatAnalysis(a domain.Analysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s analysis\n", a.Snapshot.Symbol)
	fmt.Fprintf(&sb, "Price: %.6g\n", a.Snapshot.Price)
	fmt.Fprintf(&sb, "RSI: %.1f\n", a.Snapshot.RSI)
	fmt.Fprintf(&sb, "Signal: %s (%s, strength %d/%d)", a.Signal.Kind, a.Signal.Confidence, a.Signal.Strength, domain.MaxSignalStrength)
	if a.Signal.SellFlag {
		sb.WriteString("\nSell condition present")
	}
	if len(a.Signal.Reasons) > 0 {
		sb.WriteString("\nReasons: " + strings.Join(a.Signal.Reasons, "; "))
	}
	if a.Rationale != "" {
		sb.WriteString("\n" + a.Rationale)
	}
	return sb.String()
}

func FormatBalances(balances []domain.Balance) string {
	if len(balances) == 0 {
		return "No balances."
	}
	lines := make([]string, 0, len(balances)+1)
	lines = append(lines, "Balances:")
	for _, b := range balances {
		line := fmt.Sprintf("  %s: %.8g", b.Asset, b.Free)
		if b.Locked > 0 {
			line += fmt.Sprintf(" (locked %.8g)", b.Locked)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func FormatStatus(st domain.RunState) string {
	state := "stopped"
	if st.Running {
		state = "running"
		if st.StartedAt != nil {
			state += " since " + st.StartedAt.Format(time.RFC3339)
		}
	}
	mode := "simulation"
	if st.AutoExecute {
		mode = "auto-execute"
	}
	ai := "off"
	if st.AIEnabled {
		ai = "on"
	}
	return fmt.Sprintf("Scanner %s\nCycles: %d\nMode: %s\nAI: %s\nPairs: %s",
		state, st.Cycles, mode, ai, strings.Join(st.Pairs, ", "))
}

package bot

import (
	"context"
	"strings"
	"time"

	"signal-scanner/internal/logger"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

const (
	commandTimeout = 60 * time.Second
	replyDenied    = "This chat is not allowed to control the scanner."
)

type CommandProcessor interface {
	Process(ctx context.Context, text string) string
}

var newTeleBot = tele.NewBot

// Bot relays Telegram messages to the command router.
type Bot struct {
	bot      *tele.Bot
	log      *zap.Logger
	commands CommandProcessor
	allowed  map[int64]bool
}

// New returns nil without error when token is empty. An empty allow list
// accepts every chat.
func New(token string, allowedChats []int64, commands CommandProcessor, log *zap.Logger) (*Bot, error) {
	log = logger.OrNop(log).Named("telegram")
	if token == "" {
		log.Info("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil, nil
	}
	tb, err := newTeleBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}

	b := &Bot{bot: tb, log: log, commands: commands, allowed: make(map[int64]bool, len(allowedChats))}
	for _, id := range allowedChats {
		b.allowed[id] = true
	}
	if len(b.allowed) == 0 {
		log.Warn("TELEGRAM_ALLOWED_CHAT not set, every chat can control the scanner")
	}
	tb.Handle(tele.OnText, b.handleText)
	return b, nil
}

func (b *Bot) Start() {
	if b == nil {
		return
	}
	b.log.Info("Telegram bot started")
	go b.bot.Start()
}

func (b *Bot) Stop() {
	if b == nil {
		return
	}
	b.bot.Stop()
}

func (b *Bot) handleText(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	if len(b.allowed) > 0 && !b.allowed[chat.ID] {
		b.log.Warn("rejected message from chat", zap.Int64("chat_id", chat.ID))
		return c.Send(replyDenied)
	}

	text := commandText(c.Text())
	if text == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	reply := b.commands.Process(ctx, text)
	b.log.Debug("command handled", zap.Int64("chat_id", chat.ID), zap.String("text", text))
	return c.Send(reply)
}

// commandText turns Telegram slash commands into router text: "/analyze btc"
// becomes "analyze btc". "/start" is the client greeting, not a request to
// trade, so it maps to help.
func commandText(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") {
		return raw
	}
	fields := strings.Fields(strings.TrimPrefix(raw, "/"))
	if len(fields) == 0 {
		return ""
	}
	// drop the @botname suffix of group commands
	if i := strings.Index(fields[0], "@"); i >= 0 {
		fields[0] = fields[0][:i]
	}
	if strings.EqualFold(fields[0], "start") && len(fields) == 1 {
		return "help"
	}
	if strings.EqualFold(fields[0], "trade") {
		fields[0] = "start"
	}
	return strings.Join(fields, " ")
}

package command

import (
	"strings"
	"unicode"

	"signal-scanner/internal/domain"
)

type Intent string

const (
	IntentAnalyze  Intent = "analyze"
	IntentStart    Intent = "start"
	IntentStop     Intent = "stop"
	IntentBalance  Intent = "balance"
	IntentStatus   Intent = "status"
	IntentLogs     Intent = "logs"
	IntentToggleAI Intent = "toggle_ai"
	IntentHelp     Intent = "help"
	IntentUnknown  Intent = "unknown"
)

// Aliases maps the short names operators type to base assets.
var Aliases = map[string]string{
	"btc":  "BTC",
	"eth":  "ETH",
	"ada":  "ADA",
	"dot":  "DOT",
	"link": "LINK",
	"bnb":  "BNB",
	"xrp":  "XRP",
	"sol":  "SOL",
	"doge": "DOGE",
}

// Command is a classified operator instruction.
type Command struct {
	Intent Intent
	// Pair is set for analyze when a known alias or explicit pair was found.
	Pair string
	// Enable is set for toggle_ai when the text says on or off; nil flips.
	Enable *bool
}

type input struct {
	text   string
	tokens map[string]bool
	list   []string
}

func newInput(raw string) input {
	text := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	list := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '/'
	})
	tokens := make(map[string]bool, len(list))
	for _, t := range list {
		tokens[t] = true
	}
	return input{text: text, tokens: tokens, list: list}
}

// has reports whether any keyword occurs. Multi-word keywords match as
// phrases, single words as whole tokens.
func (in input) has(keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(k, " ") {
			if strings.Contains(in.text, k) {
				return true
			}
			continue
		}
		if in.tokens[k] {
			return true
		}
	}
	return false
}

type rule struct {
	intent Intent
	match  func(in input) bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{IntentAnalyze, func(in input) bool {
		return in.has("ابحث عن", "تحليل", "analyze", "analyse", "search", "check")
	}},
	{IntentStart, func(in input) bool {
		return in.has("شغل التداول", "ابدأ", "start", "run")
	}},
	{IntentStop, func(in input) bool {
		return in.has("اوقف التداول", "أوقف التداول", "توقف", "stop", "halt")
	}},
	{IntentBalance, func(in input) bool {
		return in.has("الرصيد", "balance", "balances", "wallet")
	}},
	{IntentStatus, func(in input) bool {
		return in.has("الحالة", "status", "state")
	}},
	{IntentLogs, func(in input) bool {
		return in.has("السجلات", "logs", "log")
	}},
	{IntentToggleAI, func(in input) bool {
		return in.has("ai", "الذكاء")
	}},
	{IntentHelp, func(in input) bool {
		return in.has("مساعدة", "help", "commands")
	}},
}

// Classify maps free text to a command. It never fails: unmatched text
// classifies as IntentUnknown.
func Classify(text, quote string) Command {
	in := newInput(text)
	if strings.TrimSpace(in.text) == "?" {
		return Command{Intent: IntentHelp}
	}
	for _, r := range rules {
		if !r.match(in) {
			continue
		}
		cmd := Command{Intent: r.intent}
		switch r.intent {
		case IntentAnalyze:
			cmd.Pair = resolvePair(in, quote)
		case IntentToggleAI:
			cmd.Enable = aiState(in)
		}
		return cmd
	}
	return Command{Intent: IntentUnknown}
}

// resolvePair returns the first alias or explicit BASE/QUOTE token.
func resolvePair(in input, quote string) string {
	for _, t := range in.list {
		if base, ok := Aliases[t]; ok {
			return domain.NormalizePair(base, quote)
		}
		if strings.Count(t, "/") == 1 && !strings.HasPrefix(t, "/") && !strings.HasSuffix(t, "/") {
			return domain.NormalizePair(t, quote)
		}
	}
	return ""
}

func aiState(in input) *bool {
	switch {
	case in.has("on", "enable", "enabled", "تفعيل", "شغل"):
		v := true
		return &v
	case in.has("off", "disable", "disabled", "تعطيل", "اوقف"):
		v := false
		return &v
	default:
		return nil
	}
}

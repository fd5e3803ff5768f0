package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		intent Intent
		pair   string
	}{
		{"arabic search", "ابحث عن BTC", IntentAnalyze, "BTC/USDT"},
		{"arabic analyze", "تحليل eth", IntentAnalyze, "ETH/USDT"},
		{"english lower", "analyze btc", IntentAnalyze, "BTC/USDT"},
		{"english upper", "ANALYZE BTC", IntentAnalyze, "BTC/USDT"},
		{"extra whitespace", "  check   sol  ", IntentAnalyze, "SOL/USDT"},
		{"explicit pair", "search link/btc", IntentAnalyze, "LINK/BTC"},
		{"missing symbol", "analyze", IntentAnalyze, ""},
		{"unknown alias", "analyze shib", IntentAnalyze, ""},
		{"alias needs whole word", "analyze dotted", IntentAnalyze, ""},
		{"arabic start", "شغل التداول", IntentStart, ""},
		{"arabic begin", "ابدأ", IntentStart, ""},
		{"english start", "Start", IntentStart, ""},
		{"arabic stop", "اوقف التداول", IntentStop, ""},
		{"arabic halt", "توقف", IntentStop, ""},
		{"english stop", "stop", IntentStop, ""},
		{"arabic balance", "الرصيد", IntentBalance, ""},
		{"english balance", "balance please", IntentBalance, ""},
		{"status", "status", IntentStatus, ""},
		{"arabic logs", "السجلات", IntentLogs, ""},
		{"ai", "ai on", IntentToggleAI, ""},
		{"help", "help", IntentHelp, ""},
		{"question mark", "?", IntentHelp, ""},
		{"gibberish", "what is the weather", IntentUnknown, ""},
		{"empty", "", IntentUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.text, "USDT")
			assert.Equal(t, tt.intent, got.Intent)
			assert.Equal(t, tt.pair, got.Pair)
		})
	}
}

func TestClassifyUsesConfiguredQuote(t *testing.T) {
	got := Classify("ابحث عن BTC", "FDUSD")
	assert.Equal(t, "BTC/FDUSD", got.Pair)
}

func TestClassifyPriority(t *testing.T) {
	// analyze outranks start when both keywords appear.
	assert.Equal(t, IntentAnalyze, Classify("start and analyze btc", "USDT").Intent)
	assert.Equal(t, IntentStart, Classify("start ai", "USDT").Intent)
}

func TestClassifyAIState(t *testing.T) {
	on := Classify("ai on", "USDT")
	if assert.NotNil(t, on.Enable) {
		assert.True(t, *on.Enable)
	}
	off := Classify("disable AI", "USDT")
	if assert.NotNil(t, off.Enable) {
		assert.False(t, *off.Enable)
	}
	assert.Nil(t, Classify("ai", "USDT").Enable)
}

package domain

import (
	"github.com/go-playground/validator/v10"
)

var configValidator = validator.New()

// TradingConfig is the runtime-mutable configuration owned by the scan supervisor.
type TradingConfig struct {
	APIKey                  string   `json:"api_key"`
	APISecret               string   `json:"api_secret"`
	AutoExecute             bool     `json:"auto_execute"`
	RiskPercentage          float64  `json:"risk_percentage" validate:"gt=0,lte=100"`
	TradingPairs            []string `json:"trading_pairs" validate:"min=1,unique,dive,required,contains=/"`
	AIEnabled               bool     `json:"ai_enabled"`
	WarnInsufficientHistory bool     `json:"warn_insufficient_history"`
	QuoteAsset              string   `json:"quote_asset" validate:"required,alphanum"`
}

func (c TradingConfig) Validate() error {
	return configValidator.Struct(c)
}

// Clone returns a deep copy safe to hand out of the supervisor lock.
func (c TradingConfig) Clone() TradingConfig {
	out := c
	out.TradingPairs = append([]string(nil), c.TradingPairs...)
	return out
}

// HasCredentials reports whether both exchange keys are set.
func (c TradingConfig) HasCredentials() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// Redacted hides credentials for display.
func (c TradingConfig) Redacted() TradingConfig {
	out := c.Clone()
	out.APIKey = mask(out.APIKey)
	out.APISecret = mask(out.APISecret)
	return out
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

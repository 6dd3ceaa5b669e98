package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/pkg/backoff"
	openrouterx "github.com/tanpawarit/Chative-Concierge/pkg/openrouter"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"700"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.4"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	// Token caps chosen per query by TokenBudget.
	SmallMaxTokens int `envconfig:"SMALL_MAX_TOKENS" split_words:"true" default:"300"`
	LargeMaxTokens int `envconfig:"LARGE_MAX_TOKENS" split_words:"true" default:"1200"`

	AttemptTimeout time.Duration  `envconfig:"ATTEMPT_TIMEOUT" split_words:"true" default:"20s"`
	RatePerSecond  float64        `envconfig:"RATE_PER_SECOND" split_words:"true" default:"5"`
	RateBurst      int            `envconfig:"RATE_BURST" split_words:"true" default:"10"`
	Retry          backoff.Policy `envconfig:"RETRY" split_words:"true"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	if c.SmallMaxTokens <= 0 || c.MaxCompletionToken < c.SmallMaxTokens || c.LargeMaxTokens < c.MaxCompletionToken {
		return fmt.Errorf("%w: token caps must satisfy 0 < small <= default <= large", contractx.ErrValidation)
	}
	return nil
}

// OpenRouter returns the chat-model config. The per-call cap comes from
// TokenBudget, so the model default is the large cap.
func (c Config) OpenRouter() openrouterx.Config {
	maxCompletionToken := c.LargeMaxTokens
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              strings.TrimSpace(c.Model),
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        c.Temperature,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

func (c Config) Budget() TokenBudget {
	return TokenBudget{Small: c.SmallMaxTokens, Default: c.MaxCompletionToken, Large: c.LargeMaxTokens}
}

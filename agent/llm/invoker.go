package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/pkg/backoff"
	"github.com/tanpawarit/Chative-Concierge/pkg/metrics"
)

// Generator is what the orchestration loop needs from the inference service.
type Generator interface {
	Generate(ctx context.Context, msgs []*schema.Message, maxTokens int) (*schema.Message, error)
}

var _ Generator = (*Invoker)(nil)

// Invoker wraps a tool-bound chat model with a process-wide rate limit, a
// per-attempt timeout and the shared retry policy.
type Invoker struct {
	model          model.BaseChatModel
	limiter        *rate.Limiter
	policy         backoff.Policy
	attemptTimeout time.Duration
	temperature    float32
}

// NewInvoker binds tools to m. tools may be empty.
func NewInvoker(m model.ToolCallingChatModel, tools []*schema.ToolInfo, cfg Config) (*Invoker, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: chat model is nil", contractx.ErrValidation)
	}
	var bound model.BaseChatModel = m
	if len(tools) > 0 {
		withTools, err := m.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
		bound = withTools
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Invoker{
		model:          bound,
		limiter:        limiter,
		policy:         cfg.Retry,
		attemptTimeout: cfg.AttemptTimeout,
		temperature:    cfg.Temperature,
	}, nil
}

// Generate returns ErrInferenceUnavailable once the policy is exhausted.
func (i *Invoker) Generate(ctx context.Context, msgs []*schema.Message, maxTokens int) (*schema.Message, error) {
	opts := []model.Option{model.WithTemperature(i.temperature)}
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}

	out, err := backoff.Do(ctx, i.policy, func(ctx context.Context) (*schema.Message, error) {
		if i.limiter != nil {
			if err := i.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		if i.attemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, i.attemptTimeout)
			defer cancel()
		}
		msg, err := i.model.Generate(ctx, msgs, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
		}
		if msg == nil {
			return nil, fmt.Errorf("%w: empty reply", contractx.ErrModelInvoke)
		}
		return msg, nil
	}, backoff.Transient, func(attempt int, err error) {
		metrics.InferenceCalls.WithLabelValues("retry").Inc()
		log.Warn().Err(err).Int("attempt", attempt).Msg("inference attempt failed")
	})
	if err != nil {
		metrics.InferenceCalls.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: %w", contractx.ErrInferenceUnavailable, err)
	}

	metrics.InferenceCalls.WithLabelValues("ok").Inc()
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		metrics.InferenceTokens.WithLabelValues("prompt").Add(float64(out.ResponseMeta.Usage.PromptTokens))
		metrics.InferenceTokens.WithLabelValues("completion").Add(float64(out.ResponseMeta.Usage.CompletionTokens))
	}
	return out, nil
}

// Package orchestrator is the turn engine: one eino graph per turn that
// resolves the conversation, answers from the fast paths when it can, runs
// the model loop otherwise, and records the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Concierge/agent/agents/responder"
	"github.com/tanpawarit/Chative-Concierge/agent/cache"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/escalation"
	"github.com/tanpawarit/Chative-Concierge/agent/llm"
	nodex "github.com/tanpawarit/Chative-Concierge/agent/nodes"
	"github.com/tanpawarit/Chative-Concierge/agent/prompt"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
	"github.com/tanpawarit/Chative-Concierge/pkg/metrics"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

type Config struct {
	TurnTimeout    time.Duration `split_words:"true" default:"45s"`
	IdleTimeout    time.Duration `split_words:"true" default:"30m"`
	PersistTimeout time.Duration `split_words:"true" default:"5s"`
	BusinessName   string        `split_words:"true" default:"our business"`
	// ContactInfo is appended to emergency and hand-off replies.
	ContactInfo string `split_words:"true"`
}

// Deps are the collaborators of the engine. Store, Prompt and Responder are
// required.
type Deps struct {
	Store     contractx.ConversationStore
	Responses *cache.ResponseCache
	Retriever contractx.Retriever
	Prompt    *prompt.Builder
	Budget    llm.TokenBudget
	Responder *responder.Responder
	Decider   *escalation.Decider
	ToolNames []string
}

type Engine struct {
	store      contractx.ConversationStore
	responses  *cache.ResponseCache
	retriever  contractx.Retriever
	decider    *escalation.Decider
	generation nodex.Generation

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	cfg Config
	now func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(deps Deps, cfg Config, opts ...Option) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("conversation store is required")
	}
	if deps.Prompt == nil {
		return nil, errors.New("prompt builder is required")
	}
	if deps.Responder == nil {
		return nil, errors.New("responder is required")
	}
	if cfg.TurnTimeout < 0 || cfg.IdleTimeout < 0 {
		return nil, fmt.Errorf("%w: engine timeouts must not be negative", contractx.ErrValidation)
	}

	e := &Engine{
		store:     deps.Store,
		responses: deps.Responses,
		retriever: deps.Retriever,
		decider:   deps.Decider,
		generation: nodex.Generation{
			Prompt:      deps.Prompt,
			Budget:      deps.Budget,
			Responder:   deps.Responder,
			ToolNames:   append([]string(nil), deps.ToolNames...),
			ContactInfo: strings.TrimSpace(cfg.ContactInfo),
		},
		cfg: cfg,
		now: time.Now,
	}
	e.cfg.ContactInfo = e.generation.ContactInfo
	for _, opt := range opts {
		opt(e)
	}

	graphRunner, err := e.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	e.graphRunner = graphRunner

	return e, nil
}

// HandleTurn answers one user utterance. Only request validation errors are
// returned; every downstream failure degrades inside the pipeline.
func (e *Engine) HandleTurn(ctx context.Context, turn contractx.Turn) (contractx.TurnResult, error) {
	started := time.Now()
	out, err := e.graphRunner.Invoke(ctx, nodex.GraphInput{Turn: turn})
	if err != nil {
		return contractx.TurnResult{}, err
	}
	metrics.TurnDuration.WithLabelValues(string(out.Result.Source)).Observe(time.Since(started).Seconds())
	return out.Result, nil
}

// EndConversation closes a conversation explicitly. The next turn of the
// session opens a new one.
func (e *Engine) EndConversation(ctx context.Context, conversationID, reason string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return fmt.Errorf("%w: conversation id is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(reason) == "" {
		reason = statex.ReasonClosed
	}
	return e.store.SetConversationState(ctx, conversationID, statex.StateEnded, reason)
}

// SweepIdle ends every ACTIVE conversation that has been quiet for longer
// than the idle timeout.
func (e *Engine) SweepIdle(ctx context.Context) ([]string, error) {
	if e.cfg.IdleTimeout <= 0 {
		return nil, nil
	}
	ids, err := e.store.EndIdle(ctx, e.now().UTC().Add(-e.cfg.IdleTimeout))
	if err != nil {
		return nil, fmt.Errorf("sweep idle conversations: %w", err)
	}
	if len(ids) > 0 {
		log.Info().Int("ended", len(ids)).Msg("idle conversations ended")
	}
	return ids, nil
}

// RecordDelivery returns a notifier hook that stores the notification
// outcome as a system row on the conversation.
func RecordDelivery(store contractx.ConversationStore) func(ctx context.Context, n escalation.Notice, d escalation.Delivery) {
	return func(ctx context.Context, n escalation.Notice, d escalation.Delivery) {
		results := make(map[string]any, len(d.Results))
		for name, ok := range d.Results {
			results[name] = ok
		}
		msg := contractx.StoredMessage{
			ConversationID: n.ConversationID,
			Role:           contractx.RoleSystem,
			Content:        "escalation notification",
			Metadata: map[string]any{
				"kind":    "escalation_notification",
				"reason":  n.Reason,
				"sent":    d.Sent,
				"results": results,
			},
		}
		if err := store.AppendMessages(ctx, n.ConversationID, []contractx.StoredMessage{msg}); err != nil {
			metrics.PersistenceFailures.WithLabelValues("notification").Inc()
			log.Error().Err(err).
				Str("conversation_id", n.ConversationID).
				Msg("record escalation notification failed")
		}
	}
}

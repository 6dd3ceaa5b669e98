package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Concierge/agent/agents/responder"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/escalation"
	"github.com/tanpawarit/Chative-Concierge/agent/llm"
	"github.com/tanpawarit/Chative-Concierge/agent/prompt"
	"github.com/tanpawarit/Chative-Concierge/agent/quickreply"
	"github.com/tanpawarit/Chative-Concierge/agent/repair"
)

// Generation bundles what the model path needs.
type Generation struct {
	Prompt      *prompt.Builder
	Budget      llm.TokenBudget
	Responder   *responder.Responder
	ToolNames   []string
	ContactInfo string
}

var fallbackText = map[quickreply.Language]string{
	quickreply.English: repair.DefaultFallbackText,
	quickreply.Thai:    "ขออภัยค่ะ ตอนนี้ยังตอบคำถามนี้ไม่ได้ รบกวนพิมพ์คำถามอีกครั้งได้ไหมคะ",
	quickreply.Spanish: "Lo siento, no pude preparar una respuesta. ¿Podrías reformular tu pregunta?",
}

// GenerateReply runs the inference/tool loop and repairs its raw output.
// Inference exhaustion and the turn deadline both end in the scripted
// emergency reply.
func GenerateReply(ctx context.Context, in *GraphState, gen Generation) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	if gen.Prompt == nil || gen.Responder == nil {
		return nil, fmt.Errorf("%w: generation dependencies are missing", contractx.ErrValidation)
	}
	logger := log.With().
		Str("session_id", in.Conversation.SessionID).
		Str("conversation_id", in.Conversation.ID).
		Str("tenant", in.Conversation.TenantID).
		Logger()

	ctx, cancel := withDeadline(ctx, in)
	defer cancel()

	msgs, err := gen.Prompt.Build(ctx, prompt.Input{
		Query:     in.Text,
		History:   in.Turn.History,
		Language:  in.Language,
		Retrieval: in.Retrieval,
		ToolNames: gen.ToolNames,
		Now:       in.Now,
	})
	if err != nil {
		logger.Error().Err(err).Msg("build prompt failed")
		return emergency(in, gen.ContactInfo), nil
	}

	res, err := gen.Responder.Run(ctx, responder.Request{
		Messages:  msgs,
		Caller:    callerOf(in),
		MaxTokens: gen.Budget.For(in.Text),
	})
	in.Usage = res.Usage
	if err != nil {
		level := zerolog.ErrorLevel
		if errors.Is(err, contractx.ErrTurnDeadline) {
			level = zerolog.WarnLevel
		}
		logger.WithLevel(level).Err(err).Int("rounds", res.Usage.Rounds).Msg("model path failed, sending emergency reply")
		return emergency(in, gen.ContactInfo), nil
	}
	if res.Capped {
		logger.Warn().Int("rounds", res.Usage.Rounds).Msg("tool round cap reached")
	}

	out, rep := repair.Repair(res.Raw, repair.WithFallbackText(pickFallback(in.Language)))
	// The executor is the authority on which tools ran, not the model.
	out.ToolsUsed = append([]string{}, res.ToolsUsed...)
	in.Output = out
	in.Repair = rep
	in.Source = contractx.SourceModel
	return in, nil
}

func emergency(in *GraphState, contact string) *GraphState {
	in.Output = escalation.EmergencyReply(in.Language, contact)
	in.Source = contractx.SourceEmergency
	return in
}

func pickFallback(lang quickreply.Language) string {
	if s, ok := fallbackText[lang]; ok {
		return s
	}
	return repair.DefaultFallbackText
}

func callerOf(in *GraphState) contractx.Caller {
	return contractx.Caller{
		TenantID:       in.Conversation.TenantID,
		SessionID:      in.Conversation.SessionID,
		ConversationID: in.Conversation.ID,
		CustomerID:     in.Conversation.CustomerID,
		Channel:        in.Conversation.Channel,
		Partition:      in.Turn.Partition,
	}
}

package prompt

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/quickreply"
)

//go:embed template/system.txt
var systemRaw string

const (
	knowledgeDegraded = "- The knowledge base is temporarily unavailable. Answer only what tools can confirm and offer staff follow-up otherwise."
	knowledgeEmpty    = "- No knowledge matched this question."
)

// Input is everything the system prompt and working history are built from.
type Input struct {
	Query     string
	History   []contractx.Message
	Language  quickreply.Language
	Retrieval contractx.RetrievalResult
	ToolNames []string
	Now       time.Time
}

// Builder renders the system prompt, the prior history and the new user
// message into the working message list for one turn.
type Builder struct {
	businessName string
	template     einoprompt.ChatTemplate
}

func NewBuilder(businessName string) (*Builder, error) {
	system := strings.TrimSpace(systemRaw)
	if system == "" {
		return nil, fmt.Errorf("%w: system template is empty", contractx.ErrPromptMissing)
	}
	if strings.TrimSpace(businessName) == "" {
		businessName = "our business"
	}
	return &Builder{
		businessName: strings.TrimSpace(businessName),
		template: einoprompt.FromMessages(
			schema.FString,
			schema.SystemMessage(system),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{input}"),
		),
	}, nil
}

// Build returns a fresh slice; callers may append to it without touching the
// turn history.
func (b *Builder) Build(ctx context.Context, in Input) ([]*schema.Message, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", contractx.ErrValidation)
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	status := ""
	switch {
	case !in.Retrieval.IsWorking:
		status = knowledgeDegraded
	case strings.TrimSpace(in.Retrieval.ContextText) == "":
		status = knowledgeEmpty
	}

	tools := "none"
	if len(in.ToolNames) > 0 {
		tools = strings.Join(in.ToolNames, ", ")
	}

	msgs, err := b.template.Format(ctx, map[string]any{
		"business_name":    b.businessName,
		"now":              now.UTC().Format(time.RFC3339),
		"language":         in.Language.DisplayName(),
		"knowledge_status": status,
		"context":          in.Retrieval.ContextText,
		"tool_names":       tools,
		"history":          toSchemaHistory(in.History),
		"input":            query,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: format prompt: %v", contractx.ErrPromptMissing, err)
	}
	return msgs, nil
}

func toSchemaHistory(history []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case contractx.RoleAssistant:
			out = append(out, schema.AssistantMessage(content, nil))
		case contractx.RoleUser:
			out = append(out, schema.UserMessage(content))
		}
	}
	return out
}

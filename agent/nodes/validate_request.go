package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/escalation"
	"github.com/tanpawarit/Chative-Concierge/agent/quickreply"
	"github.com/tanpawarit/Chative-Concierge/agent/repair"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = statex.ErrInvalidSession
)

type GraphInput struct {
	Turn contractx.Turn
}

type GraphOutput struct {
	Result contractx.TurnResult
}

// GraphState is threaded through every node of one turn.
type GraphState struct {
	Turn     contractx.Turn
	Text     string
	Language quickreply.Language
	Now      time.Time
	// Deadline bounds retrieval and the inference loop. Persistence runs
	// past it. It is on the wall clock since it feeds context deadlines;
	// Now may come from an injected clock.
	Deadline time.Time

	Conversation *statex.Conversation
	// Stored is false when the store could not be reached and the
	// conversation only lives for this turn.
	Stored bool

	Retrieval contractx.RetrievalResult
	Output    contractx.AgentOutput
	Source    contractx.ReplySource
	Usage     contractx.UsageStats
	Repair    repair.Report
	Decision  escalation.Decision

	// Answered short-circuits retrieval and inference.
	Answered bool
}

func ValidateRequest(in GraphInput, nowFn func() time.Time, turnTimeout time.Duration) (*GraphState, error) {
	turn := in.Turn
	turn.SessionID = strings.TrimSpace(turn.SessionID)
	if turn.SessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(turn.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}
	turn.Text = text
	turn.TenantID = strings.TrimSpace(turn.TenantID)
	turn.History = append([]contractx.Message(nil), turn.History...)

	now := nowFn().UTC()
	st := &GraphState{
		Turn:      turn,
		Text:      text,
		Language:  quickreply.DetectLanguage(text),
		Now:       now,
		Retrieval: contractx.RetrievalResult{Sources: []contractx.Source{}, IsWorking: true},
	}
	if turnTimeout > 0 {
		st.Deadline = time.Now().Add(turnTimeout)
	}
	return st, nil
}

package orchestratornode

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/persist"
	"github.com/tanpawarit/Chative-Concierge/agent/quickreply"
	"github.com/tanpawarit/Chative-Concierge/agent/repair"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

var fixedNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type unreachableStore struct {
	contractx.ConversationStore
}

func (unreachableStore) GetOrCreateSession(context.Context, contractx.Identity) (*statex.Conversation, error) {
	return nil, errors.New("connection refused")
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	history := []contractx.Message{{Role: contractx.RoleUser, Content: "hola"}}
	before := time.Now()
	st, err := ValidateRequest(GraphInput{Turn: contractx.Turn{
		SessionID: " s1 ",
		Text:      "  ¿Cuánto cuesta un masaje?  ",
		History:   history,
	}}, clock, 10*time.Second)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if st.Turn.SessionID != "s1" || st.Text != "¿Cuánto cuesta un masaje?" {
		t.Fatalf("state = %+v", st)
	}
	if st.Language != quickreply.Spanish {
		t.Fatalf("language = %s, want es", st.Language)
	}
	if !st.Now.Equal(fixedNow) {
		t.Fatalf("now = %s, want %s", st.Now, fixedNow)
	}
	if st.Deadline.Before(before.Add(10*time.Second)) || st.Deadline.After(time.Now().Add(10*time.Second)) {
		t.Fatalf("deadline = %s, want about 10s from now", st.Deadline)
	}

	st.Turn.History[0].Content = "changed"
	if history[0].Content != "hola" {
		t.Fatal("caller history was mutated")
	}

	if _, err := ValidateRequest(GraphInput{Turn: contractx.Turn{Text: "hi"}}, clock, 0); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := ValidateRequest(GraphInput{Turn: contractx.Turn{SessionID: "s1"}}, clock, 0); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

type ctxRecorder struct {
	err error
}

func (r *ctxRecorder) Retrieve(ctx context.Context, query string, partition *contractx.Partition) contractx.RetrievalResult {
	r.err = ctx.Err()
	return contractx.RetrievalResult{ContextText: "hours: 9-5", Sources: []contractx.Source{}, IsWorking: true}
}

func TestRetrieveContextDeadlineIgnoresInjectedClock(t *testing.T) {
	t.Parallel()

	past := func() time.Time { return time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC) }
	st, err := ValidateRequest(GraphInput{Turn: contractx.Turn{SessionID: "s1", Text: "opening hours?"}}, past, 5*time.Second)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}

	rec := &ctxRecorder{}
	st, err = RetrieveContext(context.Background(), st, rec)
	if err != nil {
		t.Fatalf("RetrieveContext() error = %v", err)
	}
	if rec.err != nil {
		t.Fatalf("retrieval context already done: %v", rec.err)
	}
	if !st.Retrieval.IsWorking {
		t.Fatal("retrieval result was dropped")
	}
}

func TestLoadConversationStartsFreshAfterEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := persist.NewMemoryStore(clock)
	id := contractx.Identity{TenantID: "t1", SessionID: "s1"}
	old, err := store.GetOrCreateSession(ctx, id)
	if err != nil {
		t.Fatalf("GetOrCreateSession() error = %v", err)
	}
	if err := store.SetConversationState(ctx, old.ID, statex.StateEnded, statex.ReasonClosed); err != nil {
		t.Fatalf("SetConversationState() error = %v", err)
	}

	st, _ := ValidateRequest(GraphInput{Turn: contractx.Turn{TenantID: "t1", SessionID: "s1", Text: "hello"}}, clock, 0)
	st, err = LoadConversation(ctx, st, store, time.Hour)
	if err != nil {
		t.Fatalf("LoadConversation() error = %v", err)
	}
	if st.Conversation.ID == old.ID || st.Conversation.State != statex.StateActive || !st.Stored {
		t.Fatalf("conversation = %+v stored = %v", st.Conversation, st.Stored)
	}
}

func TestLoadConversationSurvivesStoreOutage(t *testing.T) {
	t.Parallel()

	st, _ := ValidateRequest(GraphInput{Turn: contractx.Turn{TenantID: "t1", SessionID: "s1", Text: "hello"}}, clock, 0)
	st, err := LoadConversation(context.Background(), st, unreachableStore{}, time.Hour)
	if err != nil {
		t.Fatalf("LoadConversation() error = %v", err)
	}
	if st.Stored {
		t.Fatal("conversation must be marked as not stored")
	}
	if st.Conversation == nil || st.Conversation.ID == "" || st.Conversation.SessionID != "s1" {
		t.Fatalf("conversation = %+v", st.Conversation)
	}
}

func TestCacheable(t *testing.T) {
	t.Parallel()

	base := func() *GraphState {
		return &GraphState{Source: contractx.SourceModel, Output: contractx.AgentOutput{ResponseText: "ok"}}
	}

	cases := []struct {
		name   string
		mutate func(*GraphState)
		want   bool
	}{
		{name: "clean model answer", mutate: func(*GraphState) {}, want: true},
		{name: "escalated", mutate: func(s *GraphState) { s.Output.Escalation.ShouldEscalate = true }},
		{name: "used tools", mutate: func(s *GraphState) { s.Output.ToolsUsed = []string{"track_order"} }},
		{name: "quick answer", mutate: func(s *GraphState) { s.Source = contractx.SourceQuickAnswer }},
		{name: "emergency", mutate: func(s *GraphState) { s.Source = contractx.SourceEmergency }},
		{name: "validation fallback", mutate: func(s *GraphState) { s.Repair = repair.Report{Fallback: true} }},
	}
	for _, tc := range cases {
		st := base()
		tc.mutate(st)
		if got := cacheable(st); got != tc.want {
			t.Fatalf("%s: cacheable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRouteAfterShortcut(t *testing.T) {
	t.Parallel()

	route, err := RouteAfterShortcut(context.Background(), &GraphState{Answered: true})
	if err != nil || route != RouteAnswered {
		t.Fatalf("answered route = %q, %v", route, err)
	}
	route, err = RouteAfterShortcut(context.Background(), &GraphState{})
	if err != nil || route != RouteRetrieve {
		t.Fatalf("open route = %q, %v", route, err)
	}
	if _, err := RouteAfterShortcut(context.Background(), nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/quickreply"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
	"github.com/tanpawarit/Chative-Concierge/pkg/backoff"
)

type fakeStateWriter struct {
	mu    sync.Mutex
	calls []statex.ConversationState
	err   error
}

func (f *fakeStateWriter) SetConversationState(ctx context.Context, id string, state statex.ConversationState, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, state)
	return f.err
}

type fakeDispatcher struct {
	mu      sync.Mutex
	notices []Notice
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, n Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
}

type fakeChannel struct {
	name     string
	failures int32
	calls    atomic.Int32
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, n Notice) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New(f.name + " unavailable")
	}
	return nil
}

var fixedNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func escalatingOutput(reason string) contractx.AgentOutput {
	return contractx.AgentOutput{ResponseText: "Let me get someone.", Escalation: contractx.Escalation{ShouldEscalate: true, Reason: reason}}
}

func TestDecideEscalatesOnce(t *testing.T) {
	t.Parallel()

	store := &fakeStateWriter{}
	disp := &fakeDispatcher{}
	d := NewDecider(store, disp, WithClock(func() time.Time { return fixedNow }))
	conv := statex.NewConversation("c1", "s1", "t1", "cust", "line", fixedNow)

	got := d.Decide(context.Background(), conv, "I want a refund now", escalatingOutput("refund dispute"))
	if !got.Escalated || got.Repeat || got.Reason != "refund dispute" {
		t.Fatalf("Decide() = %+v", got)
	}
	if conv.State != statex.StateEscalated {
		t.Fatalf("state = %s", conv.State)
	}
	if len(store.calls) != 1 || len(disp.notices) != 1 {
		t.Fatalf("store calls = %d, notices = %d", len(store.calls), len(disp.notices))
	}
	if disp.notices[0].LastMessage != "I want a refund now" || disp.notices[0].TenantID != "t1" {
		t.Fatalf("notice = %+v", disp.notices[0])
	}

	again := d.Decide(context.Background(), conv, "hello?", escalatingOutput("again"))
	if !again.Repeat {
		t.Fatal("second escalation must be a repeat")
	}
	if len(disp.notices) != 1 {
		t.Fatal("repeat escalation must not notify again")
	}
}

func TestDecideIgnoresEndedAndNonEscalating(t *testing.T) {
	t.Parallel()

	store := &fakeStateWriter{}
	disp := &fakeDispatcher{}
	d := NewDecider(store, disp)

	conv := statex.NewConversation("c1", "s1", "t1", "", "", fixedNow)
	if got := d.Decide(context.Background(), conv, "", contractx.AgentOutput{ResponseText: "ok"}); got.Escalated {
		t.Fatal("no escalation requested")
	}

	if err := conv.Transition(statex.StateEnded, statex.ReasonClosed, fixedNow); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if got := d.Decide(context.Background(), conv, "", escalatingOutput("")); got.Escalated {
		t.Fatal("ended conversation must not escalate")
	}
	if conv.State != statex.StateEnded || len(store.calls) != 0 || len(disp.notices) != 0 {
		t.Fatalf("state = %s, store = %d, notices = %d", conv.State, len(store.calls), len(disp.notices))
	}
}

func TestDecidePersistenceFailureStillNotifies(t *testing.T) {
	t.Parallel()

	store := &fakeStateWriter{err: errors.New("db down")}
	disp := &fakeDispatcher{}
	d := NewDecider(store, disp)
	conv := statex.NewConversation("c1", "s1", "t1", "", "", fixedNow)

	got := d.Decide(context.Background(), conv, "", escalatingOutput(""))
	if !got.Escalated || got.Reason != defaultReason {
		t.Fatalf("Decide() = %+v", got)
	}
	if len(disp.notices) != 1 {
		t.Fatal("notification must not depend on the state write")
	}
}

func TestNotifySentWhenAnyChannelSucceeds(t *testing.T) {
	t.Parallel()

	a := &fakeChannel{name: "qstash", failures: 100}
	b := &fakeChannel{name: "nats"}
	n := NewNotifier(Config{}, []Channel{a, b})

	d := n.Notify(context.Background(), Notice{ConversationID: "c1"})
	if !d.Sent {
		t.Fatal("expected Sent with one working channel")
	}
	if d.Results["qstash"] || !d.Results["nats"] {
		t.Fatalf("results = %#v", d.Results)
	}
	if a.calls.Load() != 1 {
		t.Fatalf("Notify must attempt once, got %d", a.calls.Load())
	}

	b.failures = 100
	b.calls.Store(0)
	if d := n.Notify(context.Background(), Notice{ConversationID: "c2"}); d.Sent {
		t.Fatal("expected not sent when every channel fails")
	}
}

func TestDispatchRetriesOutOfBand(t *testing.T) {
	t.Parallel()

	a := &fakeChannel{name: "qstash", failures: 2}
	b := &fakeChannel{name: "nats", failures: 100}

	var (
		mu  sync.Mutex
		got []Delivery
	)
	n := NewNotifier(
		Config{Retry: backoff.Policy{Attempts: 3, Base: time.Millisecond, Max: time.Millisecond}},
		[]Channel{a, b},
		WithDeliveryHook(func(ctx context.Context, _ Notice, d Delivery) {
			mu.Lock()
			got = append(got, d)
			mu.Unlock()
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	n.Dispatch(ctx, Notice{ConversationID: "c1"})
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := n.Wait(waitCtx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if a.calls.Load() != 3 {
		t.Fatalf("qstash attempts = %d, want 3", a.calls.Load())
	}
	if b.calls.Load() != 3 {
		t.Fatalf("nats attempts = %d, want 3", b.calls.Load())
	}
	if len(got) != 1 || !got[0].Sent || !got[0].Results["qstash"] || got[0].Results["nats"] {
		t.Fatalf("deliveries = %+v", got)
	}
}

func TestNotifyWithoutChannels(t *testing.T) {
	t.Parallel()

	if d := NewNotifier(Config{}, nil).Notify(context.Background(), Notice{ConversationID: "c1"}); d.Sent {
		t.Fatal("no channels cannot be sent")
	}
}

type fakeQStash struct {
	body  any
	dedup string
}

func (f *fakeQStash) Publish(ctx context.Context, body any, dedupID string) (string, error) {
	f.body, f.dedup = body, dedupID
	return "msg_1", nil
}

type fakeStream struct {
	subject string
	data    []byte
}

func (f *fakeStream) Subject(tenantID string) string { return "escalation." + tenantID }

func (f *fakeStream) Publish(ctx context.Context, subject string, data []byte) (uint64, error) {
	f.subject, f.data = subject, data
	return 7, nil
}

func TestChannelAdapters(t *testing.T) {
	t.Parallel()

	notice := Notice{ConversationID: "c9", TenantID: "glow", Reason: "angry"}

	q := &fakeQStash{}
	if err := NewQStashChannel(q).Send(context.Background(), notice); err != nil {
		t.Fatalf("qstash Send() error = %v", err)
	}
	if q.dedup != "escalation-c9" {
		t.Fatalf("dedup id = %q", q.dedup)
	}

	s := &fakeStream{}
	if err := NewNATSChannel(s).Send(context.Background(), notice); err != nil {
		t.Fatalf("nats Send() error = %v", err)
	}
	if s.subject != "escalation.glow" {
		t.Fatalf("subject = %q", s.subject)
	}
	var decoded Notice
	if err := json.Unmarshal(s.data, &decoded); err != nil || decoded.Reason != "angry" {
		t.Fatalf("payload = %s (%v)", s.data, err)
	}
}

func TestCannedReplies(t *testing.T) {
	t.Parallel()

	em := EmergencyReply(quickreply.Thai, "02-123-4567")
	if !em.Escalation.ShouldEscalate || em.Escalation.Reason != ReasonInferenceUnavailable {
		t.Fatalf("emergency escalation = %+v", em.Escalation)
	}
	if !strings.Contains(em.ResponseText, "ขออภัย") || !strings.Contains(em.ResponseText, "02-123-4567") {
		t.Fatalf("emergency text = %q", em.ResponseText)
	}

	h := HandoffReply("fr", "")
	if !strings.HasPrefix(h.ResponseText, "Thanks for your message.") {
		t.Fatalf("unknown language must fall back to English: %q", h.ResponseText)
	}
}

package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/pkg/backoff"
)

type fakeToolCallingModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	errs      []error
	calls     int
	maxTokens []int
	tools     []*schema.ToolInfo
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	common := einomodel.GetCommonOptions(&einomodel.Options{}, opts...)
	if common.MaxTokens != nil {
		f.maxTokens = append(f.maxTokens, *common.MaxTokens)
	}

	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	return f.responses[idx], nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.tools = tools
	return f, nil
}

func testConfig() Config {
	return Config{
		APIKey:             "k",
		Model:              "m",
		SmallMaxTokens:     300,
		MaxCompletionToken: 700,
		LargeMaxTokens:     1200,
		Retry:              backoff.Policy{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond},
	}
}

func TestInvokerRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		errs:      []error{errors.New("502 bad gateway"), nil},
		responses: []*schema.Message{nil, schema.AssistantMessage("hello", nil)},
	}
	inv, err := NewInvoker(fake, []*schema.ToolInfo{{Name: "track_order"}}, testConfig())
	if err != nil {
		t.Fatalf("NewInvoker() error = %v", err)
	}
	if len(fake.tools) != 1 {
		t.Fatalf("tools were not bound: %#v", fake.tools)
	}

	msg, err := inv.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")}, 300)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if msg.Content != "hello" {
		t.Fatalf("content = %q", msg.Content)
	}
	if fake.calls != 2 {
		t.Fatalf("calls = %d, want 2", fake.calls)
	}
	for _, mt := range fake.maxTokens {
		if mt != 300 {
			t.Fatalf("max tokens option = %d, want 300", mt)
		}
	}
}

func TestInvokerExhaustionIsUnavailable(t *testing.T) {
	t.Parallel()

	boom := errors.New("upstream down")
	fake := &fakeToolCallingModel{errs: []error{boom, boom, boom, boom}}
	inv, err := NewInvoker(fake, nil, testConfig())
	if err != nil {
		t.Fatalf("NewInvoker() error = %v", err)
	}

	_, err = inv.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")}, 0)
	if !errors.Is(err, contractx.ErrInferenceUnavailable) {
		t.Fatalf("expected ErrInferenceUnavailable, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if fake.calls != 3 {
		t.Fatalf("calls = %d, want 3", fake.calls)
	}
}

func TestInvokerCanceledContextStopsRetrying(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{errs: []error{context.Canceled, context.Canceled}}
	inv, err := NewInvoker(fake, nil, testConfig())
	if err != nil {
		t.Fatalf("NewInvoker() error = %v", err)
	}

	_, err = inv.Generate(context.Background(), nil, 0)
	if !errors.Is(err, contractx.ErrInferenceUnavailable) {
		t.Fatalf("expected ErrInferenceUnavailable, got %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("calls = %d, want 1", fake.calls)
	}
}

func TestNewInvokerRejectsNilModel(t *testing.T) {
	t.Parallel()

	if _, err := NewInvoker(nil, nil, testConfig()); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

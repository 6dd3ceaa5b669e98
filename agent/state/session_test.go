package state

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransitionTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to ConversationState
		wantErr  error
	}{
		{StateActive, StateEscalated, nil},
		{StateActive, StateEnded, nil},
		{StateActive, StateActive, nil},
		{StateEscalated, StateEscalated, nil},
		{StateEscalated, StateActive, ErrInvalidTransition},
		{StateEnded, StateActive, ErrInvalidTransition},
		{StateEscalated, StateEnded, ErrInvalidTransition},
		{StateEnded, StateEscalated, ErrInvalidTransition},
		{"PAUSED", StateActive, ErrUnknownState},
	}

	for _, tc := range cases {
		err := CanTransition(tc.from, tc.to)
		if tc.wantErr == nil && err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.wantErr, err)
		}
	}
}

func TestConversationTransitionRecordsReason(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewConversation("c1", "s1", "t1", "cust", "line", now)

	if err := c.Transition(StateEscalated, " angry customer ", now.Add(time.Minute)); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if c.State != StateEscalated {
		t.Fatalf("state = %s, want ESCALATED", c.State)
	}
	if c.StateReason != "angry customer" {
		t.Fatalf("reason = %q", c.StateReason)
	}

	if err := c.Transition(StateActive, "", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if c.State != StateEscalated {
		t.Fatalf("state reverted to %s", c.State)
	}
}

func TestConversationIsIdle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	c := NewConversation("c1", "s1", "t1", "cust", "line", now)

	if c.IsIdle(now.Add(10*time.Minute), 30*time.Minute) {
		t.Fatal("fresh conversation must not be idle")
	}
	if !c.IsIdle(now.Add(31*time.Minute), 30*time.Minute) {
		t.Fatal("expected idle after timeout")
	}
	if c.IsIdle(now.Add(31*time.Minute), 0) {
		t.Fatal("zero timeout disables the idle rule")
	}

	c.State = StateEscalated
	if c.IsIdle(now.Add(48*time.Hour), 30*time.Minute) {
		t.Fatal("only ACTIVE conversations can go idle")
	}
}

package responder

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"
)

const (
	StatePromptReady    = "prompt_ready"
	StateAwaitingModel  = "awaiting_model"
	StateToolRequested  = "tool_requested"
	StateExecutingTools = "executing_tools"
	StateFinal          = "final"
	StateFailed         = "failed"
)

const (
	EventSend       = "send"
	EventReplyFinal = "reply_final"
	EventReplyTools = "reply_tools"
	EventExecute    = "execute"
	EventRoundCap   = "round_cap"
	EventToolsDone  = "tools_done"
	EventFail       = "fail"
)

func loopEvents() fsm.Events {
	return fsm.Events{
		{Name: EventSend, Src: []string{StatePromptReady}, Dst: StateAwaitingModel},
		{Name: EventReplyFinal, Src: []string{StateAwaitingModel}, Dst: StateFinal},
		{Name: EventReplyTools, Src: []string{StateAwaitingModel}, Dst: StateToolRequested},
		{Name: EventExecute, Src: []string{StateToolRequested}, Dst: StateExecutingTools},
		{Name: EventRoundCap, Src: []string{StateToolRequested}, Dst: StateFinal},
		{Name: EventToolsDone, Src: []string{StateExecutingTools}, Dst: StateAwaitingModel},
		{
			Name: EventFail,
			Src:  []string{StateAwaitingModel, StateToolRequested, StateExecutingTools},
			Dst:  StateFailed,
		},
	}
}

// newLoopFSM only validates and traces transitions; the driver in Run decides
// which event fires next.
func newLoopFSM(sessionID string) *fsm.FSM {
	return fsm.NewFSM(
		StatePromptReady,
		loopEvents(),
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debug().
					Str("session_id", sessionID).
					Str("event", e.Event).
					Str("from_state", e.Src).
					Str("to_state", e.Dst).
					Msg("loop transition")
			},
		},
	)
}

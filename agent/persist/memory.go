package persist

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

var _ contractx.ConversationStore = (*MemoryStore)(nil)

// MemoryStore keeps everything in process. It backs local runs and tests;
// nothing survives a restart.
type MemoryStore struct {
	conversations *xsync.MapOf[string, statex.Conversation]
	// latest maps tenant/session to the newest conversation id.
	latest   *xsync.MapOf[string, string]
	messages *xsync.MapOf[string, []contractx.StoredMessage]
	// create serialises get-or-create so one session never forks.
	create sync.Mutex
	now    func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		conversations: xsync.NewMapOf[string, statex.Conversation](),
		latest:        xsync.NewMapOf[string, string](),
		messages:      xsync.NewMapOf[string, []contractx.StoredMessage](),
		now:           now,
	}
}

func sessionKey(id contractx.Identity) string {
	return id.TenantID + "/" + id.SessionID
}

func (s *MemoryStore) GetOrCreateSession(ctx context.Context, id contractx.Identity) (*statex.Conversation, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	s.create.Lock()
	defer s.create.Unlock()

	if convID, ok := s.latest.Load(sessionKey(id)); ok {
		if conv, ok := s.conversations.Load(convID); ok {
			return &conv, nil
		}
	}
	return s.start(id), nil
}

func (s *MemoryStore) StartConversation(ctx context.Context, id contractx.Identity) (*statex.Conversation, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	s.create.Lock()
	defer s.create.Unlock()
	return s.start(id), nil
}

func (s *MemoryStore) start(id contractx.Identity) *statex.Conversation {
	conv := newConversation(id, s.now())
	s.conversations.Store(conv.ID, *conv)
	s.latest.Store(sessionKey(id), conv.ID)
	return conv
}

func (s *MemoryStore) AppendMessages(ctx context.Context, conversationID string, msgs []contractx.StoredMessage) error {
	if conversationID == "" {
		return errEmptyConversationID
	}
	if len(msgs) == 0 {
		return nil
	}
	now := s.now().UTC()

	var found bool
	s.conversations.Compute(conversationID, func(old statex.Conversation, loaded bool) (statex.Conversation, bool) {
		if !loaded {
			return old, true
		}
		found = true
		old.Touch(now)
		return old, false
	})
	if !found {
		return fmt.Errorf("%w: %s", statex.ErrNotFound, conversationID)
	}

	prepared := prepareMessages(msgs, now)
	for i := range prepared {
		prepared[i].ConversationID = conversationID
	}
	s.messages.Compute(conversationID, func(old []contractx.StoredMessage, _ bool) ([]contractx.StoredMessage, bool) {
		next := make([]contractx.StoredMessage, 0, len(old)+len(prepared))
		next = append(next, old...)
		return append(next, prepared...), false
	})
	return nil
}

func (s *MemoryStore) SetConversationState(ctx context.Context, conversationID string, state statex.ConversationState, reason string) error {
	if conversationID == "" {
		return errEmptyConversationID
	}
	var err error
	found := false
	s.conversations.Compute(conversationID, func(old statex.Conversation, loaded bool) (statex.Conversation, bool) {
		if !loaded {
			return old, true
		}
		found = true
		err = old.Transition(state, reason, s.now())
		return old, false
	})
	if !found {
		return fmt.Errorf("%w: %s", statex.ErrNotFound, conversationID)
	}
	return err
}

func (s *MemoryStore) EndIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	var candidates []string
	s.conversations.Range(func(id string, c statex.Conversation) bool {
		if c.State == statex.StateActive && c.LastActivityAt.Before(cutoff) {
			candidates = append(candidates, id)
		}
		return true
	})

	ended := make([]string, 0, len(candidates))
	for _, id := range candidates {
		s.conversations.Compute(id, func(old statex.Conversation, loaded bool) (statex.Conversation, bool) {
			if !loaded {
				return old, true
			}
			// Activity may have arrived since the scan.
			if old.State == statex.StateActive && old.LastActivityAt.Before(cutoff) {
				if err := old.Transition(statex.StateEnded, statex.ReasonIdleTimeout, s.now()); err == nil {
					ended = append(ended, id)
				}
			}
			return old, false
		})
	}
	sort.Strings(ended)
	return ended, nil
}

// Messages returns a copy of the conversation's messages, oldest first.
func (s *MemoryStore) Messages(ctx context.Context, conversationID string) ([]contractx.StoredMessage, error) {
	msgs, _ := s.messages.Load(conversationID)
	return append([]contractx.StoredMessage(nil), msgs...), nil
}

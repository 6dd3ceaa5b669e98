// Package persist is the only writer of conversation and message state.
package persist

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Backend      string        `split_words:"true" default:"postgres"`
	DSN          string        `envconfig:"DSN"`
	MaxOpenConns int           `split_words:"true" default:"10"`
	DialTimeout  time.Duration `split_words:"true" default:"5s"`
	// Migrate creates missing tables on startup.
	Migrate bool `split_words:"true" default:"true"`
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendPostgres:
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("%w: database dsn is required for the postgres backend", contractx.ErrValidation)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown persistence backend %q", contractx.ErrValidation, c.Backend)
	}
}

var errEmptyConversationID = errors.New("conversation id is empty")

func validateIdentity(id contractx.Identity) error {
	if strings.TrimSpace(id.SessionID) == "" {
		return statex.ErrInvalidSession
	}
	return nil
}

func newConversation(id contractx.Identity, now time.Time) *statex.Conversation {
	return statex.NewConversation(uuid.NewString(), id.SessionID, id.TenantID, id.CustomerID, id.Channel, now)
}

// prepareMessages fills ids and timestamps the caller left empty.
func prepareMessages(msgs []contractx.StoredMessage, now time.Time) []contractx.StoredMessage {
	out := make([]contractx.StoredMessage, len(msgs))
	for i, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			// Keep batch order stable when rows share a clock reading.
			m.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out[i] = m
	}
	return out
}

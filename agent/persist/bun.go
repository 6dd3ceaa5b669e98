package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
)

var _ contractx.ConversationStore = (*BunStore)(nil)

type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

type Option func(*BunStore)

func WithClock(now func() time.Time) Option {
	return func(s *BunStore) { s.now = now }
}

// OpenPostgres connects through pgdriver. The returned DB is shared with the
// pgvector retrieval backend.
func OpenPostgres(cfg Config) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return bun.NewDB(sqldb, pgdialect.New())
}

func NewBunStore(db *bun.DB, opts ...Option) *BunStore {
	s := &BunStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the connection so the pgvector backend can share the pool.
func (s *BunStore) DB() bun.IDB { return s.db }

// Migrate creates the tables and indexes when they are missing.
func (s *BunStore) Migrate(ctx context.Context) error {
	models := []any{(*conversationRow)(nil), (*messageRow)(nil)}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{(*conversationRow)(nil), "conversations_session_idx", []string{"tenant_id", "session_id", "created_at"}},
		{(*conversationRow)(nil), "conversations_idle_idx", []string{"state", "last_activity_ms"}},
		{(*messageRow)(nil), "conversation_messages_conv_idx", []string{"conversation_id", "created_at"}},
	}
	for _, ix := range indexes {
		if _, err := s.db.NewCreateIndex().Model(ix.model).Index(ix.name).Column(ix.columns...).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", ix.name, err)
		}
	}
	return nil
}

func (s *BunStore) GetOrCreateSession(ctx context.Context, id contractx.Identity) (*statex.Conversation, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	var out *statex.Conversation
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(conversationRow)
		err := tx.NewSelect().Model(row).
			Where("tenant_id = ?", id.TenantID).
			Where("session_id = ?", id.SessionID).
			Order("created_at DESC").
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil:
			out = row.toConversation()
			return nil
		case errors.Is(err, sql.ErrNoRows):
			conv := newConversation(id, s.now())
			if _, err := tx.NewInsert().Model(toRow(conv)).Exec(ctx); err != nil {
				return fmt.Errorf("insert conversation: %w", err)
			}
			out = conv
			return nil
		default:
			return fmt.Errorf("select conversation: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BunStore) StartConversation(ctx context.Context, id contractx.Identity) (*statex.Conversation, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}
	conv := newConversation(id, s.now())
	if _, err := s.db.NewInsert().Model(toRow(conv)).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

func (s *BunStore) AppendMessages(ctx context.Context, conversationID string, msgs []contractx.StoredMessage) error {
	if conversationID == "" {
		return errEmptyConversationID
	}
	if len(msgs) == 0 {
		return nil
	}
	now := s.now().UTC()
	rows := toMessageRows(conversationID, prepareMessages(msgs, now))

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*conversationRow)(nil)).
			Set("updated_at = ?", now).
			Set("last_activity_ms = ?", now.UnixMilli()).
			Where("id = ?", conversationID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", statex.ErrNotFound, conversationID)
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert messages: %w", err)
		}
		return nil
	})
}

func (s *BunStore) SetConversationState(ctx context.Context, conversationID string, state statex.ConversationState, reason string) error {
	if conversationID == "" {
		return errEmptyConversationID
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(conversationRow)
		if err := tx.NewSelect().Model(row).Where("id = ?", conversationID).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", statex.ErrNotFound, conversationID)
			}
			return fmt.Errorf("select conversation: %w", err)
		}
		conv := row.toConversation()
		if conv.State == state {
			return nil
		}
		if err := conv.Transition(state, reason, s.now()); err != nil {
			return err
		}
		// The state guard makes a concurrent transition lose instead of
		// overwriting a terminal state.
		res, err := tx.NewUpdate().Model((*conversationRow)(nil)).
			Set("state = ?", string(conv.State)).
			Set("state_reason = ?", conv.StateReason).
			Set("updated_at = ?", conv.UpdatedAt).
			Where("id = ?", conversationID).
			Where("state = ?", row.State).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update conversation state: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s changed concurrently", statex.ErrInvalidTransition, conversationID)
		}
		return nil
	})
}

func (s *BunStore) EndIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model((*conversationRow)(nil)).
			Column("id").
			Where("state = ?", string(statex.StateActive)).
			Where("last_activity_ms < ?", cutoff.UnixMilli()).
			Scan(ctx, &ids); err != nil {
			return fmt.Errorf("select idle conversations: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.NewUpdate().Model((*conversationRow)(nil)).
			Set("state = ?", string(statex.StateEnded)).
			Set("state_reason = ?", statex.ReasonIdleTimeout).
			Set("updated_at = ?", s.now().UTC()).
			Where("id IN (?)", bun.In(ids)).
			Where("state = ?", string(statex.StateActive)).
			Exec(ctx); err != nil {
			return fmt.Errorf("end idle conversations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Messages lists a conversation's messages oldest first.
func (s *BunStore) Messages(ctx context.Context, conversationID string) ([]contractx.StoredMessage, error) {
	var rows []messageRow
	if err := s.db.NewSelect().Model(&rows).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	out := make([]contractx.StoredMessage, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.StoredMessage{
			ID:             r.ID,
			ConversationID: r.ConversationID,
			Role:           contractx.Role(r.Role),
			Content:        r.Content,
			Metadata:       r.Metadata,
			CreatedAt:      r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

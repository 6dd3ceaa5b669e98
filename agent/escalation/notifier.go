package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Concierge/pkg/backoff"
	"github.com/tanpawarit/Chative-Concierge/pkg/metrics"
)

var ErrNoChannels = errors.New("no notification channels configured")

type Config struct {
	SendTimeout time.Duration  `split_words:"true" default:"5s"`
	Retry       backoff.Policy `split_words:"true"`
	// ContactInfo is appended to the hand-off and emergency replies.
	ContactInfo string `split_words:"true" default:"call us at 02-000-0000"`
}

// Notice is what human agents receive when a conversation is handed over.
type Notice struct {
	ConversationID string    `json:"conversationId"`
	SessionID      string    `json:"sessionId"`
	TenantID       string    `json:"tenantId"`
	CustomerID     string    `json:"customerId,omitempty"`
	Channel        string    `json:"channel,omitempty"`
	Reason         string    `json:"reason"`
	LastMessage    string    `json:"lastMessage,omitempty"`
	At             time.Time `json:"at"`
}

// Channel is one independent delivery transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notice) error
}

// Delivery is the per-channel outcome. Sent holds when any channel succeeded.
type Delivery struct {
	ConversationID string          `json:"conversationId"`
	Results        map[string]bool `json:"results"`
	Sent           bool            `json:"sent"`
}

type NotifierOption func(*Notifier)

// WithDeliveryHook observes the final outcome of every dispatched notice.
func WithDeliveryHook(fn func(ctx context.Context, n Notice, d Delivery)) NotifierOption {
	return func(n *Notifier) { n.hook = fn }
}

type Notifier struct {
	channels []Channel
	cfg      Config
	hook     func(ctx context.Context, n Notice, d Delivery)
	wg       sync.WaitGroup
}

func NewNotifier(cfg Config, channels []Channel, opts ...NotifierOption) *Notifier {
	n := &Notifier{cfg: cfg}
	for _, c := range channels {
		if c != nil {
			n.channels = append(n.channels, c)
		}
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify makes one attempt per channel, channels in parallel.
func (n *Notifier) Notify(ctx context.Context, notice Notice) Delivery {
	return n.deliver(ctx, notice, backoff.Policy{Attempts: 1})
}

// Dispatch delivers in the background with the retry policy and returns
// immediately. The turn's cancellation does not reach the delivery.
func (n *Notifier) Dispatch(ctx context.Context, notice Notice) {
	detached := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		d := n.deliver(detached, notice, n.cfg.Retry)
		if n.hook != nil {
			n.hook(detached, notice, d)
		}
	}()
}

// Wait blocks until every dispatched notice has finished or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for notifications: %w", ctx.Err())
	}
}

func (n *Notifier) deliver(ctx context.Context, notice Notice, policy backoff.Policy) Delivery {
	d := Delivery{ConversationID: notice.ConversationID, Results: make(map[string]bool, len(n.channels))}
	logger := log.With().
		Str("conversation_id", notice.ConversationID).
		Str("tenant", notice.TenantID).
		Logger()
	if len(n.channels) == 0 {
		logger.Error().Err(ErrNoChannels).Msg("escalation notice dropped")
		return d
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ch := range n.channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := backoff.Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
				if n.cfg.SendTimeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, n.cfg.SendTimeout)
					defer cancel()
				}
				return struct{}{}, ch.Send(ctx, notice)
			}, backoff.Transient, func(attempt int, err error) {
				logger.Warn().Err(err).Str("channel", ch.Name()).Int("attempt", attempt).Msg("notification attempt failed")
			})

			outcome := "sent"
			if err != nil {
				outcome = "failed"
				logger.Error().Err(err).Str("channel", ch.Name()).Msg("notification channel failed")
			}
			metrics.Notifications.WithLabelValues(ch.Name(), outcome).Inc()

			mu.Lock()
			d.Results[ch.Name()] = err == nil
			if err == nil {
				d.Sent = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if !d.Sent {
		logger.Error().Interface("results", d.Results).Msg("escalation notice not delivered on any channel")
	}
	return d
}

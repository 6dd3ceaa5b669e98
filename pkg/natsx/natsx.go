// Package natsx wraps a NATS JetStream connection used as an escalation
// notification channel.
package natsx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Config struct {
	URL           string        `split_words:"true" default:"nats://127.0.0.1:4222"`
	Stream        string        `split_words:"true" default:"ESCALATIONS"`
	SubjectPrefix string        `split_words:"true" default:"escalation"`
	Timeout       time.Duration `split_words:"true" default:"5s"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("nats url is required")
	}
	if strings.TrimSpace(c.SubjectPrefix) == "" {
		return errors.New("nats subject prefix is required")
	}
	return nil
}

type Client struct {
	conn          *nats.Conn
	js            jetstream.JetStream
	stream        string
	subjectPrefix string
	timeout       time.Duration
}

func Connect(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	conn, err := nats.Connect(strings.TrimSpace(cfg.URL), nats.Timeout(timeout), nats.Name("concierge"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &Client{
		conn:          conn,
		js:            js,
		stream:        strings.TrimSpace(cfg.Stream),
		subjectPrefix: strings.TrimSuffix(strings.TrimSpace(cfg.SubjectPrefix), "."),
		timeout:       timeout,
	}, nil
}

// EnsureStream creates the notification stream when it does not exist yet.
func (c *Client) EnsureStream(ctx context.Context) error {
	if c.stream == "" {
		return nil
	}
	if _, err := c.js.Stream(ctx, c.stream); err == nil {
		return nil
	}
	_, err := c.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        c.stream,
		Subjects:    []string{c.subjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Human hand-off requests",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Subject returns the subject a tenant's escalations are published on.
func (c *Client) Subject(tenantID string) string {
	tenant := strings.TrimSpace(tenantID)
	if tenant == "" {
		tenant = "default"
	}
	return c.subjectPrefix + "." + tenant
}

// Publish sends data and waits for the JetStream ack.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ack, err := c.js.Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish message: %w", err)
	}
	return ack.Sequence, nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	c.conn.Close()
	return nil
}

package qstash

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type Config struct {
	URL         string        `split_words:"true" default:"https://qstash.upstash.io"`
	Token       string        `split_words:"true" required:"true"`
	Destination string        `split_words:"true" required:"true"`
	Retries     int           `split_words:"true" default:"3"`
	Timeout     time.Duration `split_words:"true" default:"10s"`
}

func (c Config) Validate() error {
	if _, err := url.ParseRequestURI(strings.TrimSpace(c.Destination)); err != nil {
		return fmt.Errorf("qstash destination: %w", err)
	}
	if c.Retries < 0 {
		return errors.New("qstash retries must be >= 0")
	}
	return nil
}

type Client struct {
	destination string
	retries     int
	http        *resty.Client
}

type PublishResponse struct {
	MessageID string `json:"messageId"`
}

type apiError struct {
	Error string `json:"error"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("qstash token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		destination: strings.TrimSpace(cfg.Destination),
		retries:     cfg.Retries,
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetAuthToken(token).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}

	return client, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Publish enqueues body for delivery to the configured destination. A
// non-empty dedupID lets QStash drop duplicates of the same hand-off.
func (c *Client) Publish(ctx context.Context, body any, dedupID string) (string, error) {
	if c == nil || c.http == nil {
		return "", errors.New("qstash client is nil")
	}
	if c.destination == "" {
		return "", errors.New("qstash destination is empty")
	}

	req := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&PublishResponse{}).
		SetError(&apiError{}).
		SetHeader("Upstash-Retries", strconv.Itoa(c.retries))
	if id := strings.TrimSpace(dedupID); id != "" {
		req.SetHeader("Upstash-Deduplication-Id", id)
	}

	resp, err := req.Post("/v2/publish/" + c.destination)
	if err != nil {
		return "", fmt.Errorf("qstash publish: %w", err)
	}
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*apiError); ok && apiErr.Error != "" {
			return "", fmt.Errorf("qstash publish status=%d: %s", resp.StatusCode(), apiErr.Error)
		}
		return "", fmt.Errorf("qstash publish status=%d body=%s", resp.StatusCode(), resp.String())
	}

	out, _ := resp.Result().(*PublishResponse)
	if out == nil {
		return "", nil
	}
	return out.MessageID, nil
}

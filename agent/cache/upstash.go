package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type UpstashConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// UpstashOption customizes UpstashStore.
type UpstashOption func(*UpstashStore)

// WithRestyClient replaces the underlying client. Base URL, token and
// timeout from the config are applied on top of it.
func WithRestyClient(client *resty.Client) UpstashOption {
	return func(s *UpstashStore) {
		if client != nil {
			s.http = client
		}
	}
}

// UpstashStore talks to Upstash Redis through its REST endpoint, which suits
// serverless deployments where a pooled TCP connection is not available.
type UpstashStore struct {
	http *resty.Client
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashStore(cfg UpstashConfig, opts ...UpstashOption) (*UpstashStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &UpstashStore{http: resty.New()}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	store.http.
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return store, nil
}

func (s *UpstashStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, ErrInvalidKey
	}
	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, false, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, false, nil
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, false, fmt.Errorf("decode cached payload: %w", err)
	}
	return []byte(encoded), true, nil
}

func (s *UpstashStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	cmd := []any{"SET", key, string(value)}
	if ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(ttl))
	}
	_, err := s.exec(ctx, cmd)
	return err
}

func (s *UpstashStore) Delete(ctx context.Context, key string) error {
	_, err := s.exec(ctx, []any{"DEL", key})
	return err
}

func (s *UpstashStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if s == nil || s.http == nil {
		return nil, ErrNilStore
	}
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(command).
		ForceContentType("application/json").
		SetResult(&redisRESTResponse{}).
		SetError(&redisRESTResponse{}).
		Post("")
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*redisRESTResponse); ok && apiErr.Error != "" {
			return nil, fmt.Errorf("redis http status=%d: %s", resp.StatusCode(), apiErr.Error)
		}
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode(), resp.String())
	}

	parsed, _ := resp.Result().(*redisRESTResponse)
	if parsed == nil {
		return nil, errors.New("decode redis response: empty body")
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return parsed, nil
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type Config struct {
	BaseURL string        `split_words:"true" required:"true"`
	APIKey  string        `split_words:"true"`
	Timeout time.Duration `split_words:"true" default:"8s"`
}

var _ Services = (*HTTPClient)(nil)

// HTTPClient calls the host application's domain API: POST {base}/tools/{op}.
type HTTPClient struct {
	http *resty.Client
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("domain api base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		client.SetAuthToken(key)
	}
	return &HTTPClient{http: client}, nil
}

func (c *HTTPClient) TrackOrder(ctx context.Context, in TrackOrderInput) (TrackOrderOutput, error) {
	var out TrackOrderOutput
	return out, c.call(ctx, "track_order", in, &out, false)
}

func (c *HTTPClient) CheckInventory(ctx context.Context, in CheckInventoryInput) (CheckInventoryOutput, error) {
	var out CheckInventoryOutput
	return out, c.call(ctx, "check_inventory", in, &out, false)
}

func (c *HTTPClient) CheckAvailability(ctx context.Context, in CheckAvailabilityInput) (CheckAvailabilityOutput, error) {
	var out CheckAvailabilityOutput
	if err := c.call(ctx, "check_availability", in, &out, false); err != nil {
		return out, err
	}
	if out.Slots == nil {
		out.Slots = []Slot{}
	}
	return out, nil
}

func (c *HTTPClient) CreateBooking(ctx context.Context, in CreateBookingInput) (CreateBookingOutput, error) {
	var out CreateBookingOutput
	return out, c.call(ctx, "create_booking", in, &out, true)
}

func (c *HTTPClient) IssuePaymentLink(ctx context.Context, in IssuePaymentLinkInput) (IssuePaymentLinkOutput, error) {
	var out IssuePaymentLinkOutput
	return out, c.call(ctx, "issue_payment_link", in, &out, true)
}

func (c *HTTPClient) TrackFunnelEvent(ctx context.Context, in TrackFunnelEventInput) (TrackFunnelEventOutput, error) {
	var out TrackFunnelEventOutput
	return out, c.call(ctx, "track_funnel_event", in, &out, false)
}

func (c *HTTPClient) call(ctx context.Context, op string, in, out any, mutating bool) error {
	req := c.http.R().
		SetContext(ctx).
		SetBody(in).
		SetResult(out).
		SetError(&apiError{})
	if mutating {
		key, err := idempotencyKey(op, in)
		if err != nil {
			return err
		}
		req.SetHeader("Idempotency-Key", key)
	}

	resp, err := req.Post("/tools/" + op)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*apiError); ok && apiErr != nil {
			msg := apiErr.Error
			if msg == "" {
				msg = apiErr.Message
			}
			if msg != "" {
				return fmt.Errorf("%s: status=%d: %s", op, resp.StatusCode(), msg)
			}
		}
		return fmt.Errorf("%s: status=%d", op, resp.StatusCode())
	}
	return nil
}

// idempotencyKey is stable for identical inputs within a conversation.
func idempotencyKey(op string, in any) (string, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("%s: encode idempotency key: %w", op, err)
	}
	sum := sha256.Sum256(append([]byte(op+":"), raw...))
	return hex.EncodeToString(sum[:16]), nil
}

// Package service declares the domain operations tools delegate to. Every
// mutating operation must be idempotent on the service side; the client sends
// an Idempotency-Key so repeated model calls cannot double-book or double-bill.
package service

import "context"

// Status is carried by every tool result.
type Status struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Identity fields are filled by the executor from the caller, never by the model.
type Identity struct {
	TenantID       string `json:"tenant_id"`
	CustomerID     string `json:"customer_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type TrackOrderInput struct {
	Identity
	OrderID string `json:"order_id"`
}

type TrackOrderOutput struct {
	Status
	OrderID     string `json:"order_id,omitempty"`
	OrderStatus string `json:"order_status,omitempty"`
	Carrier     string `json:"carrier,omitempty"`
	TrackingURL string `json:"tracking_url,omitempty"`
	ETA         string `json:"eta,omitempty"`
}

type CheckInventoryInput struct {
	Identity
	Product  string `json:"product"`
	Quantity int    `json:"quantity,omitempty"`
}

type CheckInventoryOutput struct {
	Status
	Product   string  `json:"product,omitempty"`
	InStock   bool    `json:"in_stock"`
	Available int     `json:"available"`
	Price     float64 `json:"price,omitempty"`
	Currency  string  `json:"currency,omitempty"`
}

type CheckAvailabilityInput struct {
	Identity
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type Slot struct {
	Start  string `json:"start"`
	End    string `json:"end,omitempty"`
	Branch string `json:"branch,omitempty"`
	Staff  string `json:"staff,omitempty"`
}

type CheckAvailabilityOutput struct {
	Status
	Service string `json:"service,omitempty"`
	Date    string `json:"date,omitempty"`
	Slots   []Slot `json:"slots"`
}

type CreateBookingInput struct {
	Identity
	Service       string `json:"service"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Branch        string `json:"branch,omitempty"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type CreateBookingOutput struct {
	Status
	BookingID string  `json:"booking_id,omitempty"`
	StartsAt  string  `json:"starts_at,omitempty"`
	Deposit   float64 `json:"deposit,omitempty"`
	Currency  string  `json:"currency,omitempty"`
}

type IssuePaymentLinkInput struct {
	Identity
	BookingID string  `json:"booking_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency,omitempty"`
}

type IssuePaymentLinkOutput struct {
	Status
	PaymentURL string `json:"payment_url,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

type TrackFunnelEventInput struct {
	Identity
	Stage  string `json:"stage"`
	Detail string `json:"detail,omitempty"`
}

type TrackFunnelEventOutput struct {
	Status
	Recorded bool `json:"recorded"`
}

// Services is the external contract the tool executor depends on.
type Services interface {
	TrackOrder(ctx context.Context, in TrackOrderInput) (TrackOrderOutput, error)
	CheckInventory(ctx context.Context, in CheckInventoryInput) (CheckInventoryOutput, error)
	CheckAvailability(ctx context.Context, in CheckAvailabilityInput) (CheckAvailabilityOutput, error)
	CreateBooking(ctx context.Context, in CreateBookingInput) (CreateBookingOutput, error)
	IssuePaymentLink(ctx context.Context, in IssuePaymentLinkInput) (IssuePaymentLinkOutput, error)
	TrackFunnelEvent(ctx context.Context, in TrackFunnelEventInput) (TrackFunnelEventOutput, error)
}

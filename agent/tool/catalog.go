package tool

import (
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	"github.com/tanpawarit/Chative-Concierge/agent/service"
)

var FunnelStages = []string{"awareness", "interest", "consideration", "intent", "booking", "purchase", "lost"}

func identityFrom(c contractx.Caller) service.Identity {
	return service.Identity{
		TenantID:       c.TenantID,
		CustomerID:     c.CustomerID,
		SessionID:      c.SessionID,
		ConversationID: c.ConversationID,
	}
}

// Catalog builds the full tool registry backed by svc.
func Catalog(svc service.Services) (*Registry, error) {
	builders := []func(service.Services) (Tool, error){
		trackOrderTool,
		checkInventoryTool,
		checkAvailabilityTool,
		createBookingTool,
		issuePaymentLinkTool,
		trackFunnelEventTool,
	}
	tools := make([]Tool, 0, len(builders))
	for _, b := range builders {
		t, err := b(svc)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return NewRegistry(tools...)
}

func trackOrderTool(svc service.Services) (Tool, error) {
	return New(TrackOrder,
		"Look up the shipping status of one of the customer's orders.",
		map[string]*schema.ParameterInfo{
			"order_id": {Type: schema.String, Desc: "Order number as given by the customer", Required: true},
		},
		func(in *service.TrackOrderInput, c contractx.Caller) { in.Identity = identityFrom(c) },
		svc.TrackOrder,
	)
}

func checkInventoryTool(svc service.Services) (Tool, error) {
	return New(CheckInventory,
		"Check stock level and price for a product.",
		map[string]*schema.ParameterInfo{
			"product":  {Type: schema.String, Desc: "Product name or SKU", Required: true},
			"quantity": {Type: schema.Integer, Desc: "Quantity the customer wants, defaults to 1"},
		},
		func(in *service.CheckInventoryInput, c contractx.Caller) {
			in.Identity = identityFrom(c)
			if in.Quantity <= 0 {
				in.Quantity = 1
			}
		},
		svc.CheckInventory,
	)
}

func checkAvailabilityTool(svc service.Services) (Tool, error) {
	return New(CheckAvailability,
		"List open appointment slots for a service on a date.",
		map[string]*schema.ParameterInfo{
			"service": {Type: schema.String, Desc: "Service or treatment name", Required: true},
			"date":    {Type: schema.String, Desc: "Date in YYYY-MM-DD", Required: true},
			"time":    {Type: schema.String, Desc: "Preferred time HH:MM, optional"},
			"branch":  {Type: schema.String, Desc: "Branch name, optional"},
		},
		func(in *service.CheckAvailabilityInput, c contractx.Caller) { in.Identity = identityFrom(c) },
		svc.CheckAvailability,
	)
}

func createBookingTool(svc service.Services) (Tool, error) {
	return New(CreateBooking,
		"Book an appointment slot after the customer confirmed service, date and time.",
		map[string]*schema.ParameterInfo{
			"service":        {Type: schema.String, Desc: "Service or treatment name", Required: true},
			"date":           {Type: schema.String, Desc: "Date in YYYY-MM-DD", Required: true},
			"time":           {Type: schema.String, Desc: "Time HH:MM", Required: true},
			"branch":         {Type: schema.String, Desc: "Branch name, optional"},
			"customer_name":  {Type: schema.String, Desc: "Name the booking is under", Required: true},
			"customer_phone": {Type: schema.String, Desc: "Contact phone number, optional"},
			"notes":          {Type: schema.String, Desc: "Anything the staff should know"},
		},
		func(in *service.CreateBookingInput, c contractx.Caller) { in.Identity = identityFrom(c) },
		svc.CreateBooking,
	)
}

func issuePaymentLinkTool(svc service.Services) (Tool, error) {
	return New(IssuePaymentLink,
		"Create a payment link for a confirmed booking.",
		map[string]*schema.ParameterInfo{
			"booking_id": {Type: schema.String, Desc: "Booking id returned by create_booking", Required: true},
			"amount":     {Type: schema.Number, Desc: "Amount to charge", Required: true},
			"currency":   {Type: schema.String, Desc: "ISO currency code, defaults to THB"},
		},
		func(in *service.IssuePaymentLinkInput, c contractx.Caller) {
			in.Identity = identityFrom(c)
			if in.Currency == "" {
				in.Currency = "THB"
			}
		},
		svc.IssuePaymentLink,
	)
}

func trackFunnelEventTool(svc service.Services) (Tool, error) {
	return New(TrackFunnelEvent,
		"Record where the customer is in the sales funnel. Call silently, never mention it.",
		map[string]*schema.ParameterInfo{
			"stage":  {Type: schema.String, Desc: "Funnel stage", Enum: FunnelStages, Required: true},
			"detail": {Type: schema.String, Desc: "Short note such as the product of interest"},
		},
		func(in *service.TrackFunnelEventInput, c contractx.Caller) { in.Identity = identityFrom(c) },
		svc.TrackFunnelEvent,
	)
}

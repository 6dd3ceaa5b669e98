package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPClientPostsToOperationPath(t *testing.T) {
	t.Parallel()

	var path, auth string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"2 slots","service":"facial","slots":[{"start":"10:00"},{"start":"14:30"}]}`))
	}))
	defer srv.Close()

	c, err := NewHTTPClient(Config{BaseURL: srv.URL + "/", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewHTTPClient() error = %v", err)
	}

	out, err := c.CheckAvailability(context.Background(), CheckAvailabilityInput{
		Identity: Identity{TenantID: "t1"},
		Service:  "facial",
		Date:     "2026-10-20",
	})
	if err != nil {
		t.Fatalf("CheckAvailability() error = %v", err)
	}
	if path != "/tools/check_availability" || auth != "Bearer k" {
		t.Fatalf("path=%q auth=%q", path, auth)
	}
	if body["tenant_id"] != "t1" || body["date"] != "2026-10-20" {
		t.Fatalf("body = %#v", body)
	}
	if !out.Success || len(out.Slots) != 2 || out.Slots[1].Start != "14:30" {
		t.Fatalf("out = %+v", out)
	}
}

func TestHTTPClientSendsStableIdempotencyKey(t *testing.T) {
	t.Parallel()

	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"booking_id":"b-1"}`))
	}))
	defer srv.Close()

	c, _ := NewHTTPClient(Config{BaseURL: srv.URL})
	in := CreateBookingInput{Identity: Identity{TenantID: "t", ConversationID: "c"}, Service: "facial", Date: "2026-10-20", Time: "10:00", CustomerName: "Ann"}
	for i := 0; i < 2; i++ {
		if _, err := c.CreateBooking(context.Background(), in); err != nil {
			t.Fatalf("CreateBooking() error = %v", err)
		}
	}
	if len(keys) != 2 || keys[0] == "" || keys[0] != keys[1] {
		t.Fatalf("idempotency keys = %v", keys)
	}
}

func TestHTTPClientErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"order not found"}`))
	}))
	defer srv.Close()

	c, _ := NewHTTPClient(Config{BaseURL: srv.URL})
	_, err := c.TrackOrder(context.Background(), TrackOrderInput{OrderID: "x"})
	if err == nil || !strings.Contains(err.Error(), "order not found") {
		t.Fatalf("expected api error, got %v", err)
	}
}

package billing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions/cs_123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk_test" {
			t.Errorf("unexpected auth header %q", auth)
		}
		fmt.Fprint(w, `{
			"id": "cs_123",
			"payment_status": "paid",
			"amount_total": 999,
			"customer_email": "u@example.com",
			"created": 1700000000,
			"metadata": {"credits": "50"}
		}`)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "sk_test")
	session, err := p.GetSession(context.Background(), "cs_123")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !session.Paid {
		t.Error("paid status lost")
	}
	if session.Credits != 50 {
		t.Errorf("credits = %d", session.Credits)
	}
	if session.AmountCents != 999 {
		t.Errorf("amount = %d", session.AmountCents)
	}
}

func TestFindRecentSessionSkipsUnpaidAndStale(t *testing.T) {
	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if email := r.URL.Query().Get("customer_email"); email != "u@example.com" {
			t.Errorf("customer_email = %q", email)
		}
		fmt.Fprintf(w, `{"data": [
			{"id": "cs_unpaid", "payment_status": "unpaid", "created": %d, "metadata": {"credits": "10"}},
			{"id": "cs_stale", "payment_status": "paid", "created": %d, "metadata": {"credits": "10"}},
			{"id": "cs_good", "payment_status": "paid", "created": %d, "metadata": {"credits": "25"}}
		]}`, now.Unix(), now.Add(-2*time.Hour).Unix(), now.Unix())
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "sk_test")
	session, err := p.FindRecentSession(context.Background(), "u@example.com", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if session == nil || session.ID != "cs_good" {
		t.Fatalf("expected cs_good, got %+v", session)
	}
	if session.Credits != 25 {
		t.Errorf("credits = %d", session.Credits)
	}
}

func TestFindRecentSessionNone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "sk_test")
	session, err := p.FindRecentSession(context.Background(), "u@example.com", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if session != nil {
		t.Errorf("expected nil, got %+v", session)
	}
}

func TestProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "sk_bad")
	if _, err := p.GetSession(context.Background(), "cs_123"); err == nil {
		t.Error("expected error on non-200 provider response")
	}
}

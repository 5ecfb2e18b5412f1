package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Session is a completed (or pending) checkout session at the payment
// provider. Credits comes from the session's metadata, set when the
// checkout was created.
type Session struct {
	ID            string
	Paid          bool
	AmountCents   int
	Credits       int
	CustomerEmail string
	CreatedAt     time.Time
}

// PaymentProvider looks up checkout sessions. The server never trusts a
// client-reported payment; it always re-reads the session from the
// provider before granting credits.
type PaymentProvider interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	FindRecentSession(ctx context.Context, email string, since time.Time) (*Session, error)
}

// HTTPProvider talks to the provider's REST API with a secret key.
type HTTPProvider struct {
	baseURL string
	key     string
	client  *http.Client
}

func NewHTTPProvider(baseURL, key string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		key:     key,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type sessionPayload struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int               `json:"amount_total"`
	CustomerEmail string            `json:"customer_email"`
	Created       int64             `json:"created"`
	Metadata      map[string]string `json:"metadata"`
}

type sessionListPayload struct {
	Data []sessionPayload `json:"data"`
}

func (p *HTTPProvider) GetSession(ctx context.Context, id string) (*Session, error) {
	var payload sessionPayload
	if err := p.get(ctx, "/v1/checkout/sessions/"+url.PathEscape(id), nil, &payload); err != nil {
		return nil, err
	}
	return sessionFromPayload(payload), nil
}

// FindRecentSession returns the newest paid session for the customer
// created after the cutoff, or nil when there is none.
func (p *HTTPProvider) FindRecentSession(ctx context.Context, email string, since time.Time) (*Session, error) {
	query := url.Values{}
	query.Set("customer_email", email)
	query.Set("created_after", strconv.FormatInt(since.Unix(), 10))
	query.Set("limit", "10")

	var payload sessionListPayload
	if err := p.get(ctx, "/v1/checkout/sessions", query, &payload); err != nil {
		return nil, err
	}
	for _, s := range payload.Data {
		session := sessionFromPayload(s)
		if session.Paid && session.CreatedAt.After(since) {
			return session, nil
		}
	}
	return nil, nil
}

func (p *HTTPProvider) get(ctx context.Context, path string, query url.Values, out any) error {
	target := p.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.key)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("call payment provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment provider returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

func sessionFromPayload(p sessionPayload) *Session {
	credits, _ := strconv.Atoi(p.Metadata["credits"])
	return &Session{
		ID:            p.ID,
		Paid:          p.PaymentStatus == "paid",
		AmountCents:   p.AmountTotal,
		Credits:       credits,
		CustomerEmail: p.CustomerEmail,
		CreatedAt:     time.Unix(p.Created, 0),
	}
}

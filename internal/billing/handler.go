package billing

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"toolhub-backend/internal/auth"
	"toolhub-backend/internal/credits"
	"toolhub-backend/internal/engine"
	"toolhub-backend/internal/store"
)

// Handler verifies completed checkouts and grants the purchased credits.
type Handler struct {
	store         *store.Store
	ledger        *credits.Ledger
	provider      PaymentProvider
	sessionWindow time.Duration
}

func NewHandler(s *store.Store, ledger *credits.Ledger, provider PaymentProvider, sessionWindow time.Duration) *Handler {
	return &Handler{store: s, ledger: ledger, provider: provider, sessionWindow: sessionWindow}
}

func RegisterBillingRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	billing := app.Group("/api/billing", middleware...)
	billing.Post("/verify", h.Verify)
}

// Verify handles POST /api/billing/verify. The client may pass the
// session id it got back from checkout; otherwise the provider is asked
// for the caller's most recent paid session inside the lookback window.
// Each provider session grants credits exactly once, enforced by the
// unique constraint on provider_session_id.
func (h *Handler) Verify(c *fiber.Ctx) error {
	user := auth.GetUser(c)
	if user == nil {
		return engine.UnauthorizedError("Missing auth token")
	}

	var body struct {
		SessionID string `json:"session_id"`
	}
	// Empty body is fine; fall back to the recent-session lookup.
	_ = c.BodyParser(&body)

	ctx := c.Context()
	var (
		session *Session
		err     error
	)
	if body.SessionID != "" {
		session, err = h.provider.GetSession(ctx, body.SessionID)
	} else {
		session, err = h.provider.FindRecentSession(ctx, user.Email, time.Now().Add(-h.sessionWindow))
	}
	if err != nil {
		log.Printf("ERROR: payment lookup for user %s: %v", user.ID, err)
		return engine.NewAppError("PROVIDER_UNAVAILABLE", 502, "Unable to verify payment right now")
	}
	if session == nil || !session.Paid {
		return engine.NewAppError("NO_PAYMENT_FOUND", 404, "No completed payment found")
	}
	if session.Credits <= 0 {
		return engine.NewAppError("INVALID_SESSION", 422, "Payment session carries no credit amount")
	}

	tx, err := h.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin verify tx: %w", err)
	}
	defer tx.Rollback()

	pb := h.store.Dialect.NewParamBuilder()
	_, err = store.Exec(ctx, tx,
		fmt.Sprintf(`INSERT INTO payments (id, user_id, provider_session_id, credits_granted, amount_cents)
		 VALUES (%s, %s, %s, %s, %s)`,
			pb.Add(store.GenerateUUID()), pb.Add(user.ID), pb.Add(session.ID),
			pb.Add(session.Credits), pb.Add(session.AmountCents)), pb.Params()...)
	if err != nil {
		if errors.Is(store.MapError(h.store.Dialect, err), store.ErrUniqueViolation) {
			// A concurrent or repeated verify already claimed this session.
			return engine.NewAppError("ALREADY_PROCESSED", 409, "This payment was already processed")
		}
		return fmt.Errorf("record payment: %w", err)
	}

	if err := h.ledger.Grant(ctx, tx, user.ID, session.Credits); err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit verify tx: %w", err)
	}

	balance, err := h.ledger.Get(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"credits_granted": session.Credits,
		"balance":         balance,
	}})
}

package credits

import (
	"context"
	"fmt"
	"time"

	"toolhub-backend/internal/store"
	"toolhub-backend/internal/webhook"
)

// Balance is a user's credit state.
type Balance struct {
	UserID         string     `json:"user_id"`
	Balance        int        `json:"balance"`
	Unlimited      bool       `json:"unlimited"`
	TotalPurchased int        `json:"total_purchased"`
	LastPurchaseAt *time.Time `json:"last_purchase_at,omitempty"`
}

// Ledger owns the credits table. Debit is an atomic
// decrement-with-floor-check: two concurrent runs can both pass the
// advisory HasCredits check, but only as many debits land as the
// balance covers.
type Ledger struct {
	store *store.Store
}

func NewLedger(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// Seed creates the credits row for a new user with the signup grant.
func (l *Ledger) Seed(ctx context.Context, q store.Querier, userID string, initial int) error {
	pb := l.store.Dialect.NewParamBuilder()
	_, err := store.Exec(ctx, q, fmt.Sprintf(
		`INSERT INTO credits (user_id, balance) VALUES (%s, %s)`,
		pb.Add(userID), pb.Add(initial)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("seed credits for %s: %w", userID, err)
	}
	return nil
}

// Get returns the user's balance.
func (l *Ledger) Get(ctx context.Context, userID string) (*Balance, error) {
	pb := l.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, l.store.DB, fmt.Sprintf(
		`SELECT user_id, balance, unlimited, total_purchased, last_purchase_at
		 FROM credits WHERE user_id = %s`, pb.Add(userID)),
		pb.Params()...)
	if err != nil {
		return nil, err
	}
	return balanceFromRow(row, l.store.Dialect.NeedsBoolFix()), nil
}

// HasCredits reports whether the user can afford the cost. Advisory:
// the authoritative check is the conditional update inside Debit.
func (l *Ledger) HasCredits(ctx context.Context, userID string, cost int) (bool, error) {
	b, err := l.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return b.Unlimited || b.Balance >= cost, nil
}

// Debit removes cost credits, or returns webhook.ErrInsufficientCredits
// if the floor check fails. Unlimited accounts always pass and keep
// their balance untouched.
func (l *Ledger) Debit(ctx context.Context, userID string, cost int) error {
	pb := l.store.Dialect.NewParamBuilder()
	costPh := pb.Add(cost)
	n, err := store.Exec(ctx, l.store.DB, fmt.Sprintf(
		`UPDATE credits
		 SET balance = CASE WHEN unlimited THEN balance ELSE balance - %s END,
		     updated_at = %s
		 WHERE user_id = %s AND (unlimited OR balance >= %s)`,
		costPh, l.store.Dialect.NowExpr(), pb.Add(userID), costPh),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("debit %d credits for %s: %w", cost, userID, err)
	}
	if n == 0 {
		return webhook.ErrInsufficientCredits
	}
	return nil
}

// Grant adds purchased credits and stamps the purchase time.
func (l *Ledger) Grant(ctx context.Context, q store.Querier, userID string, amount int) error {
	pb := l.store.Dialect.NewParamBuilder()
	amountPh := pb.Add(amount)
	n, err := store.Exec(ctx, q, fmt.Sprintf(
		`UPDATE credits
		 SET balance = balance + %s,
		     total_purchased = total_purchased + %s,
		     last_purchase_at = %s,
		     updated_at = %s
		 WHERE user_id = %s`,
		amountPh, amountPh, l.store.Dialect.NowExpr(), l.store.Dialect.NowExpr(), pb.Add(userID)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("grant %d credits to %s: %w", amount, userID, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetUnlimited toggles the unlimited flag on an account.
func (l *Ledger) SetUnlimited(ctx context.Context, userID string, unlimited bool) error {
	pb := l.store.Dialect.NewParamBuilder()
	n, err := store.Exec(ctx, l.store.DB, fmt.Sprintf(
		`UPDATE credits SET unlimited = %s, updated_at = %s WHERE user_id = %s`,
		pb.Add(unlimited), l.store.Dialect.NowExpr(), pb.Add(userID)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("set unlimited for %s: %w", userID, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func balanceFromRow(row map[string]any, boolFix bool) *Balance {
	if boolFix {
		store.NormalizeBooleans([]map[string]any{row}, []string{"unlimited"})
	}
	b := &Balance{}
	b.UserID, _ = row["user_id"].(string)
	b.Unlimited, _ = row["unlimited"].(bool)
	b.Balance = toInt(row["balance"])
	b.TotalPurchased = toInt(row["total_purchased"])
	if ts, ok := row["last_purchase_at"].(time.Time); ok {
		b.LastPurchaseAt = &ts
	}
	return b
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

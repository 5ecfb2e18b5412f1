package auth

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"time"

	"github.com/gofiber/fiber/v2"

	"toolhub-backend/internal/credits"
	"toolhub-backend/internal/engine"
	"toolhub-backend/internal/metadata"
	"toolhub-backend/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store         *store.Store
	ledger        *credits.Ledger
	jwtSecret     string
	signupCredits int
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *store.Store, ledger *credits.Ledger, jwtSecret string, signupCredits int) *AuthHandler {
	return &AuthHandler{store: s, ledger: ledger, jwtSecret: jwtSecret, signupCredits: signupCredits}
}

// Signup handles POST /api/auth/signup. New accounts are seeded with the
// configured starting balance in the same transaction that creates them.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}

	var details []engine.ErrorDetail
	if _, err := mail.ParseAddress(body.Email); err != nil {
		details = append(details, engine.ErrorDetail{Field: "email", Rule: "email", Message: "A valid email address is required"})
	}
	if len(body.Password) < 8 {
		details = append(details, engine.ErrorDetail{Field: "password", Rule: "min_length", Message: "Password must be at least 8 characters"})
	}
	if details != nil {
		return engine.ValidationError(details)
	}

	hash, err := HashPassword(body.Password)
	if err != nil {
		return engine.NewAppError("INTERNAL_ERROR", 500, "Failed to process password")
	}

	ctx := c.Context()
	tx, err := h.store.BeginTx(ctx)
	if err != nil {
		return engine.NewAppError("INTERNAL_ERROR", 500, "Failed to create account")
	}
	defer tx.Rollback()

	userID := store.GenerateUUID()
	pb := h.store.Dialect.NewParamBuilder()
	_, err = store.Exec(ctx, tx,
		"INSERT INTO users (id, email, password_hash, display_name, roles) VALUES ("+
			pb.Add(userID)+", "+pb.Add(body.Email)+", "+pb.Add(hash)+", "+
			pb.Add(body.DisplayName)+", "+pb.Add(h.store.Dialect.ArrayParam([]string{"user"}))+")",
		pb.Params()...)
	if err != nil {
		if errors.Is(store.MapError(h.store.Dialect, err), store.ErrUniqueViolation) {
			return engine.NewAppError("EMAIL_TAKEN", 409, "An account with this email already exists")
		}
		log.Printf("ERROR: create user: %v", err)
		return engine.NewAppError("INTERNAL_ERROR", 500, "Failed to create account")
	}

	// Seed the starting balance before the account becomes visible, so a
	// first tool run never races an async grant.
	if err := h.ledger.Seed(ctx, tx, userID, h.signupCredits); err != nil {
		log.Printf("ERROR: seed credits for user %s: %v", userID, err)
		return engine.NewAppError("INTERNAL_ERROR", 500, "Failed to create account")
	}

	pair, err := h.generateTokenPair(ctx, tx, userID, body.Email, []string{"user"})
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return engine.NewAppError("INTERNAL_ERROR", 500, "Failed to create account")
	}

	return c.Status(201).JSON(fiber.Map{"data": fiber.Map{
		"user":   fiber.Map{"id": userID, "email": body.Email, "roles": []string{"user"}},
		"tokens": pair,
	}})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	ctx := c.Context()
	user, err := h.findUserByEmail(ctx, body.Email)
	if err != nil {
		return engine.UnauthorizedError("Invalid email or password")
	}

	if active, ok := user["active"].(bool); ok && !active {
		return engine.UnauthorizedError("Account is disabled")
	}

	passwordHash, _ := user["password_hash"].(string)
	if !CheckPassword(body.Password, passwordHash) {
		return engine.UnauthorizedError("Invalid email or password")
	}

	userID, _ := user["id"].(string)
	email, _ := user["email"].(string)
	roles, _ := h.store.Dialect.ScanArray(user["roles"])

	pair, err := h.generateTokenPair(ctx, h.store.DB, userID, email, roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Refresh handles POST /api/auth/refresh. Tokens are single-use: the
// presented token is deleted and a new pair is issued.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	ctx := c.Context()
	pb := h.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, h.store.DB,
		`SELECT rt.id, rt.user_id, rt.expires_at, u.email, u.roles, u.active
		 FROM refresh_tokens rt
		 JOIN users u ON u.id = rt.user_id
		 WHERE rt.token = `+pb.Add(body.RefreshToken), pb.Params()...)
	if err != nil {
		return engine.UnauthorizedError("Invalid refresh token")
	}

	if time.Now().After(timeVal(row["expires_at"])) {
		pb = h.store.Dialect.NewParamBuilder()
		_, _ = store.Exec(ctx, h.store.DB,
			"DELETE FROM refresh_tokens WHERE token = "+pb.Add(body.RefreshToken), pb.Params()...)
		return engine.UnauthorizedError("Refresh token expired")
	}

	if h.store.Dialect.NeedsBoolFix() {
		store.NormalizeBooleans([]map[string]any{row}, []string{"active"})
	}
	if active, ok := row["active"].(bool); ok && !active {
		return engine.UnauthorizedError("Account is disabled")
	}

	// Rotate: delete the used token before issuing a new one.
	tokenID, _ := row["id"].(string)
	pb = h.store.Dialect.NewParamBuilder()
	_, _ = store.Exec(ctx, h.store.DB,
		"DELETE FROM refresh_tokens WHERE id = "+pb.Add(tokenID), pb.Params()...)

	userID, _ := row["user_id"].(string)
	email, _ := row["email"].(string)
	roles, _ := h.store.Dialect.ScanArray(row["roles"])

	pair, err := h.generateTokenPair(ctx, h.store.DB, userID, email, roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	pb := h.store.Dialect.NewParamBuilder()
	_, _ = store.Exec(c.Context(), h.store.DB,
		"DELETE FROM refresh_tokens WHERE token = "+pb.Add(body.RefreshToken), pb.Params()...)

	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, _ := c.Locals("user").(*metadata.UserContext)
	if user == nil {
		return engine.UnauthorizedError("Missing auth token")
	}
	return c.JSON(fiber.Map{"data": user})
}

// RegisterAuthRoutes registers auth routes on the given Fiber app.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler, authMW fiber.Handler) {
	auth := app.Group("/api/auth")
	auth.Post("/signup", h.Signup)
	auth.Post("/login", h.Login)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/logout", h.Logout)
	auth.Get("/me", authMW, h.Me)
}

// --- helpers ---

func (h *AuthHandler) findUserByEmail(ctx context.Context, email string) (map[string]any, error) {
	pb := h.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, h.store.DB,
		"SELECT id, email, password_hash, roles, active FROM users WHERE email = "+pb.Add(email),
		pb.Params()...)
	if err != nil {
		return nil, err
	}
	if h.store.Dialect.NeedsBoolFix() {
		store.NormalizeBooleans([]map[string]any{row}, []string{"active"})
	}
	return row, nil
}

func (h *AuthHandler) generateTokenPair(ctx context.Context, q store.Querier, userID, email string, roles []string) (*TokenPair, error) {
	accessToken, err := GenerateAccessToken(userID, email, roles, h.jwtSecret)
	if err != nil {
		return nil, engine.NewAppError("INTERNAL_ERROR", 500, "Failed to generate access token")
	}

	refreshToken := GenerateRefreshToken()
	expiresAt := time.Now().Add(RefreshTokenTTL).UTC().Format(time.RFC3339)

	pb := h.store.Dialect.NewParamBuilder()
	_, err = store.Exec(ctx, q,
		"INSERT INTO refresh_tokens (id, user_id, token, expires_at) VALUES ("+
			pb.Add(store.GenerateUUID())+", "+pb.Add(userID)+", "+pb.Add(refreshToken)+", "+pb.Add(expiresAt)+")",
		pb.Params()...)
	if err != nil {
		return nil, engine.NewAppError("INTERNAL_ERROR", 500, "Failed to store refresh token")
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func timeVal(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

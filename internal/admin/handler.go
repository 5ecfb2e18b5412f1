package admin

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"toolhub-backend/internal/credits"
	"toolhub-backend/internal/engine"
	"toolhub-backend/internal/metadata"
	"toolhub-backend/internal/store"
)

type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	ledger   *credits.Ledger
}

func NewHandler(s *store.Store, reg *metadata.Registry, ledger *credits.Ledger) *Handler {
	return &Handler{store: s, registry: reg, ledger: ledger}
}

func RegisterAdminRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	admin := app.Group("/api/_admin", middleware...)

	admin.Get("/users", h.ListUsers)
	admin.Put("/users/:id/roles", h.UpdateRoles)
	admin.Post("/users/:id/credits", h.GrantCredits)

	admin.Get("/tools/pending", h.ListPendingTools)
	admin.Post("/tools/:id/approve", h.ApproveTool)
	admin.Post("/tools/:id/reject", h.RejectTool)

	admin.Get("/tools/:id/rules", h.ListRules)
	admin.Post("/tools/:id/rules", h.CreateRule)
	admin.Delete("/rules/:id", h.DeleteRule)

	admin.Get("/events", h.ListEvents)
}

// --- Users ---

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	rows, err := store.QueryRows(c.Context(), h.store.DB,
		`SELECT u.id, u.email, u.display_name, u.roles, u.active, u.created_at,
		        c.balance, c.unlimited, c.total_purchased
		 FROM users u
		 LEFT JOIN credits c ON c.user_id = u.id
		 ORDER BY u.created_at DESC`)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	if h.store.Dialect.NeedsBoolFix() {
		store.NormalizeBooleans(rows, []string{"active", "unlimited"})
	}
	for _, row := range rows {
		if roles, err := h.store.Dialect.ScanArray(row["roles"]); err == nil {
			row["roles"] = roles
		}
	}
	return c.JSON(fiber.Map{"data": rows})
}

func (h *Handler) UpdateRoles(c *fiber.Ctx) error {
	var body struct {
		Roles []string `json:"roles"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Roles == nil {
		body.Roles = []string{}
	}

	pb := h.store.Dialect.NewParamBuilder()
	n, err := store.Exec(c.Context(), h.store.DB,
		"UPDATE users SET roles = "+pb.Add(h.store.Dialect.ArrayParam(body.Roles))+
			" WHERE id = "+pb.Add(c.Params("id")), pb.Params()...)
	if err != nil {
		return fmt.Errorf("update roles: %w", err)
	}
	if n == 0 {
		return engine.NotFoundError("user", c.Params("id"))
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "roles": body.Roles}})
}

// GrantCredits handles POST /api/_admin/users/:id/credits.
// Body: {"amount": 50} to grant, or {"unlimited": true} to toggle the
// unlimited flag.
func (h *Handler) GrantCredits(c *fiber.Ctx) error {
	var body struct {
		Amount    int   `json:"amount"`
		Unlimited *bool `json:"unlimited"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}

	userID := c.Params("id")
	ctx := c.Context()

	if body.Unlimited != nil {
		if err := h.ledger.SetUnlimited(ctx, userID, *body.Unlimited); err != nil {
			return fmt.Errorf("set unlimited: %w", err)
		}
	} else {
		if body.Amount <= 0 {
			return engine.ValidationError([]engine.ErrorDetail{
				{Field: "amount", Rule: "min", Message: "amount must be positive"},
			})
		}
		if err := h.ledger.Grant(ctx, h.store.DB, userID, body.Amount); err != nil {
			return fmt.Errorf("grant credits: %w", err)
		}
	}

	balance, err := h.ledger.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	return c.JSON(fiber.Map{"data": balance})
}

// --- Tool approval ---

func (h *Handler) ListPendingTools(c *fiber.Ctx) error {
	pending := []*metadata.Tool{}
	for _, t := range h.registry.AllTools() {
		if t.Status == metadata.ToolStatusPending {
			pending = append(pending, t)
		}
	}
	return c.JSON(fiber.Map{"data": pending})
}

func (h *Handler) ApproveTool(c *fiber.Ctx) error {
	return h.setToolStatus(c, metadata.ToolStatusApproved)
}

func (h *Handler) RejectTool(c *fiber.Ctx) error {
	return h.setToolStatus(c, metadata.ToolStatusRejected)
}

func (h *Handler) setToolStatus(c *fiber.Ctx, status string) error {
	toolID := c.Params("id")
	pb := h.store.Dialect.NewParamBuilder()
	n, err := store.Exec(c.Context(), h.store.DB,
		"UPDATE tools SET status = "+pb.Add(status)+", updated_at = "+h.store.Dialect.NowExpr()+
			" WHERE id = "+pb.Add(toolID), pb.Params()...)
	if err != nil {
		return fmt.Errorf("set tool status: %w", err)
	}
	if n == 0 {
		return engine.NotFoundError("tool", toolID)
	}

	if err := metadata.Reload(c.Context(), h.store, h.registry); err != nil {
		log.Printf("WARN: registry reload: %v", err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": toolID, "status": status}})
}

// --- Constraint rules ---

func (h *Handler) ListRules(c *fiber.Ctx) error {
	pb := h.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(c.Context(), h.store.DB,
		"SELECT id, tool_id, field, expression, message, active FROM tool_rules WHERE tool_id = "+
			pb.Add(c.Params("id"))+" ORDER BY created_at", pb.Params()...)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	if h.store.Dialect.NeedsBoolFix() {
		store.NormalizeBooleans(rows, []string{"active"})
	}
	return c.JSON(fiber.Map{"data": rows})
}

func (h *Handler) CreateRule(c *fiber.Ctx) error {
	toolID := c.Params("id")
	if h.registry.GetTool(toolID) == nil {
		return engine.NotFoundError("tool", toolID)
	}

	var body struct {
		Field      string `json:"field"`
		Expression string `json:"expression"`
		Message    string `json:"message"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Expression == "" {
		return engine.ValidationError([]engine.ErrorDetail{
			{Field: "expression", Rule: "required", Message: "expression is required"},
		})
	}
	// Reject expressions that will never compile instead of failing every
	// future run of the tool.
	if err := engine.CheckRuleExpression(body.Expression); err != nil {
		return engine.ValidationError([]engine.ErrorDetail{
			{Field: "expression", Rule: "syntax", Message: err.Error()},
		})
	}

	ruleID := store.GenerateUUID()
	pb := h.store.Dialect.NewParamBuilder()
	_, err := store.Exec(c.Context(), h.store.DB,
		fmt.Sprintf(`INSERT INTO tool_rules (id, tool_id, field, expression, message, active)
		 VALUES (%s, %s, %s, %s, %s, %s)`,
			pb.Add(ruleID), pb.Add(toolID), pb.Add(body.Field), pb.Add(body.Expression),
			pb.Add(body.Message), pb.Add(true)), pb.Params()...)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}

	if err := metadata.Reload(c.Context(), h.store, h.registry); err != nil {
		log.Printf("WARN: registry reload: %v", err)
	}
	return c.Status(201).JSON(fiber.Map{"data": fiber.Map{"id": ruleID, "tool_id": toolID}})
}

func (h *Handler) DeleteRule(c *fiber.Ctx) error {
	pb := h.store.Dialect.NewParamBuilder()
	n, err := store.Exec(c.Context(), h.store.DB,
		"DELETE FROM tool_rules WHERE id = "+pb.Add(c.Params("id")), pb.Params()...)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n == 0 {
		return engine.NotFoundError("rule", c.Params("id"))
	}

	if err := metadata.Reload(c.Context(), h.store, h.registry); err != nil {
		log.Printf("WARN: registry reload: %v", err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": c.Params("id")}})
}

// --- Events ---

func (h *Handler) ListEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}
	pb := h.store.Dialect.NewParamBuilder()
	rows, err := store.QueryRows(c.Context(), h.store.DB,
		"SELECT id, trace_id, span_id, parent_span_id, event_type, source, component, action, "+
			"entity, record_id, user_id, duration_ms, status, metadata, created_at FROM _events "+
			"ORDER BY created_at DESC LIMIT "+pb.Add(limit), pb.Params()...)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(fiber.Map{"data": rows})
}

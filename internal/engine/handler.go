package engine

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"toolhub-backend/internal/credits"
	"toolhub-backend/internal/metadata"
	"toolhub-backend/internal/store"
	"toolhub-backend/internal/usage"
	"toolhub-backend/internal/webhook"
)

// Handler serves the tool catalog, credit balance, and usage endpoints.
type Handler struct {
	store     *store.Store
	reg       *metadata.Registry
	ledger    *credits.Ledger
	usage     *usage.Recorder
	invoker   *webhook.Invoker
	maxUpload int64
}

func NewHandler(s *store.Store, reg *metadata.Registry, ledger *credits.Ledger, rec *usage.Recorder, invoker *webhook.Invoker, maxUpload int64) *Handler {
	return &Handler{store: s, reg: reg, ledger: ledger, usage: rec, invoker: invoker, maxUpload: maxUpload}
}

// currentUser extracts the UserContext set by the auth middleware.
func currentUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals("user").(*metadata.UserContext)
	return user
}

// ListTools handles GET /api/tools. Regular users see approved tools;
// admins see everything.
func (h *Handler) ListTools(c *fiber.Ctx) error {
	user := currentUser(c)
	if user != nil && user.IsAdmin() {
		return c.JSON(fiber.Map{"data": h.reg.AllTools()})
	}
	return c.JSON(fiber.Map{"data": h.reg.ApprovedTools()})
}

// GetTool handles GET /api/tools/:id.
func (h *Handler) GetTool(c *fiber.Ctx) error {
	tool := h.reg.GetTool(c.Params("id"))
	if tool == nil {
		return NotFoundError("tool", c.Params("id"))
	}
	user := currentUser(c)
	if !tool.IsApproved() && !user.IsAdmin() && tool.CreatedBy != user.ID {
		return NotFoundError("tool", c.Params("id"))
	}
	return c.JSON(fiber.Map{"data": tool})
}

type toolPayload struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	CreditCost  int             `json:"credit_cost"`
	WebhookURL  string          `json:"webhook_url"`
	Icon        string          `json:"icon"`
	OutputType  string          `json:"output_type"`
	InputFields json.RawMessage `json:"input_fields"`
}

func (p *toolPayload) validate() (*metadata.Tool, *AppError) {
	var details []ErrorDetail
	if p.Name == "" {
		details = append(details, ErrorDetail{Field: "name", Rule: "required", Message: "name is required"})
	}
	if p.CreditCost < 1 {
		details = append(details, ErrorDetail{Field: "credit_cost", Rule: "min", Message: "credit_cost must be at least 1"})
	}
	// Advisory authoring-time check; the authoritative check runs again
	// on every dispatch.
	if p.WebhookURL != "" {
		if v := webhook.ValidateURL(p.WebhookURL); !v.Valid {
			details = append(details, ErrorDetail{Field: "webhook_url", Rule: "webhook_url", Message: v.Reason})
		}
	}
	fields, err := metadata.NormalizeFields(p.InputFields)
	if err != nil {
		details = append(details, ErrorDetail{Field: "input_fields", Rule: "schema", Message: err.Error()})
	}
	if details != nil {
		return nil, ValidationError(details)
	}

	outputType := p.OutputType
	if outputType == "" {
		outputType = "smart"
	}
	return &metadata.Tool{
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		CreditCost:  p.CreditCost,
		WebhookURL:  p.WebhookURL,
		Icon:        p.Icon,
		OutputType:  outputType,
		InputFields: fields,
	}, nil
}

// CreateTool handles POST /api/tools. Non-admin submissions await approval.
func (h *Handler) CreateTool(c *fiber.Ctx) error {
	user := currentUser(c)

	var payload toolPayload
	if err := c.BodyParser(&payload); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	tool, appErr := payload.validate()
	if appErr != nil {
		return appErr
	}

	tool.ID = store.GenerateUUID()
	tool.CreatedBy = user.ID
	tool.Status = metadata.ToolStatusPending
	if user.IsAdmin() {
		tool.Status = metadata.ToolStatusApproved
	}

	fieldsJSON, _ := json.Marshal(tool.InputFields)
	pb := h.store.Dialect.NewParamBuilder()
	_, err := store.Exec(c.Context(), h.store.DB, fmt.Sprintf(
		`INSERT INTO tools (id, name, description, category, credit_cost, webhook_url, icon,
		 output_type, input_fields, status, created_by)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(tool.ID), pb.Add(tool.Name), pb.Add(tool.Description), pb.Add(tool.Category),
		pb.Add(tool.CreditCost), pb.Add(tool.WebhookURL), pb.Add(tool.Icon),
		pb.Add(tool.OutputType), pb.Add(string(fieldsJSON)), pb.Add(tool.Status), pb.Add(tool.CreatedBy)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("insert tool: %w", err)
	}

	h.reloadRegistry(c)
	return c.Status(201).JSON(fiber.Map{"data": h.reg.GetTool(tool.ID)})
}

// UpdateTool handles PUT /api/tools/:id. Owners and admins only; a
// non-admin edit drops the tool back to pending review.
func (h *Handler) UpdateTool(c *fiber.Ctx) error {
	user := currentUser(c)
	existing := h.reg.GetTool(c.Params("id"))
	if existing == nil {
		return NotFoundError("tool", c.Params("id"))
	}
	if !user.IsAdmin() && existing.CreatedBy != user.ID {
		return ForbiddenError("You can only edit your own tools")
	}

	var payload toolPayload
	if err := c.BodyParser(&payload); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	tool, appErr := payload.validate()
	if appErr != nil {
		return appErr
	}

	status := existing.Status
	if !user.IsAdmin() {
		status = metadata.ToolStatusPending
	}

	fieldsJSON, _ := json.Marshal(tool.InputFields)
	pb := h.store.Dialect.NewParamBuilder()
	n, err := store.Exec(c.Context(), h.store.DB, fmt.Sprintf(
		`UPDATE tools SET name = %s, description = %s, category = %s, credit_cost = %s,
		 webhook_url = %s, icon = %s, output_type = %s, input_fields = %s, status = %s,
		 updated_at = %s
		 WHERE id = %s`,
		pb.Add(tool.Name), pb.Add(tool.Description), pb.Add(tool.Category), pb.Add(tool.CreditCost),
		pb.Add(tool.WebhookURL), pb.Add(tool.Icon), pb.Add(tool.OutputType), pb.Add(string(fieldsJSON)),
		pb.Add(status), h.store.Dialect.NowExpr(), pb.Add(existing.ID)),
		pb.Params()...)
	if err != nil {
		return fmt.Errorf("update tool: %w", err)
	}
	if n == 0 {
		return NotFoundError("tool", existing.ID)
	}

	h.reloadRegistry(c)
	return c.JSON(fiber.Map{"data": h.reg.GetTool(existing.ID)})
}

// DeleteTool handles DELETE /api/tools/:id.
func (h *Handler) DeleteTool(c *fiber.Ctx) error {
	user := currentUser(c)
	existing := h.reg.GetTool(c.Params("id"))
	if existing == nil {
		return NotFoundError("tool", c.Params("id"))
	}
	if !user.IsAdmin() && existing.CreatedBy != user.ID {
		return ForbiddenError("You can only delete your own tools")
	}

	pb := h.store.Dialect.NewParamBuilder()
	if _, err := store.Exec(c.Context(), h.store.DB,
		fmt.Sprintf("DELETE FROM tools WHERE id = %s", pb.Add(existing.ID)), pb.Params()...); err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}

	h.reg.RemoveTool(existing.ID)
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": existing.ID}})
}

// GetCredits handles GET /api/credits — the caller's balance.
func (h *Handler) GetCredits(c *fiber.Ctx) error {
	user := currentUser(c)
	balance, err := h.ledger.Get(c.Context(), user.ID)
	if err != nil {
		return fmt.Errorf("get credits: %w", err)
	}
	return c.JSON(fiber.Map{"data": balance})
}

// ListUsage handles GET /api/usage — the caller's run history.
func (h *Handler) ListUsage(c *fiber.Ctx) error {
	user := currentUser(c)
	rows, err := h.usage.ListForUser(c.Context(), user.ID, c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rows})
}

// UsageStats handles GET /api/usage/stats.
func (h *Handler) UsageStats(c *fiber.Ctx) error {
	user := currentUser(c)
	stats, err := h.usage.StatsForUser(c.Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

func (h *Handler) reloadRegistry(c *fiber.Ctx) {
	if err := metadata.Reload(c.Context(), h.store, h.reg); err != nil {
		log.Printf("WARN: registry reload: %v", err)
	}
}

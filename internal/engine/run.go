package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"toolhub-backend/internal/metadata"
	"toolhub-backend/internal/webhook"
)

// RunTool handles POST /api/tools/:id/run. The body is either JSON
// {"input_data": {...}} or multipart form data when the tool declares
// file fields.
func (h *Handler) RunTool(c *fiber.Ctx) error {
	user := currentUser(c)
	tool := h.reg.GetTool(c.Params("id"))
	if tool == nil {
		return NotFoundError("tool", c.Params("id"))
	}
	if !tool.IsApproved() && !user.IsAdmin() && tool.CreatedBy != user.ID {
		return NotFoundError("tool", c.Params("id"))
	}

	values, appErr := h.parseInput(c, tool)
	if appErr != nil {
		return appErr
	}

	if details := ValidateInput(tool.InputFields, values); details != nil {
		return ValidationError(details)
	}
	if details := EvaluateRules(h.reg, tool.ID, values); details != nil {
		return ValidationError(details)
	}

	outcome := h.invoker.Invoke(c.UserContext(), tool, values, user)
	if !outcome.OK {
		return outcomeError(outcome)
	}
	return c.JSON(fiber.Map{"data": outcome.Body})
}

// parseInput builds the field-name -> value map from the request body.
// File parts become *webhook.BinaryValue; everything else stays a string
// or the decoded JSON value.
func (h *Handler) parseInput(c *fiber.Ctx, tool *metadata.Tool) (map[string]any, *AppError) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return h.parseMultipartInput(c, tool)
	}

	var payload struct {
		InputData map[string]any `json:"input_data"`
	}
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return nil, NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if payload.InputData == nil {
		payload.InputData = map[string]any{}
	}
	return payload.InputData, nil
}

func (h *Handler) parseMultipartInput(c *fiber.Ctx, tool *metadata.Tool) (map[string]any, *AppError) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, NewAppError("INVALID_PAYLOAD", 400, "Invalid multipart form")
	}

	values := make(map[string]any)
	for name, vals := range form.Value {
		if len(vals) > 0 {
			values[name] = vals[0]
		}
	}
	for name, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		if fh.Size > h.maxUpload {
			return nil, NewAppError("FILE_TOO_LARGE", 413,
				fmt.Sprintf("File %q exceeds the %d byte upload limit", fh.Filename, h.maxUpload))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, NewAppError("INVALID_PAYLOAD", 400, "Unable to read uploaded file")
		}
		data := make([]byte, fh.Size)
		if _, err := io.ReadFull(f, data); err != nil {
			f.Close()
			return nil, NewAppError("INVALID_PAYLOAD", 400, "Unable to read uploaded file")
		}
		f.Close()
		values[name] = &webhook.BinaryValue{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		}
	}
	return values, nil
}

// outcomeError maps a dispatch failure to the HTTP surface. Caller-side
// problems get 4xx; upstream problems get gateway statuses.
func outcomeError(o webhook.Outcome) *AppError {
	switch o.Kind {
	case webhook.FailInsufficientCredits:
		return NewAppError("INSUFFICIENT_CREDITS", fiber.StatusPaymentRequired, o.Message)
	case webhook.FailNotConfigured:
		return NewAppError("TOOL_NOT_CONFIGURED", fiber.StatusConflict, o.Message)
	case webhook.FailInvalidURL:
		return NewAppError("INVALID_WEBHOOK_URL", fiber.StatusBadRequest, o.Message)
	case webhook.FailBlockedDestination:
		return NewAppError("BLOCKED_DESTINATION", fiber.StatusBadRequest, o.Message)
	case webhook.FailTimeout:
		return NewAppError("WEBHOOK_TIMEOUT", fiber.StatusGatewayTimeout, o.Message)
	default:
		// connection_error, http_error, malformed_response
		return NewAppError("WEBHOOK_FAILED", fiber.StatusBadGateway, o.Message)
	}
}

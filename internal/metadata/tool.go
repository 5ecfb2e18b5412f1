package metadata

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tool statuses.
const (
	ToolStatusPending  = "pending"
	ToolStatusApproved = "approved"
	ToolStatusRejected = "rejected"
)

// Tool is a catalog entry wrapping a third-party webhook.
type Tool struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreditCost  int       `json:"credit_cost"`
	WebhookURL  string    `json:"webhook_url,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	OutputType  string    `json:"output_type,omitempty"`
	InputFields []Field   `json:"input_fields"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// IsApproved reports whether the tool is visible to regular users.
func (t *Tool) IsApproved() bool {
	return t.Status == ToolStatusApproved
}

// ToolFromRow builds a Tool from a store row map.
func ToolFromRow(row map[string]any) (*Tool, error) {
	t := &Tool{
		ID:          strVal(row["id"]),
		Name:        strVal(row["name"]),
		Description: strVal(row["description"]),
		Category:    strVal(row["category"]),
		WebhookURL:  strVal(row["webhook_url"]),
		Icon:        strVal(row["icon"]),
		OutputType:  strVal(row["output_type"]),
		Status:      strVal(row["status"]),
		CreatedBy:   strVal(row["created_by"]),
	}
	t.CreditCost = intVal(row["credit_cost"])
	if ts, ok := row["created_at"].(time.Time); ok {
		t.CreatedAt = ts
	}
	if ts, ok := row["updated_at"].(time.Time); ok {
		t.UpdatedAt = ts
	}

	var raw []byte
	switch v := row["input_fields"].(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		raw = nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("input_fields: %w", err)
		}
		raw = b
	}
	fields, err := NormalizeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", t.ID, err)
	}
	t.InputFields = fields
	return t, nil
}

func strVal(v any) string {
	s, _ := v.(string)
	return s
}

func intVal(v any) int {
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

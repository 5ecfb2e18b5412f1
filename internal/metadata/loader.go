package metadata

import (
	"context"
	"fmt"
	"log"

	"toolhub-backend/internal/store"
)

// LoadAll reads the tool catalog and rules from the database and populates the registry.
func LoadAll(ctx context.Context, s *store.Store, reg *Registry) error {
	tools, err := loadTools(ctx, s)
	if err != nil {
		return fmt.Errorf("load tools: %w", err)
	}

	rules, err := loadRules(ctx, s)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	reg.Load(tools, rules)
	log.Printf("Loaded %d tools, %d rules into registry", len(tools), len(rules))
	return nil
}

// Reload is an alias for LoadAll, called after admin mutations.
func Reload(ctx context.Context, s *store.Store, reg *Registry) error {
	return LoadAll(ctx, s, reg)
}

func loadTools(ctx context.Context, s *store.Store) ([]*Tool, error) {
	rows, err := store.QueryRows(ctx, s.DB,
		`SELECT id, name, description, category, credit_cost, webhook_url, icon,
		        output_type, input_fields, status, created_by, created_at, updated_at
		 FROM tools ORDER BY name`)
	if err != nil {
		return nil, err
	}

	var tools []*Tool
	for _, row := range rows {
		t, err := ToolFromRow(row)
		if err != nil {
			log.Printf("WARN: skipping tool with bad schema: %v", err)
			continue
		}
		tools = append(tools, t)
	}
	return tools, nil
}

func loadRules(ctx context.Context, s *store.Store) ([]*Rule, error) {
	rows, err := store.QueryRows(ctx, s.DB,
		`SELECT id, tool_id, field, expression, message, active FROM tool_rules`)
	if err != nil {
		return nil, err
	}
	if s.Dialect.NeedsBoolFix() {
		store.NormalizeBooleans(rows, []string{"active"})
	}

	var rules []*Rule
	for _, row := range rows {
		active, _ := row["active"].(bool)
		rules = append(rules, &Rule{
			ID:         strVal(row["id"]),
			ToolID:     strVal(row["tool_id"]),
			Field:      strVal(row["field"]),
			Expression: strVal(row["expression"]),
			Message:    strVal(row["message"]),
			Active:     active,
		})
	}
	return rules, nil
}

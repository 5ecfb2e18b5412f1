package metadata

import "testing"

func loadedRegistry() *Registry {
	reg := NewRegistry()
	reg.Load(
		[]*Tool{
			{ID: "t1", Name: "Bravo", Status: ToolStatusApproved},
			{ID: "t2", Name: "Alpha", Status: ToolStatusPending},
			{ID: "t3", Name: "Charlie", Status: ToolStatusApproved},
		},
		[]*Rule{
			{ID: "r1", ToolID: "t1", Expression: "true", Active: true},
			{ID: "r2", ToolID: "t1", Expression: "true", Active: false},
		},
	)
	return reg
}

func TestRegistryAllToolsSorted(t *testing.T) {
	tools := loadedRegistry().AllTools()
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}
	if tools[0].Name != "Alpha" || tools[1].Name != "Bravo" || tools[2].Name != "Charlie" {
		t.Errorf("not sorted by name: %s,%s,%s", tools[0].Name, tools[1].Name, tools[2].Name)
	}
}

func TestRegistryApprovedTools(t *testing.T) {
	approved := loadedRegistry().ApprovedTools()
	if len(approved) != 2 {
		t.Fatalf("expected 2 approved tools, got %d", len(approved))
	}
	for _, tool := range approved {
		if !tool.IsApproved() {
			t.Errorf("unapproved tool leaked: %+v", tool)
		}
	}
}

func TestRegistryRulesFilterInactive(t *testing.T) {
	rules := loadedRegistry().GetRulesForTool("t1")
	if len(rules) != 1 {
		t.Fatalf("expected 1 active rule, got %d", len(rules))
	}
	if rules[0].ID != "r1" {
		t.Errorf("wrong rule: %s", rules[0].ID)
	}
}

func TestRegistryRemoveTool(t *testing.T) {
	reg := loadedRegistry()
	reg.RemoveTool("t1")
	if reg.GetTool("t1") != nil {
		t.Error("tool still present after removal")
	}
	if rules := reg.GetRulesForTool("t1"); rules != nil {
		t.Errorf("rules still present after removal: %+v", rules)
	}
}

func TestToolFromRow(t *testing.T) {
	row := map[string]any{
		"id":           "t9",
		"name":         "Translator",
		"credit_cost":  int64(2),
		"webhook_url":  "https://hooks.example.com/translate",
		"status":       "approved",
		"input_fields": `[{"name": "text", "type": "textarea", "required": true}]`,
	}
	tool, err := ToolFromRow(row)
	if err != nil {
		t.Fatalf("from row: %v", err)
	}
	if tool.CreditCost != 2 {
		t.Errorf("credit cost = %d", tool.CreditCost)
	}
	if len(tool.InputFields) != 1 || tool.InputFields[0].Name != "text" {
		t.Errorf("input fields = %+v", tool.InputFields)
	}
	if !tool.IsApproved() {
		t.Error("status lost")
	}
}

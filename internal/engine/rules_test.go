package engine

import (
	"testing"

	"toolhub-backend/internal/metadata"
)

func registryWithRules(rules ...*metadata.Rule) *metadata.Registry {
	reg := metadata.NewRegistry()
	reg.Load([]*metadata.Tool{{ID: "tool-1", Name: "t"}}, rules)
	return reg
}

func TestEvaluateRulesPass(t *testing.T) {
	reg := registryWithRules(&metadata.Rule{
		ID: "r1", ToolID: "tool-1", Field: "count",
		Expression: `int(input.count) <= 10`,
		Message:    "count must be at most 10",
		Active:     true,
	})

	if details := EvaluateRules(reg, "tool-1", map[string]any{"count": 5}); details != nil {
		t.Errorf("expected pass, got %+v", details)
	}
}

func TestEvaluateRulesFailUsesConfiguredMessage(t *testing.T) {
	reg := registryWithRules(&metadata.Rule{
		ID: "r1", ToolID: "tool-1", Field: "count",
		Expression: `int(input.count) <= 10`,
		Message:    "count must be at most 10",
		Active:     true,
	})

	details := EvaluateRules(reg, "tool-1", map[string]any{"count": 50})
	if len(details) != 1 {
		t.Fatalf("expected 1 failure, got %+v", details)
	}
	if details[0].Message != "count must be at most 10" {
		t.Errorf("unexpected message %q", details[0].Message)
	}
	if details[0].Field != "count" {
		t.Errorf("unexpected field %q", details[0].Field)
	}
}

func TestEvaluateRulesInactiveSkipped(t *testing.T) {
	reg := registryWithRules(&metadata.Rule{
		ID: "r1", ToolID: "tool-1", Field: "count",
		Expression: `false`,
		Active:     false,
	})

	if details := EvaluateRules(reg, "tool-1", map[string]any{"count": 1}); details != nil {
		t.Errorf("inactive rule evaluated: %+v", details)
	}
}

func TestEvaluateRulesStringFunctions(t *testing.T) {
	reg := registryWithRules(&metadata.Rule{
		ID: "r1", ToolID: "tool-1", Field: "prompt",
		Expression: `len(input.prompt) >= 3 && !(input.prompt contains "forbidden")`,
		Message:    "prompt is too short or contains a banned word",
		Active:     true,
	})

	if details := EvaluateRules(reg, "tool-1", map[string]any{"prompt": "summarize this"}); details != nil {
		t.Errorf("expected pass, got %+v", details)
	}
	if details := EvaluateRules(reg, "tool-1", map[string]any{"prompt": "forbidden text"}); len(details) != 1 {
		t.Errorf("expected failure, got %+v", details)
	}
}

func TestEvaluateRulesCompileCache(t *testing.T) {
	rule := &metadata.Rule{
		ID: "r1", ToolID: "tool-1", Field: "count",
		Expression: `int(input.count) > 0`,
		Active:     true,
	}
	reg := registryWithRules(rule)

	EvaluateRules(reg, "tool-1", map[string]any{"count": 1})
	if rule.Compiled == nil {
		t.Fatal("expected compiled program to be cached")
	}
	first := rule.Compiled
	EvaluateRules(reg, "tool-1", map[string]any{"count": 2})
	if rule.Compiled != first {
		t.Error("cached program was recompiled")
	}
}

func TestCheckRuleExpression(t *testing.T) {
	if err := CheckRuleExpression(`int(input.count) < 5`); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := CheckRuleExpression(`input.count <`); err == nil {
		t.Error("broken expression accepted")
	}
}

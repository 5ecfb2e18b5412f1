package engine

import (
	"fmt"

	"github.com/expr-lang/expr"

	"toolhub-backend/internal/metadata"
)

// CheckRuleExpression compiles an expression without running it, for
// validation at authoring time.
func CheckRuleExpression(expression string) error {
	_, err := expr.Compile(expression, expr.AsBool())
	return err
}

// EvaluateRules runs the tool's active constraint rules against the
// validated input map. Each rule is a boolean expression over "input";
// a rule that evaluates to false fails with its configured message.
// Programs are lazily compiled and cached on the rule.
func EvaluateRules(reg *metadata.Registry, toolID string, values map[string]any) []ErrorDetail {
	rules := reg.GetRulesForTool(toolID)
	if len(rules) == 0 {
		return nil
	}

	env := map[string]any{"input": values}

	var details []ErrorDetail
	for _, r := range rules {
		if r.Compiled == nil {
			prog, err := expr.Compile(r.Expression, expr.AsBool())
			if err != nil {
				details = append(details, ErrorDetail{
					Field: r.Field, Rule: "expression",
					Message: fmt.Sprintf("rule %s does not compile: %v", r.ID, err),
				})
				continue
			}
			r.Compiled = prog
		}

		result, err := expr.Run(r.Compiled, env)
		if err != nil {
			details = append(details, ErrorDetail{
				Field: r.Field, Rule: "expression",
				Message: fmt.Sprintf("rule %s failed to evaluate: %v", r.ID, err),
			})
			continue
		}
		ok, _ := result.(bool)
		if !ok {
			msg := r.Message
			if msg == "" {
				msg = fmt.Sprintf("input does not satisfy rule %s", r.ID)
			}
			details = append(details, ErrorDetail{Field: r.Field, Rule: "constraint", Message: msg})
		}
	}
	return details
}

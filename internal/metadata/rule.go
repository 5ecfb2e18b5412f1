package metadata

import "github.com/expr-lang/expr/vm"

// Rule is an admin-authored constraint on a tool's input values,
// expressed as a boolean expression over the input map.
type Rule struct {
	ID         string `json:"id"`
	ToolID     string `json:"tool_id"`
	Field      string `json:"field,omitempty"`
	Expression string `json:"expression"`
	Message    string `json:"message,omitempty"`
	Active     bool   `json:"active"`

	// Compiled is the lazily compiled program, cached after first use.
	Compiled *vm.Program `json:"-"`
}

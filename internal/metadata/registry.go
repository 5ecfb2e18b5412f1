package metadata

import (
	"sort"
	"sync"
)

// Registry is an in-memory cache of the tool catalog and its rules,
// loaded at startup and refreshed after admin mutations.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]*Tool
	rulesByTool map[string][]*Rule
}

func NewRegistry() *Registry {
	return &Registry{
		tools:       make(map[string]*Tool),
		rulesByTool: make(map[string][]*Rule),
	}
}

// Load replaces the registry contents.
func (r *Registry) Load(tools []*Tool, rules []*Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]*Tool, len(tools))
	for _, t := range tools {
		r.tools[t.ID] = t
	}
	r.rulesByTool = make(map[string][]*Rule)
	for _, rule := range rules {
		r.rulesByTool[rule.ToolID] = append(r.rulesByTool[rule.ToolID], rule)
	}
}

// GetTool returns the tool with the given id, or nil.
func (r *Registry) GetTool(id string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[id]
}

// AllTools returns every registered tool, sorted by name.
func (r *Registry) AllTools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// ApprovedTools returns the tools visible to regular users, sorted by name.
func (r *Registry) ApprovedTools() []*Tool {
	all := r.AllTools()
	approved := all[:0]
	for _, t := range all {
		if t.IsApproved() {
			approved = append(approved, t)
		}
	}
	return approved
}

// UpsertTool adds or replaces a single tool.
func (r *Registry) UpsertTool(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.ID] = t
}

// RemoveTool deletes a tool and its rules.
func (r *Registry) RemoveTool(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, id)
	delete(r.rulesByTool, id)
}

// GetRulesForTool returns the active rules for a tool.
func (r *Registry) GetRulesForTool(toolID string) []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var active []*Rule
	for _, rule := range r.rulesByTool[toolID] {
		if rule.Active {
			active = append(active, rule)
		}
	}
	return active
}

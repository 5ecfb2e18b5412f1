package metadata

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Field describes one input field of a tool's form schema.
type Field struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // text, textarea, number, email, url, select, file
	Label       string   `json:"label,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty"` // for select
	Accept      string   `json:"accept,omitempty"`  // for file: ".pdf,.csv"
}

// MaxLen returns the maximum accepted character count for string values.
func (f Field) MaxLen() int {
	if f.Type == "textarea" {
		return 10000
	}
	return 1000
}

// IsFile returns true for binary upload fields.
func (f Field) IsFile() bool {
	return f.Type == "file"
}

// DisplayName returns the label if set, otherwise the field name.
func (f Field) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// NormalizeFields parses a stored input_fields value into an ordered list.
// Historically the schema was stored either as an array of field objects or
// as a map of name -> config; both shapes are accepted at this boundary so
// the rest of the code only ever sees the list form. Map entries are
// ordered by name since the map form carries no ordering.
func NormalizeFields(raw []byte) ([]Field, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var list []Field
	if err := json.Unmarshal(raw, &list); err == nil {
		for i, f := range list {
			if f.Name == "" {
				return nil, fmt.Errorf("input field %d has no name", i)
			}
		}
		return list, nil
	}

	var byName map[string]Field
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, fmt.Errorf("input_fields is neither an array nor a map: %w", err)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(byName))
	for _, name := range names {
		f := byName[name]
		f.Name = name
		fields = append(fields, f)
	}
	return fields, nil
}

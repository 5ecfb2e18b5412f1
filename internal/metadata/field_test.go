package metadata

import "testing"

func TestNormalizeFieldsArrayForm(t *testing.T) {
	raw := `[
		{"name": "prompt", "type": "textarea", "required": true},
		{"name": "tone", "type": "select", "options": ["formal", "casual"]}
	]`
	fields, err := NormalizeFields([]byte(raw))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Name != "prompt" || !fields[0].Required {
		t.Errorf("unexpected first field: %+v", fields[0])
	}
	if len(fields[1].Options) != 2 {
		t.Errorf("options lost: %+v", fields[1])
	}
}

func TestNormalizeFieldsMapForm(t *testing.T) {
	raw := `{
		"zeta": {"type": "text"},
		"alpha": {"type": "number", "required": true}
	}`
	fields, err := NormalizeFields([]byte(raw))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	// Map form is ordered by name.
	if fields[0].Name != "alpha" || fields[1].Name != "zeta" {
		t.Errorf("expected alpha,zeta order, got %s,%s", fields[0].Name, fields[1].Name)
	}
	if !fields[0].Required || fields[0].Type != "number" {
		t.Errorf("map entry config lost: %+v", fields[0])
	}
}

func TestNormalizeFieldsRejectsNamelessArrayEntry(t *testing.T) {
	if _, err := NormalizeFields([]byte(`[{"type": "text"}]`)); err == nil {
		t.Error("array entry without a name should be rejected")
	}
}

func TestNormalizeFieldsEmpty(t *testing.T) {
	fields, err := NormalizeFields(nil)
	if err != nil || fields != nil {
		t.Errorf("nil input: fields=%v err=%v", fields, err)
	}
}

func TestNormalizeFieldsGarbage(t *testing.T) {
	if _, err := NormalizeFields([]byte(`"just a string"`)); err == nil {
		t.Error("non-schema JSON should be rejected")
	}
}

func TestFieldMaxLen(t *testing.T) {
	if got := (Field{Type: "textarea"}).MaxLen(); got != 10000 {
		t.Errorf("textarea max = %d", got)
	}
	if got := (Field{Type: "text"}).MaxLen(); got != 1000 {
		t.Errorf("text max = %d", got)
	}
}

func TestFieldDisplayName(t *testing.T) {
	if got := (Field{Name: "q", Label: "Question"}).DisplayName(); got != "Question" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := (Field{Name: "q"}).DisplayName(); got != "q" {
		t.Errorf("DisplayName = %q", got)
	}
}

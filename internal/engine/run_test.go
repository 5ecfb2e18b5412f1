package engine

import (
	"encoding/json"
	"testing"

	"toolhub-backend/internal/webhook"
)

func TestOutcomeErrorMapping(t *testing.T) {
	cases := []struct {
		kind   webhook.FailureKind
		status int
		code   string
	}{
		{webhook.FailInsufficientCredits, 402, "INSUFFICIENT_CREDITS"},
		{webhook.FailNotConfigured, 409, "TOOL_NOT_CONFIGURED"},
		{webhook.FailInvalidURL, 400, "INVALID_WEBHOOK_URL"},
		{webhook.FailBlockedDestination, 400, "BLOCKED_DESTINATION"},
		{webhook.FailTimeout, 504, "WEBHOOK_TIMEOUT"},
		{webhook.FailConnection, 502, "WEBHOOK_FAILED"},
		{webhook.FailHTTP, 502, "WEBHOOK_FAILED"},
		{webhook.FailMalformedResponse, 502, "WEBHOOK_FAILED"},
	}
	for _, tc := range cases {
		appErr := outcomeError(webhook.Fail(tc.kind, "boom"))
		if appErr.Status != tc.status {
			t.Errorf("%s: status = %d, want %d", tc.kind, appErr.Status, tc.status)
		}
		if appErr.Code != tc.code {
			t.Errorf("%s: code = %s, want %s", tc.kind, appErr.Code, tc.code)
		}
		if appErr.Message != "boom" {
			t.Errorf("%s: message lost: %q", tc.kind, appErr.Message)
		}
	}
}

func TestToolPayloadValidate(t *testing.T) {
	payload := toolPayload{
		Name:        "Summarizer",
		CreditCost:  2,
		WebhookURL:  "https://hooks.example.com/run",
		InputFields: json.RawMessage(`[{"name": "prompt", "type": "textarea"}]`),
	}
	tool, appErr := payload.validate()
	if appErr != nil {
		t.Fatalf("valid payload rejected: %+v", appErr)
	}
	if tool.OutputType != "smart" {
		t.Errorf("default output type = %s", tool.OutputType)
	}
	if len(tool.InputFields) != 1 {
		t.Errorf("input fields = %+v", tool.InputFields)
	}
}

func TestToolPayloadValidateCollectsErrors(t *testing.T) {
	payload := toolPayload{
		Name:        "",
		CreditCost:  0,
		WebhookURL:  "http://insecure.example.com",
		InputFields: json.RawMessage(`[{"type": "text"}]`),
	}
	_, appErr := payload.validate()
	if appErr == nil {
		t.Fatal("invalid payload accepted")
	}
	if appErr.Status != 422 {
		t.Errorf("status = %d", appErr.Status)
	}
	seen := map[string]bool{}
	for _, d := range appErr.Details {
		seen[d.Field] = true
	}
	for _, field := range []string{"name", "credit_cost", "webhook_url", "input_fields"} {
		if !seen[field] {
			t.Errorf("missing detail for %s: %+v", field, appErr.Details)
		}
	}
}

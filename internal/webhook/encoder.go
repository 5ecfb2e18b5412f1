package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"time"

	"toolhub-backend/internal/metadata"
)

// BinaryValue is a file input forwarded to the webhook. It is held in
// memory for the single outbound request and never persisted.
type BinaryValue struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RequestMeta identifies the invocation to the receiving webhook.
type RequestMeta struct {
	ToolName string
	CallerID string
}

// EncodedRequest is the wire-ready body for one dispatch attempt.
type EncodedRequest struct {
	ContentType string
	Body        []byte
}

// jsonEnvelope is the bit-exact JSON wire contract third-party webhook
// implementers depend on. Do not change the shape without a version signal.
type jsonEnvelope struct {
	ToolName  string         `json:"tool_name"`
	UserID    string         `json:"user_id"`
	InputData map[string]any `json:"input_data"`
	Timestamp string         `json:"timestamp"`
}

// Encode builds the outbound request body. If any value is binary the
// whole request becomes multipart form data (scalar fields as text parts,
// binary fields as file parts, plus tool_name/user_id/timestamp text
// parts); otherwise a single JSON envelope. Business validation of the
// values happens before this point — the encoder only shapes bytes.
func Encode(fields []metadata.Field, values map[string]any, meta RequestMeta) (*EncodedRequest, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339)

	hasBinary := false
	for _, v := range values {
		if _, ok := v.(*BinaryValue); ok {
			hasBinary = true
			break
		}
	}

	if !hasBinary {
		input := make(map[string]any, len(values))
		for k, v := range values {
			input[k] = v
		}
		body, err := json.Marshal(jsonEnvelope{
			ToolName:  meta.ToolName,
			UserID:    meta.CallerID,
			InputData: input,
			Timestamp: timestamp,
		})
		if err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		return &EncodedRequest{ContentType: "application/json", Body: body}, nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	// Schema order first so receivers see a stable part sequence.
	written := make(map[string]bool, len(values))
	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		if err := writePart(w, f.Name, v); err != nil {
			return nil, err
		}
		written[f.Name] = true
	}
	for name, v := range values {
		if written[name] {
			continue
		}
		if err := writePart(w, name, v); err != nil {
			return nil, err
		}
	}

	if err := w.WriteField("tool_name", meta.ToolName); err != nil {
		return nil, fmt.Errorf("write tool_name part: %w", err)
	}
	if err := w.WriteField("user_id", meta.CallerID); err != nil {
		return nil, fmt.Errorf("write user_id part: %w", err)
	}
	if err := w.WriteField("timestamp", timestamp); err != nil {
		return nil, fmt.Errorf("write timestamp part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	// The boundary travels inside the content type; nothing else sets it.
	return &EncodedRequest{ContentType: w.FormDataContentType(), Body: buf.Bytes()}, nil
}

func writePart(w *multipart.Writer, name string, v any) error {
	if bin, ok := v.(*BinaryValue); ok {
		part, err := w.CreateFormFile(name, bin.Filename)
		if err != nil {
			return fmt.Errorf("create file part %s: %w", name, err)
		}
		if _, err := part.Write(bin.Data); err != nil {
			return fmt.Errorf("write file part %s: %w", name, err)
		}
		return nil
	}
	if err := w.WriteField(name, fmt.Sprintf("%v", v)); err != nil {
		return fmt.Errorf("write field part %s: %w", name, err)
	}
	return nil
}

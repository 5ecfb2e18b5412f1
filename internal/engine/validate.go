package engine

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"toolhub-backend/internal/metadata"
	"toolhub-backend/internal/webhook"
)

// ValidateInput checks submitted values against the tool's field schema:
// required-ness, type shape, length bounds, select options, file accept
// lists. Runs before encoding; the encoder itself never re-validates.
func ValidateInput(fields []metadata.Field, values map[string]any) []ErrorDetail {
	var details []ErrorDetail

	known := make(map[string]metadata.Field, len(fields))
	for _, f := range fields {
		known[f.Name] = f

		v, present := values[f.Name]
		if !present || v == nil || v == "" {
			if f.Required {
				details = append(details, ErrorDetail{
					Field: f.Name, Rule: "required",
					Message: fmt.Sprintf("%s is required", f.DisplayName()),
				})
			}
			continue
		}

		if d := validateValue(f, v); d != nil {
			details = append(details, *d)
		}
	}

	for name := range values {
		if _, ok := known[name]; !ok {
			details = append(details, ErrorDetail{
				Field: name, Rule: "unknown",
				Message: fmt.Sprintf("%s is not an input of this tool", name),
			})
		}
	}
	return details
}

func validateValue(f metadata.Field, v any) *ErrorDetail {
	if f.IsFile() {
		bin, ok := v.(*webhook.BinaryValue)
		if !ok {
			return &ErrorDetail{Field: f.Name, Rule: "type",
				Message: fmt.Sprintf("%s must be a file upload", f.DisplayName())}
		}
		return validateFileAccept(f, bin.Filename)
	}

	s, isString := v.(string)

	switch f.Type {
	case "number":
		switch v.(type) {
		case float64, int, int64:
			return nil
		}
		if isString {
			if _, err := strconv.ParseFloat(s, 64); err == nil {
				return nil
			}
		}
		return &ErrorDetail{Field: f.Name, Rule: "number",
			Message: fmt.Sprintf("%s must be a number", f.DisplayName())}

	case "email":
		if !isString {
			break
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return &ErrorDetail{Field: f.Name, Rule: "email",
				Message: fmt.Sprintf("%s must be a valid email address", f.DisplayName())}
		}

	case "url":
		if !isString {
			break
		}
		parsed, err := url.Parse(s)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return &ErrorDetail{Field: f.Name, Rule: "url",
				Message: fmt.Sprintf("%s must be a valid http(s) URL", f.DisplayName())}
		}

	case "select":
		if !isString {
			break
		}
		for _, opt := range f.Options {
			if s == opt {
				return nil
			}
		}
		return &ErrorDetail{Field: f.Name, Rule: "select",
			Message: fmt.Sprintf("%s must be one of: %s", f.DisplayName(), strings.Join(f.Options, ", "))}
	}

	if isString && len(s) > f.MaxLen() {
		return &ErrorDetail{Field: f.Name, Rule: "max_length",
			Message: fmt.Sprintf("%s must be at most %d characters", f.DisplayName(), f.MaxLen())}
	}
	return nil
}

func validateFileAccept(f metadata.Field, filename string) *ErrorDetail {
	if f.Accept == "" {
		return nil
	}
	ext := strings.ToLower(filename)
	if i := strings.LastIndex(ext, "."); i >= 0 {
		ext = ext[i:]
	} else {
		ext = ""
	}
	accepted := strings.Split(f.Accept, ",")
	for _, a := range accepted {
		if ext == strings.ToLower(strings.TrimSpace(a)) {
			return nil
		}
	}
	return &ErrorDetail{Field: f.Name, Rule: "accept",
		Message: fmt.Sprintf("Invalid file type. Please upload a %s file", strings.Join(accepted, " or "))}
}

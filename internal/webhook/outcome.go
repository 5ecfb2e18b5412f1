package webhook

// FailureKind classifies why a tool invocation did not succeed.
// Every kind is terminal; retrying is a caller policy decision.
type FailureKind string

const (
	// FailInvalidURL — the stored webhook URL was rejected by static policy.
	FailInvalidURL FailureKind = "invalid_url"
	// FailBlockedDestination — the URL passed static checks but resolved
	// to a blocked address. Logged distinctly for security auditing.
	FailBlockedDestination FailureKind = "blocked_destination"
	// FailNotConfigured — the tool has no webhook URL at all.
	FailNotConfigured FailureKind = "not_configured"
	// FailTimeout — dispatch (or DNS resolution) exceeded its bound.
	FailTimeout FailureKind = "timeout"
	// FailConnection — transport-level failure at request time.
	FailConnection FailureKind = "connection_error"
	// FailHTTP — the webhook answered with a non-2xx status.
	FailHTTP FailureKind = "http_error"
	// FailMalformedResponse — 2xx response whose body is not valid JSON.
	FailMalformedResponse FailureKind = "malformed_response"
	// FailInsufficientCredits — entitlement check failed before any network call.
	FailInsufficientCredits FailureKind = "insufficient_credits"
)

// Outcome is the tagged result of one invocation or dispatch attempt.
type Outcome struct {
	OK      bool        `json:"ok"`
	Body    any         `json:"body,omitempty"`
	Kind    FailureKind `json:"kind,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Succeed wraps a parsed webhook response body.
func Succeed(body any) Outcome {
	return Outcome{OK: true, Body: body}
}

// Fail builds a typed failure outcome.
func Fail(kind FailureKind, message string) Outcome {
	return Outcome{Kind: kind, Message: message}
}

// UserCorrectable reports whether the failure reason is safe and useful
// to show verbatim to the person who configured the webhook URL.
func (k FailureKind) UserCorrectable() bool {
	return k == FailInvalidURL || k == FailBlockedDestination
}

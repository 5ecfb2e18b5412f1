package webhook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"toolhub-backend/internal/instrument"
	"toolhub-backend/internal/metadata"
)

// ErrInsufficientCredits is returned by Ledger.Debit when the atomic
// floor check fails. Part of the capability contract, not a DB detail.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Ledger is the external credit collaborator. Implementations must make
// Debit an atomic decrement-with-floor-check; the invoker relies on that
// to close the concurrent-invocation race at the ledger layer.
type Ledger interface {
	HasCredits(ctx context.Context, userID string, cost int) (bool, error)
	Debit(ctx context.Context, userID string, cost int) error
}

// UsageRecord is the derived, redacted record appended after a
// successful run. The raw request envelope is never persisted.
type UsageRecord struct {
	CallerID        string
	ToolID          string
	InputSummary    map[string]any
	CreditsDeducted int
	ResponseSummary string
	DurationMs      int64
	Timestamp       time.Time
}

// UsageRecorder appends usage records. Persistence is external to the core.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec UsageRecord) error
}

// Poster performs the single outbound POST. *Dispatcher is the only
// production implementation.
type Poster interface {
	Dispatch(ctx context.Context, targetURL string, encoded *EncodedRequest) Outcome
}

// Invoker sequences one tool run: entitlement, URL policy, DNS guard,
// encoding, dispatch, then debit and usage logging strictly after a
// confirmed success. Every step short-circuits with a typed outcome.
type Invoker struct {
	guard      *Guard
	dispatcher Poster
	ledger     Ledger
	usage      UsageRecorder
}

func NewInvoker(guard *Guard, dispatcher Poster, ledger Ledger, usage UsageRecorder) *Invoker {
	return &Invoker{guard: guard, dispatcher: dispatcher, ledger: ledger, usage: usage}
}

// Invoke runs the tool once for the caller. No retries; the outcome's
// failure kind tells the caller what happened and whether it can act on it.
func (inv *Invoker) Invoke(ctx context.Context, tool *metadata.Tool, values map[string]any, caller *metadata.UserContext) Outcome {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "webhook", "invoker", "tool.invoke")
	defer span.End()
	span.SetEntity("tool", tool.ID)
	span.SetMetadata("caller_id", caller.ID)

	// 1. Entitlement, before any network activity.
	ok, err := inv.ledger.HasCredits(ctx, caller.ID, tool.CreditCost)
	if err != nil {
		log.Printf("ERROR: credit check for user %s: %v", caller.ID, err)
	}
	if err != nil || !ok {
		return inv.fail(span, FailInsufficientCredits, "Insufficient credits")
	}

	// 2. Configuration state, distinct from security rejections.
	if tool.WebhookURL == "" {
		return inv.fail(span, FailNotConfigured,
			"This tool requires a webhook URL to be configured. Please contact an administrator.")
	}

	// 3. Static policy, re-run on every invocation: the stored URL may
	// have changed out-of-band since it was validated at authoring time.
	if v := ValidateURL(tool.WebhookURL); !v.Valid {
		return inv.fail(span, FailInvalidURL, v.Reason)
	}

	// 4. Resolve and guard.
	parsed, err := url.Parse(tool.WebhookURL)
	if err != nil {
		return inv.fail(span, FailInvalidURL, "Invalid URL format")
	}
	if v := inv.guard.Check(ctx, parsed.Hostname()); !v.Valid {
		if v.Timeout {
			return inv.fail(span, FailTimeout, v.Reason)
		}
		log.Printf("SECURITY: blocked webhook destination for tool %s (%s): %s",
			tool.ID, parsed.Hostname(), v.Reason)
		return inv.fail(span, FailBlockedDestination, v.Reason)
	}

	// 5. Encode.
	encoded, err := Encode(tool.InputFields, values, RequestMeta{ToolName: tool.Name, CallerID: caller.ID})
	if err != nil {
		log.Printf("ERROR: encode request for tool %s: %v", tool.ID, err)
		return inv.fail(span, FailConnection, "Unable to encode webhook request")
	}

	// 6. Dispatch, single attempt.
	start := time.Now()
	outcome := inv.dispatcher.Dispatch(ctx, tool.WebhookURL, encoded)
	durationMs := time.Since(start).Milliseconds()
	span.SetMetadata("duration_ms", durationMs)

	if !outcome.OK {
		span.SetStatus("error")
		span.SetMetadata("failure_kind", string(outcome.Kind))
		return outcome
	}

	// 7. Side effects, strictly after confirmed success. A failed
	// dispatch never reaches this point, so it never debits credits.
	if err := inv.ledger.Debit(ctx, caller.ID, tool.CreditCost); err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			// A concurrent run drained the balance between the check and
			// the debit. The atomic floor check held the balance at zero
			// or above; report the run as unfunded.
			return inv.fail(span, FailInsufficientCredits, "Insufficient credits")
		}
		// The webhook already ran; surface the result and leave the
		// ledger discrepancy to reconciliation.
		log.Printf("ERROR: debit %d credits for user %s after successful run of tool %s: %v",
			tool.CreditCost, caller.ID, tool.ID, err)
	}

	rec := UsageRecord{
		CallerID:        caller.ID,
		ToolID:          tool.ID,
		InputSummary:    SummarizeInput(values),
		CreditsDeducted: tool.CreditCost,
		ResponseSummary: summarizeResponse(outcome.Body),
		DurationMs:      durationMs,
		Timestamp:       time.Now().UTC(),
	}
	if err := inv.usage.RecordUsage(ctx, rec); err != nil {
		log.Printf("ERROR: record usage for tool %s: %v", tool.ID, err)
	}

	span.SetStatus("ok")
	return outcome
}

func (inv *Invoker) fail(span instrument.Span, kind FailureKind, message string) Outcome {
	span.SetStatus("error")
	span.SetMetadata("failure_kind", string(kind))
	return Fail(kind, message)
}

// SummarizeInput redacts input values down to what the usage log keeps:
// truncated scalars and file descriptors, never raw file bytes.
func SummarizeInput(values map[string]any) map[string]any {
	summary := make(map[string]any, len(values))
	for name, v := range values {
		if bin, ok := v.(*BinaryValue); ok {
			summary[name] = fmt.Sprintf("file:%s (%d bytes)", bin.Filename, len(bin.Data))
			continue
		}
		summary[name] = truncate(fmt.Sprintf("%v", v), 200)
	}
	return summary
}

func summarizeResponse(body any) string {
	return truncate(fmt.Sprintf("%v", body), 500)
}

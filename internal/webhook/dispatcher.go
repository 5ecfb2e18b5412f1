package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultDispatchTimeout is the hard bound on one webhook POST.
	DefaultDispatchTimeout = 30 * time.Second
	// DefaultMaxResponseBytes caps how much of a response body is read.
	DefaultMaxResponseBytes = 64 * 1024
	// maxErrorBodyChars bounds response text quoted in failure messages.
	maxErrorBodyChars = 512
)

// Dispatcher owns the outbound POST: single attempt, hard timeout,
// typed outcome. It never retries.
type Dispatcher struct {
	client           *http.Client
	timeout          time.Duration
	maxResponseBytes int64
}

// NewDispatcher builds a Dispatcher with sane bounds for zero values.
func NewDispatcher(timeout time.Duration, maxResponseBytes int64) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	if maxResponseBytes <= 0 {
		maxResponseBytes = DefaultMaxResponseBytes
	}
	return &Dispatcher{
		// Timeout is enforced per request via context so the in-flight
		// connection is aborted (and released) at the cutoff.
		client:           &http.Client{},
		timeout:          timeout,
		maxResponseBytes: maxResponseBytes,
	}
}

// Dispatch POSTs the encoded body to the target URL and classifies the result.
func (d *Dispatcher) Dispatch(ctx context.Context, targetURL string, encoded *EncodedRequest) Outcome {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(encoded.Body))
	if err != nil {
		return Fail(FailConnection, "Unable to build webhook request")
	}
	req.Header.Set("Content-Type", encoded.ContentType)

	resp, err := d.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return Fail(FailTimeout, fmt.Sprintf("Webhook request timed out after %d seconds", int(d.timeout.Seconds())))
		}
		// Transport-level failure: refused connection, TLS handshake,
		// mid-request DNS error. Kept generic — no infrastructure detail
		// leaks to the caller chain.
		return Fail(FailConnection, "Unable to connect to webhook. The URL may be unreachable or rejecting requests")
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, d.maxResponseBytes))
	if readErr != nil {
		if isTimeout(ctx, readErr) {
			return Fail(FailTimeout, fmt.Sprintf("Webhook request timed out after %d seconds", int(d.timeout.Seconds())))
		}
		return Fail(FailConnection, "Webhook connection was interrupted while reading the response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("Webhook failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		if text := truncate(string(body), maxErrorBodyChars); text != "" {
			msg += " - " + text
		}
		return Fail(FailHTTP, msg)
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		// A 2xx with a non-JSON body is a contract violation, not a success.
		return Fail(FailMalformedResponse, "Webhook returned a response that is not valid JSON")
	}
	return Succeed(parsed)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

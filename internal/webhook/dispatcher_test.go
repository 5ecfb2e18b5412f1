package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func encodedJSON(t *testing.T, values map[string]any) *EncodedRequest {
	t.Helper()
	encoded, err := Encode(nil, values, RequestMeta{ToolName: "test-tool", CallerID: "user-1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return encoded
}

func TestDispatchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result": "done", "score": 0.9}`))
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second, 0)
	outcome := d.Dispatch(context.Background(), srv.URL, encodedJSON(t, map[string]any{"q": "x"}))
	if !outcome.OK {
		t.Fatalf("expected success, got %s: %s", outcome.Kind, outcome.Message)
	}
	body, ok := outcome.Body.(map[string]any)
	if !ok {
		t.Fatalf("expected parsed object body, got %T", outcome.Body)
	}
	if body["result"] != "done" {
		t.Errorf("body result = %v", body["result"])
	}
}

func TestDispatchNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("workflow exploded"))
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second, 0)
	outcome := d.Dispatch(context.Background(), srv.URL, encodedJSON(t, nil))
	if outcome.OK {
		t.Fatal("expected failure")
	}
	if outcome.Kind != FailHTTP {
		t.Errorf("expected http_error, got %s", outcome.Kind)
	}
	if !strings.Contains(outcome.Message, "500") {
		t.Errorf("message should carry the status code: %q", outcome.Message)
	}
	if !strings.Contains(outcome.Message, "workflow exploded") {
		t.Errorf("message should carry the response text: %q", outcome.Message)
	}
}

func TestDispatchTruncatesErrorBody(t *testing.T) {
	long := strings.Repeat("x", 5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(long))
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second, 0)
	outcome := d.Dispatch(context.Background(), srv.URL, encodedJSON(t, nil))
	if outcome.Kind != FailHTTP {
		t.Fatalf("expected http_error, got %s", outcome.Kind)
	}
	if len(outcome.Message) > 600 {
		t.Errorf("error message not truncated: %d chars", len(outcome.Message))
	}
}

func TestDispatchMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second, 0)
	outcome := d.Dispatch(context.Background(), srv.URL, encodedJSON(t, nil))
	if outcome.OK {
		t.Fatal("2xx with non-JSON body must not be a success")
	}
	if outcome.Kind != FailMalformedResponse {
		t.Errorf("expected malformed_response, got %s", outcome.Kind)
	}
}

func TestDispatchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	d := NewDispatcher(50*time.Millisecond, 0)
	start := time.Now()
	outcome := d.Dispatch(context.Background(), srv.URL, encodedJSON(t, nil))
	elapsed := time.Since(start)

	if outcome.Kind != FailTimeout {
		t.Fatalf("expected timeout, got %s: %s", outcome.Kind, outcome.Message)
	}
	if elapsed > 2*time.Second {
		t.Errorf("dispatch did not abort promptly: %v", elapsed)
	}
}

func TestDispatchConnectionRefused(t *testing.T) {
	// Grab a port that is closed by the time we dial it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	d := NewDispatcher(time.Second, 0)
	outcome := d.Dispatch(context.Background(), target, encodedJSON(t, nil))
	if outcome.OK {
		t.Fatal("expected failure")
	}
	if outcome.Kind != FailConnection {
		t.Errorf("expected connection_error, got %s", outcome.Kind)
	}
	if strings.Contains(outcome.Message, "127.0.0.1") {
		t.Errorf("transport detail leaked into message: %q", outcome.Message)
	}
}

func TestDispatchCapsResponseRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Valid JSON within the cap so the truncated read still parses.
		w.Write([]byte(`"` + strings.Repeat("a", 10) + `"`))
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second, 64)
	outcome := d.Dispatch(context.Background(), srv.URL, encodedJSON(t, nil))
	if !outcome.OK {
		t.Fatalf("expected success, got %s: %s", outcome.Kind, outcome.Message)
	}
}

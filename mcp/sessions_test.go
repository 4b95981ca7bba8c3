package mcp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestObserveRecordsSessionAndVersion(t *testing.T) {
	table := NewSessionTable()

	table.Observe("sess-1", "2025-06-18")

	info, ok := table.Get("sess-1")
	if !ok {
		t.Fatal("expected session to be recorded")
	}
	if info.ProtocolVersion != "2025-06-18" {
		t.Errorf("expected negotiated version to be recorded, got %q", info.ProtocolVersion)
	}
}

func TestObserveKeepsVersionWhenHeaderAbsent(t *testing.T) {
	table := NewSessionTable()

	table.Observe("sess-1", "2025-06-18")
	table.Observe("sess-1", "")

	info, _ := table.Get("sess-1")
	if info.ProtocolVersion != "2025-06-18" {
		t.Errorf("empty version must not erase the recorded one, got %q", info.ProtocolVersion)
	}
}

func TestEvictIdleDropsStaleSessions(t *testing.T) {
	table := NewSessionTable()
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	table.now = func() time.Time { return current }

	table.Observe("stale", "")
	current = current.Add(time.Hour)
	table.Observe("fresh", "")

	evicted := table.EvictIdle(30 * time.Minute)
	if evicted != 1 {
		t.Errorf("expected 1 eviction, got %d", evicted)
	}
	if _, ok := table.Get("stale"); ok {
		t.Error("stale session should be gone")
	}
	if _, ok := table.Get("fresh"); !ok {
		t.Error("fresh session should survive")
	}
}

func TestMiddlewareRejectsSessionlessToolCall(t *testing.T) {
	table := NewSessionTable()
	reached := false
	handler := table.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]interface{}{"name": ToolGetCheckout},
	})
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if reached {
		t.Error("a sessionless tool call must not reach the transport")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "session_required") {
		t.Errorf("expected a session_required error, got %s", rec.Body.String())
	}
}

func TestMiddlewareAllowsSessionlessInitialize(t *testing.T) {
	table := NewSessionTable()
	reached := false
	handler := table.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.Header().Set(sessionIDHeader, "assigned-1")
	}))

	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
	})
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !reached {
		t.Fatal("initialize must pass through without a session header")
	}
	if _, ok := table.Get("assigned-1"); !ok {
		t.Error("the session id assigned at initialize should be recorded")
	}
}

func TestMiddlewareObservesEchoedSession(t *testing.T) {
	table := NewSessionTable()
	handler := table.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/call",
		"params":  map[string]interface{}{"name": ToolGetCheckout},
	})
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set(sessionIDHeader, "sess-echo")
	req.Header.Set(protocolVersionHeader, "2025-06-18")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("a session-carrying tool call must pass through, got %d", rec.Code)
	}
	info, ok := table.Get("sess-echo")
	if !ok {
		t.Fatal("expected the echoed session to be recorded")
	}
	if info.ProtocolVersion != "2025-06-18" {
		t.Errorf("expected the echoed protocol version, got %q", info.ProtocolVersion)
	}
}

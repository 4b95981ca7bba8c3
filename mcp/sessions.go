package mcp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"
)

// Headers used by the streamable HTTP transport. The session identifier is
// assigned by the server on initialize and must be echoed on every later
// request; the protocol version is negotiated at initialize and echoed
// thereafter.
const (
	sessionIDHeader       = "Mcp-Session-Id"
	protocolVersionHeader = "MCP-Protocol-Version"
)

// maxSniffBytes bounds how much of a request body the middleware reads to
// classify the JSON-RPC method.
const maxSniffBytes = 1 << 20

// SessionInfo describes one observed session.
type SessionInfo struct {
	ID              string
	ProtocolVersion string
	LastSeen        time.Time
}

// SessionTable records the sessions passing through the gateway and the
// protocol version negotiated for each. It grows with distinct logical
// connections; EvictIdle bounds that growth for long-running deployments.
type SessionTable struct {
	mu      sync.Mutex
	entries map[string]SessionInfo
	now     func() time.Time
}

// NewSessionTable creates an empty session table.
func NewSessionTable() *SessionTable {
	return &SessionTable{
		entries: make(map[string]SessionInfo),
		now:     time.Now,
	}
}

// Observe records activity on a session. An empty version keeps whatever
// version was recorded earlier (initialize responses carry the id but the
// version only arrives on subsequent requests).
func (t *SessionTable) Observe(id, version string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	entry := t.entries[id]
	entry.ID = id
	if version != "" {
		entry.ProtocolVersion = version
	}
	entry.LastSeen = t.now()
	t.entries[id] = entry
}

// Get returns the recorded info for a session id.
func (t *SessionTable) Get(id string) (SessionInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	return entry, ok
}

// Len returns the number of recorded sessions.
func (t *SessionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// EvictIdle drops sessions with no activity for at least maxIdle and returns
// how many were removed.
func (t *SessionTable) EvictIdle(maxIdle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-maxIdle)
	evicted := 0
	for id, entry := range t.entries {
		if entry.LastSeen.Before(cutoff) {
			delete(t.entries, id)
			evicted++
		}
	}
	return evicted
}

// Middleware wraps the streamable transport handler with session
// bookkeeping. It records session ids and protocol versions from request
// and response headers, and rejects tool calls that arrive without a
// session identifier before they reach the transport.
func (t *SessionTable) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(sessionIDHeader)
		if id != "" {
			t.Observe(id, r.Header.Get(protocolVersionHeader))
		} else if isToolCall(r) {
			writeSessionRequired(w)
			return
		}

		next.ServeHTTP(w, r)

		// Initialize responses assign a fresh session id.
		if assigned := w.Header().Get(sessionIDHeader); assigned != "" && assigned != id {
			t.Observe(assigned, "")
		}
	})
}

// isToolCall reports whether the request carries a tools/call JSON-RPC
// message. The body is restored for the downstream handler.
func isToolCall(r *http.Request) bool {
	if r.Method != http.MethodPost || r.Body == nil {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSniffBytes))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return false
	}

	var msg struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return false
	}
	return msg.Method == "tools/call"
}

// writeSessionRequired answers a sessionless tool call with a JSON-RPC error.
func writeSessionRequired(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      nil,
		"error": map[string]interface{}{
			"code":    -32600,
			"message": "session_required: tool calls must carry the session identifier assigned at initialize",
		},
	})
}

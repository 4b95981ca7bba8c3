// Package mcp provides the tool-invocation binding of the checkout system,
// built on the official MCP Go SDK (github.com/modelcontextprotocol/go-sdk).
//
// Two pieces live here:
//
// Gateway exposes the five checkout operations as named, schema-validated
// tools over a session-scoped, JSON-RPC-framed channel. Each tool call is
// translated into exactly one Resource API request against a configured
// upstream address; the gateway holds no business state of its own, only a
// table of observed sessions and their negotiated protocol versions. The
// session handshake (initialize, Mcp-Session-Id header, protocol-version
// negotiation) is handled by the SDK's streamable HTTP transport.
//
// BindingClient is the caller-side strategy for driving a checkout through
// whichever binding is reachable: it attempts the gateway path first and, on
// any classified failure (see ShouldFallBack), silently falls back to the
// direct Resource API. Callers observe one internal Checkout shape either
// way and cannot tell which binding produced it.
package mcp

// Package manifest parses merchant discovery documents. A document
// advertises which protocol bindings a merchant's checkout surface offers;
// callers read it to decide whether to attempt the tool-invocation path at
// all. The document is read-only input: nothing in the checkout core writes
// or derives business logic from it.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Binding names as they appear in the document and as returned by
// PreferredBinding.
const (
	BindingREST           = "rest"
	BindingToolInvocation = "tool-invocation"
)

// Merchant identifies the merchant the document describes.
type Merchant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CheckoutEndpoints lists the Resource API endpoints per operation.
type CheckoutEndpoints struct {
	Create   string `json:"create"`
	Get      string `json:"get"`
	Update   string `json:"update"`
	Complete string `json:"complete"`
	Cancel   string `json:"cancel"`
}

// Endpoints groups the advertised endpoint sets.
type Endpoints struct {
	Checkout CheckoutEndpoints `json:"checkout"`
}

// RESTBinding describes the resource-oriented binding.
type RESTBinding struct {
	BaseURL string `json:"base_url"`
}

// ToolInvocationBinding describes the session-negotiated tool binding.
type ToolInvocationBinding struct {
	Available    bool     `json:"available"`
	Endpoint     string   `json:"endpoint"`
	Capabilities []string `json:"capabilities"`
}

// Bindings lists the protocol bindings the merchant offers.
type Bindings struct {
	REST           *RESTBinding           `json:"rest"`
	ToolInvocation *ToolInvocationBinding `json:"tool-invocation"`
}

// Document is one merchant's discovery manifest.
type Document struct {
	Merchant  Merchant  `json:"merchant"`
	Endpoints Endpoints `json:"endpoints"`
	Bindings  Bindings  `json:"bindings"`
}

// Parse decodes a manifest document from a reader.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if doc.Merchant.ID == "" {
		return nil, fmt.Errorf("manifest is missing merchant.id")
	}
	return &doc, nil
}

// Load reads and parses a manifest document from a file.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// PreferredBinding returns the binding a caller should attempt first:
// tool-invocation when advertised as available, REST otherwise. An empty
// string means the document advertises no usable binding.
func (d *Document) PreferredBinding() string {
	if d.Bindings.ToolInvocation != nil && d.Bindings.ToolInvocation.Available {
		return BindingToolInvocation
	}
	if d.Bindings.REST != nil {
		return BindingREST
	}
	return ""
}

// SupportsCapability reports whether the tool-invocation binding advertises
// the named capability.
func (d *Document) SupportsCapability(name string) bool {
	if d.Bindings.ToolInvocation == nil {
		return false
	}
	for _, c := range d.Bindings.ToolInvocation.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

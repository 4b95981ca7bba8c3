// Package http provides the resource-oriented REST binding of the checkout
// system: gin handlers exposing the five checkout operations over a Store,
// and CheckoutClient, the synchronous client for that surface.
//
// CheckoutClient is used in two places: the protocol gateway uses it as its
// upstream toward the Resource API, and the binding-selecting client uses it
// as the direct fallback path when the gateway cannot be reached.
package http

import (
	"github.com/gin-gonic/gin"

	checkout "github.com/unified-commerce/checkout/go"
)

// NewRouter builds a gin engine with the checkout routes and a health
// endpoint registered. Convenience for processes that need nothing else.
func NewRouter(store checkout.Store, opts ...ServerOption) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	NewServer(store, opts...).Register(r)
	return r
}

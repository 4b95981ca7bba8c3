package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	checkout "github.com/unified-commerce/checkout/go"
)

// ============================================================================
// Resource API server
// ============================================================================

// Server exposes the five checkout operations as a resource-oriented HTTP
// surface over a Store. The server itself is stateless; all state lives in
// the store it was constructed with.
type Server struct {
	store  checkout.Store
	logger *zap.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the request logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Resource API server over the given store.
func NewServer(store checkout.Store, opts ...ServerOption) *Server {
	s := &Server{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts the checkout routes on a gin engine:
//
//	POST  /checkout               create
//	GET   /checkout/:id           read
//	PATCH /checkout/:id           update (no-op once terminal)
//	POST  /checkout/:id/complete  complete
//	POST  /checkout/:id/cancel    cancel
func (s *Server) Register(r *gin.Engine) {
	r.POST("/checkout", s.handleCreate)
	r.GET("/checkout/:id", s.handleGet)
	r.PATCH("/checkout/:id", s.handleUpdate)
	r.POST("/checkout/:id/complete", s.handleComplete)
	r.POST("/checkout/:id/cancel", s.handleCancel)
}

func (s *Server) handleCreate(c *gin.Context) {
	var req CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, checkout.NewError(checkout.ErrCodeInvalidInput, "request body is not a valid create request: "+err.Error(), nil))
		return
	}

	created, err := s.store.Create(DecodeLines(req.Lines))
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("checkout created",
		zap.String("id", created.ID),
		zap.Int("lines", len(created.Lines)))
	c.JSON(http.StatusCreated, EncodeCheckout(created))
}

func (s *Server) handleGet(c *gin.Context) {
	got, err := s.store.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, EncodeCheckout(got))
}

func (s *Server) handleUpdate(c *gin.Context) {
	var req UpdateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, checkout.NewError(checkout.ErrCodeInvalidInput, "request body is not a valid update request: "+err.Error(), nil))
		return
	}

	updated, err := s.store.Update(c.Param("id"), DecodeLines(req.Lines))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, EncodeCheckout(updated))
}

func (s *Server) handleComplete(c *gin.Context) {
	completed, err := s.store.Complete(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.logger.Info("checkout completed", zap.String("id", completed.ID))
	c.JSON(http.StatusOK, EncodeCheckout(completed))
}

func (s *Server) handleCancel(c *gin.Context) {
	canceled, err := s.store.Cancel(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.logger.Info("checkout canceled", zap.String("id", canceled.ID))
	c.JSON(http.StatusOK, EncodeCheckout(canceled))
}

// writeError maps store errors onto HTTP statuses. The store never raises
// past not_found and invalid_input; anything else is a server bug.
func (s *Server) writeError(c *gin.Context, err error) {
	var ce *checkout.Error
	if !errors.As(err, &ce) {
		s.logger.Error("unexpected store error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "internal",
			Message: "internal error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch ce.Code {
	case checkout.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case checkout.ErrCodeNotFound:
		status = http.StatusNotFound
	}
	c.JSON(status, encodeError(ce))
}

package emaillogs

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bis-events/gatepass/internal/middleware"
	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/pkg/response"
)

// Lister reads email logs.
type Lister interface {
	List(ctx context.Context, registrationID *uuid.UUID, limit int) ([]*models.EmailLog, error)
}

// Authorizer checks the admin secret.
type Authorizer interface {
	Authorize(credential string) error
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo Lister
	gate Authorizer
}

// NewHandler creates an email logs handler.
func NewHandler(repo Lister, gate Authorizer) *Handler {
	return &Handler{repo: repo, gate: gate}
}

// List handles GET /admin/email-logs?registration_id=&limit=.
func (h *Handler) List(c *gin.Context) {
	if err := h.gate.Authorize(middleware.AdminKeyFrom(c)); err != nil {
		response.Fail(c, err)
		return
	}
	var regID *uuid.UUID
	if s := c.Query("registration_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid registration_id")
			return
		}
		regID = &id
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.repo.List(c.Request.Context(), regID, limit)
	if err != nil {
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}

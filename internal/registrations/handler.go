package registrations

import (
	"github.com/gin-gonic/gin"

	"github.com/bis-events/gatepass/internal/middleware"
	"github.com/bis-events/gatepass/pkg/response"
)

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Submit handles POST /registrations.
func (h *Handler) Submit(c *gin.Context) {
	var in SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.Submit(c.Request.Context(), in)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, gin.H{"id": reg.ID, "status": reg.Status, "created_at": reg.CreatedAt})
}

// GetTicket handles GET /tickets/:ticketId?t=.
func (h *Handler) GetTicket(c *gin.Context) {
	reg, err := h.svc.GetTicket(c.Request.Context(), c.Param("ticketId"), c.Query("t"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, reg)
}

// List handles GET /registrations.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.ListAll(c.Request.Context(), middleware.AdminKeyFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"rows": list, "count": len(list)})
}

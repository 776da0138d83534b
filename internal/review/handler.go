package review

import (
	"github.com/gin-gonic/gin"

	"github.com/bis-events/gatepass/internal/middleware"
	"github.com/bis-events/gatepass/pkg/response"
)

// StatusRequest is the body for PATCH /admin/registrations/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Handler exposes the review service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a review handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SetStatus handles PATCH /admin/registrations/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.SetStatus(c.Request.Context(), middleware.AdminKeyFrom(c), c.Param("id"), req.Status)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OKMessage(c, res.Message(), res)
}

// Delete handles DELETE /admin/registrations/:id.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.AdminKeyFrom(c), c.Param("id")); err != nil {
		response.Fail(c, err)
		return
	}
	response.OKMessage(c, "Registration deleted", gin.H{"id": c.Param("id")})
}

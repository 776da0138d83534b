package analytics

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bis-events/gatepass/internal/middleware"
	"github.com/bis-events/gatepass/pkg/response"
)

// Handler handles GET /admin/stats.
type Handler struct {
	svc *Service
}

// NewHandler creates an analytics handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ParseDays reads lastDays leniently; anything unparseable means the default.
func ParseDays(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Stats handles GET /admin/stats?lastDays=.
func (h *Handler) Stats(c *gin.Context) {
	rep, err := h.svc.Compute(c.Request.Context(), middleware.AdminKeyFrom(c), ParseDays(c.Query("lastDays")))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, rep)
}

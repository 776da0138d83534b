package verification

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/bis-events/gatepass/internal/middleware"
	"github.com/bis-events/gatepass/pkg/response"
	"github.com/bis-events/gatepass/pkg/utils"
)

// CheckInRequest is the body for POST /admin/checkin.
type CheckInRequest struct {
	TicketID string `json:"ticket_id" binding:"required"`
	Token    string `json:"token" binding:"required"`
}

// ManualCheckInRequest is the body for POST /admin/checkin/manual.
type ManualCheckInRequest struct {
	TicketID string `json:"ticket_id" binding:"required"`
}

// AttendanceRequest is the body for POST /admin/attendance.
type AttendanceRequest struct {
	TicketID string           `json:"ticket_id" binding:"required"`
	Token    string           `json:"token" binding:"required"`
	Day      utils.FlexString `json:"day" binding:"required"`
}

// Handler exposes gate operations.
type Handler struct {
	svc *Service
}

// NewHandler creates a verification handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CheckIn handles POST /admin/checkin.
func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.CheckIn(c.Request.Context(), middleware.AdminKeyFrom(c), req.TicketID, req.Token)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OKMessage(c, "Check-in Successful for "+res.Name, res)
}

// ManualCheckIn handles POST /admin/checkin/manual.
func (h *Handler) ManualCheckIn(c *gin.Context) {
	var req ManualCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.ManualCheckIn(c.Request.Context(), middleware.AdminKeyFrom(c), req.TicketID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OKMessage(c, "Checked In: "+res.Name, res)
}

// MarkAttendance handles POST /admin/attendance.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.MarkAttendance(c.Request.Context(), middleware.AdminKeyFrom(c), req.TicketID, req.Token, string(req.Day))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OKMessage(c, fmt.Sprintf("Day %d attendance marked", res.Day), res)
}

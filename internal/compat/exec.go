// Package compat serves the single-endpoint action protocol used by the
// existing registration site, verifier page and admin dashboard.
package compat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bis-events/gatepass/internal/analytics"
	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/internal/media"
	"github.com/bis-events/gatepass/internal/registrations"
	"github.com/bis-events/gatepass/internal/review"
	"github.com/bis-events/gatepass/internal/verification"
	"github.com/bis-events/gatepass/pkg/storage"
	"github.com/bis-events/gatepass/pkg/utils"
)

// maxBody leaves room for a base64 screenshot at the blob size limit.
const maxBody = storage.MaxObjectSize*4/3 + 64*1024

// Request is the POST body. Field names follow the existing web clients.
type Request struct {
	Action        string           `json:"action"`
	AdminKey      string           `json:"adminKey"`
	Name          string           `json:"name"`
	Email         string           `json:"email"`
	Phone         utils.FlexString `json:"phone"`
	TransactionID utils.FlexString `json:"transactionId"`
	Screenshot    string           `json:"screenshot"`
	MimeType      string           `json:"mimeType"`
	FileName      string           `json:"fileName"`
	Ticket        string           `json:"ticket"`
	TicketID      string           `json:"ticketId"`
	T             string           `json:"t"`
	Token         string           `json:"token"`
	Day           utils.FlexString `json:"day"`
	Row           utils.FlexString `json:"row"`
	ID            string           `json:"id"`
	Status        string           `json:"status"`
}

func (r *Request) ticketID() string {
	if r.Ticket != "" {
		return r.Ticket
	}
	return r.TicketID
}

func (r *Request) token() string {
	if r.Token != "" {
		return r.Token
	}
	return r.T
}

// key is the record identifier; "row" carries it for older dashboards.
func (r *Request) key() string {
	if r.ID != "" {
		return r.ID
	}
	return string(r.Row)
}

// Handler dispatches /exec actions to the services.
type Handler struct {
	regs   *registrations.Service
	review *review.Service
	verify *verification.Service
	stats  *analytics.Service
	proxy  *media.Proxy
	logger *zap.Logger
}

// NewHandler creates the /exec handler.
func NewHandler(regs *registrations.Service, rev *review.Service, verify *verification.Service, stats *analytics.Service, proxy *media.Proxy, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{regs: regs, review: rev, verify: verify, stats: stats, proxy: proxy, logger: logger}
}

func success(c *gin.Context, message string, extra gin.H) {
	body := gin.H{"status": "success", "success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		h.logger.Error("exec action failed", zap.String("action", c.Query("action")), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "error",
		"success": false,
		"message": apperr.Message(err),
		"code":    string(kind),
	})
}

func malformed(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"status":  "error",
		"success": false,
		"message": message,
		"code":    string(apperr.InvalidInput),
	})
}

// Post handles POST /exec. The body is parsed as JSON whatever the declared
// content type, since browser clients post text/plain to avoid preflight.
func (h *Handler) Post(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody+1))
	if err != nil || len(strings.TrimSpace(string(raw))) == 0 {
		malformed(c, "Missing request body")
		return
	}
	if len(raw) > maxBody {
		malformed(c, "Request body too large")
		return
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		malformed(c, "Invalid JSON")
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case "register", "":
		reg, err := h.regs.Submit(ctx, registrations.SubmitInput{
			Name:          req.Name,
			Email:         req.Email,
			Phone:         string(req.Phone),
			TransactionID: string(req.TransactionID),
			Screenshot:    req.Screenshot,
			MimeType:      req.MimeType,
			FileName:      req.FileName,
		})
		if err != nil {
			h.fail(c, err)
			return
		}
		success(c, "Registration submitted successfully", gin.H{"id": reg.ID})

	case "checkin":
		res, err := h.verify.CheckIn(ctx, req.AdminKey, req.ticketID(), req.token())
		if err != nil {
			h.fail(c, err)
			return
		}
		success(c, "Check-in Successful for "+res.Name, gin.H{"name": res.Name, "day1Attendance": res.Day1Stamp})

	case "manual_checkin":
		res, err := h.verify.ManualCheckIn(ctx, req.AdminKey, req.ticketID())
		if err != nil {
			h.fail(c, err)
			return
		}
		success(c, "Checked In: "+res.Name, gin.H{"name": res.Name})

	case "markAttendance":
		res, err := h.verify.MarkAttendance(ctx, req.AdminKey, req.ticketID(), req.token(), string(req.Day))
		if err != nil {
			h.fail(c, err)
			return
		}
		success(c, fmt.Sprintf("Day %d Attendance marked successfully", res.Day), gin.H{
			"name":      res.Name,
			"timestamp": res.Timestamp,
		})

	case "delete":
		if err := h.review.Delete(ctx, req.AdminKey, req.key()); err != nil {
			h.fail(c, err)
			return
		}
		success(c, "Deleted registration "+req.key(), nil)

	case "update_status":
		res, err := h.review.SetStatus(ctx, req.AdminKey, req.key(), req.Status)
		if err != nil {
			h.fail(c, err)
			return
		}
		success(c, res.Message(), gin.H{"result": res})

	default:
		h.fail(c, apperr.E(apperr.InvalidInput, "Invalid Action: "+req.Action))
	}
}

// Get handles GET /exec?action=. Action names are case-insensitive.
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	switch strings.ToLower(c.Query("action")) {
	case "get":
		reg, err := h.regs.GetTicket(ctx, c.Query("ticket"), c.Query("t"))
		if err != nil {
			h.fail(c, err)
			return
		}
		success(c, "", gin.H{"ticket": reg})

	case "list_all":
		rows, err := h.regs.ListAll(ctx, c.Query("adminKey"))
		if err != nil {
			h.fail(c, err)
			return
		}
		success(c, "", gin.H{"rows": rows})

	case "stats":
		rep, err := h.stats.Compute(ctx, c.Query("adminKey"), analytics.ParseDays(c.Query("lastDays")))
		if err != nil {
			h.fail(c, err)
			return
		}
		success(c, "", gin.H{
			"meta":            rep.Meta,
			"timeseries":      rep.Timeseries,
			"breakdown":       rep.Breakdown,
			"recent":          rep.Recent,
			"recentCheckedIn": rep.RecentCheckedIn,
			"unknownDates":    rep.UnknownDates,
		})

	case "proxyimage":
		img, err := h.proxy.Fetch(ctx, media.RefParam(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		success(c, "", gin.H{"dataUrl": img.DataURL, "mime": img.Mime})

	default:
		h.fail(c, apperr.E(apperr.InvalidInput, "Unknown action"))
	}
}

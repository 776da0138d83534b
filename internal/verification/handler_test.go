package verification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bis-events/gatepass/internal/middleware"
	"github.com/bis-events/gatepass/pkg/response"
)

func router(e *env) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(e.svc)
	r := gin.New()
	admin := r.Group("/admin", middleware.AdminKey())
	admin.POST("/checkin", h.CheckIn)
	admin.POST("/checkin/manual", h.ManualCheckIn)
	admin.POST("/attendance", h.MarkAttendance)
	return r
}

func post(r *gin.Engine, path, body string) (int, response.Body) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderAdminKey, adminKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var b response.Body
	_ = json.Unmarshal(w.Body.Bytes(), &b)
	return w.Code, b
}

func TestHandlerCheckInFlow(t *testing.T) {
	e := newEnv(t)
	reg := e.ticketed(t, "A. Smith")
	r := router(e)
	body := `{"ticket_id":"` + reg.TicketID + `","token":"` + reg.TicketToken + `"}`

	code, b := post(r, "/admin/checkin", body)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, b.Success)
	assert.Equal(t, "Check-in Successful for A. Smith", b.Message)

	code, b = post(r, "/admin/checkin", body)
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, b.Success)
	assert.Equal(t, "already_done", b.Code)
	assert.Equal(t, "Already Checked In", b.Error)
}

func TestHandlerAttendanceAcceptsNumericDay(t *testing.T) {
	e := newEnv(t)
	reg := e.ticketed(t, "lee")
	r := router(e)

	_, b := post(r, "/admin/attendance", `{"ticket_id":"`+reg.TicketID+`","token":"`+reg.TicketToken+`","day":2}`)
	assert.True(t, b.Success)
	_, b = post(r, "/admin/attendance", `{"ticket_id":"`+reg.TicketID+`","token":"`+reg.TicketToken+`","day":"day3"}`)
	assert.True(t, b.Success)

	code, _ := post(r, "/admin/attendance", `{"ticket_id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHandlerManualCheckIn(t *testing.T) {
	e := newEnv(t)
	reg := e.ticketed(t, "ana")
	_, b := post(router(e), "/admin/checkin/manual", `{"ticket_id":"`+reg.TicketID+`"}`)
	assert.True(t, b.Success)
	assert.Equal(t, "Checked In: ana", b.Message)
}

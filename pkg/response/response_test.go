package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bis-events/gatepass/internal/apperr"
)

func run(t *testing.T, fn func(c *gin.Context)) (int, Body) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fn(c)
	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestFailDomainErrorsAre200(t *testing.T) {
	code, body := run(t, func(c *gin.Context) {
		Fail(c, apperr.E(apperr.AlreadyDone, "Already Checked In"))
	})
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, body.Success)
	assert.Equal(t, "already_done", body.Code)
	assert.Equal(t, "Already Checked In", body.Error)
}

func TestFailHidesInternalErrors(t *testing.T) {
	code, body := run(t, func(c *gin.Context) {
		Fail(c, errors.New("pq: connection refused to 10.0.0.3"))
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal", body.Code)
	assert.NotContains(t, body.Error, "10.0.0.3")
}

func TestFailLockTimeout(t *testing.T) {
	code, body := run(t, func(c *gin.Context) {
		Fail(c, apperr.E(apperr.LockTimeout, "server busy, please retry"))
	})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "lock_timeout", body.Code)
}

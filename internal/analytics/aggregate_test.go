package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/internal/auth"
	"github.com/bis-events/gatepass/internal/middleware"
	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/internal/records"
	"github.com/bis-events/gatepass/pkg/response"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// 2026-03-10 00:30 IST, still 2026-03-09 in UTC.
var now = time.Date(2026, 3, 9, 19, 0, 0, 0, time.UTC)

func stamp(s string) *string { return &s }

func reg(seq int64, created string, status models.Status, checkedIn bool) models.Registration {
	return models.Registration{Seq: seq, Name: created, CreatedAt: created, Status: status, CheckedIn: checkedIn}
}

func TestAggregateEmpty(t *testing.T) {
	rep := Aggregate(nil, 7, now, ist)
	assert.Equal(t, Meta{}, rep.Meta)
	require.Len(t, rep.Timeseries, 7)
	for _, b := range rep.Timeseries {
		assert.Zero(t, b.Registrations)
		assert.Zero(t, b.Approved)
		assert.Zero(t, b.CheckedIn)
	}
	assert.Equal(t, "2026-03-04", rep.Timeseries[0].Date)
	assert.Equal(t, "2026-03-10", rep.Timeseries[6].Date)
	assert.Empty(t, rep.Recent)
	assert.NotNil(t, rep.Recent)
	assert.Zero(t, rep.Meta.ConversionPct)
	assert.Zero(t, rep.Meta.CheckedInPct)
}

func TestAggregateDaysDefaultAndCap(t *testing.T) {
	assert.Len(t, Aggregate(nil, 0, now, ist).Timeseries, DefaultDays)
	assert.Len(t, Aggregate(nil, -3, now, ist).Timeseries, DefaultDays)
	assert.Len(t, Aggregate(nil, 5000, now, ist).Timeseries, MaxDays)
}

func TestAggregateCounts(t *testing.T) {
	a := reg(1, "2026-03-10 00:10:00", models.StatusApproved, true)
	a.Day1Attendance = stamp("2026-03-10 09:00:00")
	a.Day2Attendance = stamp("2026-03-11 09:00:00")
	b := reg(2, "2026-03-09 18:00:00", models.StatusApproved, false)
	c := reg(3, "2026-03-09 19:00:00", models.StatusPending, false)
	d := reg(4, "garbage", models.StatusRejected, false)
	e := reg(5, "2026-01-01 10:00:00", "On Hold", false)

	rep := Aggregate([]models.Registration{a, b, c, d, e}, 7, now, ist)

	assert.Equal(t, 5, rep.Meta.Total)
	assert.Equal(t, 2, rep.Meta.Approved)
	assert.Equal(t, 1, rep.Meta.Pending)
	assert.Equal(t, 1, rep.Meta.CheckedIn)
	assert.Equal(t, 1, rep.Meta.D1)
	assert.Equal(t, 1, rep.Meta.D2)
	assert.Equal(t, 0, rep.Meta.D3)
	assert.Equal(t, 40.0, rep.Meta.ConversionPct)
	assert.Equal(t, 50.0, rep.Meta.CheckedInPct)
	assert.Equal(t, Breakdown{Paid: 2, Pending: 1, Unpaid: 2}, rep.Breakdown)
	assert.Equal(t, 1, rep.UnknownDates)

	last := rep.Timeseries[6]
	assert.Equal(t, Bucket{Date: "2026-03-10", Registrations: 1, Approved: 1, CheckedIn: 1}, last)
	assert.Equal(t, Bucket{Date: "2026-03-09", Registrations: 2, Approved: 1}, rep.Timeseries[5])

	sum := 0
	for _, bk := range rep.Timeseries {
		sum += bk.Registrations
	}
	assert.Equal(t, 3, sum, "unknown and out-of-window rows are not bucketed")
}

func TestAggregatePercentRounding(t *testing.T) {
	regs := []models.Registration{
		reg(1, "", models.StatusApproved, true),
		reg(2, "", models.StatusApproved, false),
		reg(3, "", models.StatusPending, false),
	}
	rep := Aggregate(regs, 7, now, ist)
	assert.Equal(t, 66.7, rep.Meta.ConversionPct)
	assert.Equal(t, 50.0, rep.Meta.CheckedInPct)
}

func TestAggregateRecentOrdering(t *testing.T) {
	regs := []models.Registration{
		reg(1, "2026-03-01 10:00:00", models.StatusApproved, true),
		reg(2, "not a date", models.StatusApproved, true),
		reg(3, "2026-03-05 10:00:00", models.StatusApproved, false),
		reg(4, "2026-03-01 10:00:00", models.StatusApproved, true),
		reg(5, "", models.StatusPending, false),
	}
	rep := Aggregate(regs, 30, now, ist)

	var order []int64
	for _, r := range rep.Recent {
		order = append(order, r.Seq)
	}
	assert.Equal(t, []int64{3, 4, 1, 5, 2}, order)

	var checked []int64
	for _, r := range rep.RecentCheckedIn {
		checked = append(checked, r.Seq)
	}
	assert.Equal(t, []int64{4, 1, 2}, checked)
}

func TestAggregateRecentCaps(t *testing.T) {
	var regs []models.Registration
	for i := 0; i < 80; i++ {
		regs = append(regs, reg(int64(i+1), "2026-03-01 10:00:00", models.StatusApproved, true))
	}
	rep := Aggregate(regs, 7, now, ist)
	assert.Len(t, rep.Recent, RecentLimit)
	assert.Len(t, rep.RecentCheckedIn, RecentCheckedInLimit)
	assert.Equal(t, int64(80), rep.Recent[0].Seq)
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{"2026-03-01 10:00:00", "2026-03-01T10:00:00+05:30", "3/1/2026 10:00:00", "2026-03-01"} {
		got, ok := ParseTimestamp(s, ist)
		require.True(t, ok, s)
		assert.Equal(t, "2026-03-01", got.Format("2006-01-02"), s)
	}
	for _, s := range []string{"", "yesterday", "2026-13-01 00:00:00"} {
		_, ok := ParseTimestamp(s, ist)
		assert.False(t, ok, s)
	}
}

func TestComputeRequiresAdmin(t *testing.T) {
	svc := NewService(records.NewMemory(), auth.NewAdminGate("k", ""), ist, nil)
	_, err := svc.Compute(context.Background(), "nope", 7)
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
}

func TestStatsHandlerEmptyStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(records.NewMemory(), auth.NewAdminGate("k", ""), ist, nil)
	svc.SetClock(func() time.Time { return now })
	r := gin.New()
	r.GET("/admin/stats", middleware.AdminKey(), NewHandler(svc).Stats)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats?lastDays=7", nil)
	req.Header.Set(middleware.HeaderAdminKey, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		response.Body
		Data Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Len(t, body.Data.Timeseries, 7)
	assert.Equal(t, 0, body.Data.Meta.Total)
}

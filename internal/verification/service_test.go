package verification

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/internal/auth"
	"github.com/bis-events/gatepass/internal/issuance/issuancetest"
	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/internal/realtime"
	"github.com/bis-events/gatepass/internal/records"
)

const adminKey = "BIScusat"

var kolkata = time.FixedZone("IST", 5*3600+1800)

type env struct {
	f   *issuancetest.Fixture
	svc *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	f := issuancetest.New()
	svc := NewService(f.Store, f.Locker, auth.NewAdminGate(adminKey, ""), f.Feed, kolkata, nil)
	svc.SetClock(func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) })
	return &env{f: f, svc: svc}
}

// ticketed seeds an approved registration and issues its ticket.
func (e *env) ticketed(t *testing.T, name string) *models.Registration {
	t.Helper()
	reg := e.f.Seed(name, models.StatusApproved)
	_, err := e.f.Workflow.IssueIfNeeded(context.Background(), reg.ID)
	require.NoError(t, err)
	got, err := e.f.Store.Get(context.Background(), reg.ID)
	require.NoError(t, err)
	return got
}

func (e *env) setStatus(t *testing.T, reg *models.Registration, s models.Status) {
	t.Helper()
	require.NoError(t, e.f.Store.Update(context.Background(), reg.ID, records.FieldStatus, s))
}

func TestCheckInStampsDayOne(t *testing.T) {
	e := newEnv(t)
	reg := e.ticketed(t, "A. Smith")
	ctx := context.Background()

	res, err := e.svc.CheckIn(ctx, adminKey, reg.TicketID, reg.TicketToken)
	require.NoError(t, err)
	assert.Equal(t, "A. Smith", res.Name)
	assert.True(t, res.Day1AutoMarked)
	require.NotNil(t, res.Day1Stamp)
	assert.Equal(t, "2026-02-03 09:35:06", *res.Day1Stamp)

	got, _ := e.f.Store.Get(ctx, reg.ID)
	assert.True(t, got.CheckedIn)
	assert.Equal(t, "2026-02-03 09:35:06", *got.Day1Attendance)
	assert.Equal(t, 1, e.f.Feed.Count(realtime.EventCheckedIn))
}

func TestCheckInKeepsExistingDayOne(t *testing.T) {
	e := newEnv(t)
	reg := e.ticketed(t, "ravi")
	ctx := context.Background()
	_, err := e.svc.MarkAttendance(ctx, adminKey, reg.TicketID, reg.TicketToken, "day1")
	require.NoError(t, err)

	e.svc.SetClock(func() time.Time { return time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC) })
	res, err := e.svc.CheckIn(ctx, adminKey, reg.TicketID, reg.TicketToken)
	require.NoError(t, err)
	assert.False(t, res.Day1AutoMarked)

	got, _ := e.f.Store.Get(ctx, reg.ID)
	assert.Equal(t, "2026-02-03 09:35:06", *got.Day1Attendance)
}

func TestSecondCheckInIsAlreadyDone(t *testing.T) {
	e := newEnv(t)
	reg := e.ticketed(t, "meera")
	ctx := context.Background()

	_, err := e.svc.CheckIn(ctx, adminKey, reg.TicketID, reg.TicketToken)
	require.NoError(t, err)
	_, err = e.svc.CheckIn(ctx, adminKey, reg.TicketID, reg.TicketToken)
	assert.True(t, apperr.IsKind(err, apperr.AlreadyDone))
	_, err = e.svc.ManualCheckIn(ctx, adminKey, reg.TicketID)
	assert.True(t, apperr.IsKind(err, apperr.AlreadyDone))
	assert.Equal(t, 1, e.f.Feed.Count(realtime.EventCheckedIn))
}

func TestConcurrentCheckInsAdmitOnce(t *testing.T) {
	e := newEnv(t)
	reg := e.ticketed(t, "noor")

	var ok, done int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(manual bool) {
			defer wg.Done()
			var err error
			if manual {
				_, err = e.svc.ManualCheckIn(context.Background(), adminKey, reg.TicketID)
			} else {
				_, err = e.svc.CheckIn(context.Background(), adminKey, reg.TicketID, reg.TicketToken)
			}
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case apperr.IsKind(err, apperr.AlreadyDone):
				atomic.AddInt32(&done, 1)
			}
		}(i%2 == 0)
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(19), done)
}

func TestRejectedIsDeniedEverywhere(t *testing.T) {
	ctx := context.Background()
	cases := map[string]func(e *env, reg *models.Registration){
		"fresh ticket": func(*env, *models.Registration) {},
		"after check-in": func(e *env, reg *models.Registration) {
			_, err := e.svc.CheckIn(ctx, adminKey, reg.TicketID, reg.TicketToken)
			require.NoError(t, err)
		},
	}
	for name, prepare := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			reg := e.ticketed(t, "kiran")
			prepare(e, reg)
			e.setStatus(t, reg, models.StatusRejected)

			_, err := e.svc.CheckIn(ctx, adminKey, reg.TicketID, reg.TicketToken)
			assert.True(t, apperr.IsKind(err, apperr.Denied), "checkIn: %v", err)
			_, err = e.svc.ManualCheckIn(ctx, adminKey, reg.TicketID)
			assert.True(t, apperr.IsKind(err, apperr.Denied), "manualCheckIn: %v", err)
			_, err = e.svc.MarkAttendance(ctx, adminKey, reg.TicketID, reg.TicketToken, "2")
			assert.True(t, apperr.IsKind(err, apperr.Denied), "markAttendance: %v", err)
		})
	}
}

func TestMarkAttendanceRequiresApproved(t *testing.T) {
	ctx := context.Background()
	for _, status := range []models.Status{models.StatusPending, models.StatusRejected, "Waitlisted"} {
		e := newEnv(t)
		reg := e.ticketed(t, "sam")
		e.setStatus(t, reg, status)

		_, err := e.svc.MarkAttendance(ctx, adminKey, reg.TicketID, reg.TicketToken, "day2")
		assert.True(t, apperr.IsKind(err, apperr.Denied), string(status))
	}

	e := newEnv(t)
	reg := e.ticketed(t, "sam")
	e.setStatus(t, reg, models.Status("APPROVED"))
	_, err := e.svc.MarkAttendance(ctx, adminKey, reg.TicketID, reg.TicketToken, "day2")
	assert.NoError(t, err, "known statuses are normalised on write")
}

func TestMarkAttendanceOncePerDay(t *testing.T) {
	e := newEnv(t)
	reg := e.ticketed(t, "lee")
	ctx := context.Background()

	res, err := e.svc.MarkAttendance(ctx, adminKey, reg.TicketID, reg.TicketToken, "day2")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Day)
	assert.Equal(t, "lee", res.Name)
	assert.Equal(t, "2026-02-03 09:35:06", res.Timestamp)

	_, err = e.svc.MarkAttendance(ctx, adminKey, reg.TicketID, reg.TicketToken, "2")
	assert.True(t, apperr.IsKind(err, apperr.AlreadyDone))

	_, err = e.svc.MarkAttendance(ctx, adminKey, reg.TicketID, reg.TicketToken, "Day 3")
	require.NoError(t, err)

	got, _ := e.f.Store.Get(ctx, reg.ID)
	assert.Nil(t, got.Day1Attendance)
	assert.NotNil(t, got.Day2Attendance)
	assert.NotNil(t, got.Day3Attendance)
	assert.False(t, got.CheckedIn, "attendance does not check in")
}

func TestMarkAttendancePlaceholderCountsAsUnmarked(t *testing.T) {
	e := newEnv(t)
	reg := e.ticketed(t, "lee")
	ctx := context.Background()
	require.NoError(t, e.f.Store.Update(ctx, reg.ID, records.FieldDay2Attendance, "No"))

	_, err := e.svc.MarkAttendance(ctx, adminKey, reg.TicketID, reg.TicketToken, "day2")
	assert.NoError(t, err)
}

func TestVerificationLookupFailures(t *testing.T) {
	e := newEnv(t)
	reg := e.ticketed(t, "zed")
	ctx := context.Background()

	_, err := e.svc.CheckIn(ctx, adminKey, reg.TicketID, "wrong-token")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	_, err = e.svc.CheckIn(ctx, adminKey, "BIS-ACAD-NOPE0000", reg.TicketToken)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	_, err = e.svc.MarkAttendance(ctx, adminKey, reg.TicketID, "wrong-token", "1")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	_, err = e.svc.ManualCheckIn(ctx, adminKey, "BIS-ACAD-NOPE0000")
	assert.True(t, apperr.IsKind(err, apperr.NotFound))

	_, err = e.svc.CheckIn(ctx, "bad", reg.TicketID, reg.TicketToken)
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
	_, err = e.svc.CheckIn(ctx, adminKey, "", reg.TicketToken)
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
	_, err = e.svc.MarkAttendance(ctx, adminKey, reg.TicketID, reg.TicketToken, "day4")
	assert.True(t, apperr.IsKind(err, apperr.InvalidInput))
}

func TestManualCheckInTrimsTicketID(t *testing.T) {
	e := newEnv(t)
	reg := e.ticketed(t, "ana")

	res, err := e.svc.ManualCheckIn(context.Background(), adminKey, "  "+reg.TicketID+"\n")
	require.NoError(t, err)
	assert.Equal(t, "ana", res.Name)
}

func TestParseDay(t *testing.T) {
	for in, want := range map[string]int{"1": 1, "day2": 2, "Day 3": 3, " DAY1 ": 1} {
		got, err := ParseDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "0", "4", "day", "tomorrow"} {
		_, err := ParseDay(in)
		assert.True(t, apperr.IsKind(err, apperr.InvalidInput), in)
	}
}

// hand edits to the store can leave statuses in any casing
func (e *env) handEdited(t *testing.T, status models.Status, ticketID string) *models.Registration {
	t.Helper()
	reg := &models.Registration{
		Name:        "edited",
		Email:       "edited@example.org",
		Status:      status,
		TicketID:    ticketID,
		TicketToken: "tok-" + ticketID,
		TicketSent:  true,
	}
	require.NoError(t, e.f.Store.Append(context.Background(), reg))
	return reg
}

func TestLowercaseRejectedIsDenied(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	reg := e.handEdited(t, "rejected", "BIS-ACAD-ZZZZZZZZ")

	_, err := e.svc.CheckIn(ctx, adminKey, reg.TicketID, reg.TicketToken)
	assert.True(t, apperr.IsKind(err, apperr.Denied), "got %v", err)

	_, err = e.svc.ManualCheckIn(ctx, adminKey, reg.TicketID)
	assert.True(t, apperr.IsKind(err, apperr.Denied), "got %v", err)

	got, err := e.f.Store.Get(ctx, reg.ID)
	require.NoError(t, err)
	assert.False(t, got.CheckedIn)
}

func TestLowercaseApprovedMayMarkAttendance(t *testing.T) {
	e := newEnv(t)
	reg := e.handEdited(t, "approved", "BIS-ACAD-YYYYYYYY")

	res, err := e.svc.MarkAttendance(context.Background(), adminKey, reg.TicketID, reg.TicketToken, "2")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Day)
}

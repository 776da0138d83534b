// Package verification is the gate-side state machine: check-in, manual
// check-in and per-day attendance. Every transition happens at most once.
package verification

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/internal/lock"
	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/internal/realtime"
	"github.com/bis-events/gatepass/internal/records"
)

var (
	// ErrTicketNotFound covers unknown tickets and wrong tokens alike.
	ErrTicketNotFound = apperr.E(apperr.NotFound, "Ticket not found")
	// ErrRejected vetoes entry for rejected registrations.
	ErrRejected = apperr.E(apperr.Denied, "Check-in denied: registration rejected")
	// ErrNotApproved blocks attendance for anything but Approved.
	ErrNotApproved = apperr.E(apperr.Denied, "Ticket not approved")
	// ErrAlreadyCheckedIn is the idempotence rejection for check-in.
	ErrAlreadyCheckedIn = apperr.E(apperr.AlreadyDone, "Already Checked In")
)

// Authorizer checks the admin secret.
type Authorizer interface {
	Authorize(credential string) error
}

// CheckInResult is returned by CheckIn and ManualCheckIn.
type CheckInResult struct {
	Name           string  `json:"name"`
	TicketID       string  `json:"ticket_id"`
	Day1Stamp      *string `json:"day1_attendance,omitempty"`
	Day1AutoMarked bool    `json:"day1_auto_marked"`
}

// AttendanceResult is returned by MarkAttendance.
type AttendanceResult struct {
	Name      string `json:"name"`
	TicketID  string `json:"ticket_id"`
	Day       int    `json:"day"`
	Timestamp string `json:"timestamp"`
}

// Service verifies tickets at the gate.
type Service struct {
	store  records.Store
	locker lock.Locker
	gate   Authorizer
	feed   realtime.Publisher
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a verification service. Stamps are written in loc.
func NewService(store records.Store, locker lock.Locker, gate Authorizer, feed realtime.Publisher, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if feed == nil {
		feed = realtime.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, locker: locker, gate: gate, feed: feed, loc: loc, now: time.Now, logger: logger}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) stamp() string {
	return s.now().In(s.loc).Format(models.TimestampLayout)
}

// CheckIn admits the holder of ticketID and token.
func (s *Service) CheckIn(ctx context.Context, adminKey, ticketID, token string) (*CheckInResult, error) {
	if err := s.gate.Authorize(adminKey); err != nil {
		return nil, err
	}
	ticketID, token = strings.TrimSpace(ticketID), strings.TrimSpace(token)
	if ticketID == "" || token == "" {
		return nil, apperr.E(apperr.InvalidInput, "ticket and token are required")
	}
	return s.checkIn(ctx, "scan", func(ctx context.Context) (*models.Registration, error) {
		reg, err := s.store.FindTicket(ctx, ticketID, token)
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, ErrTicketNotFound
		}
		return reg, err
	})
}

// ManualCheckIn admits by ticket ID alone, for staff without a scannable code.
func (s *Service) ManualCheckIn(ctx context.Context, adminKey, ticketID string) (*CheckInResult, error) {
	if err := s.gate.Authorize(adminKey); err != nil {
		return nil, err
	}
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, apperr.E(apperr.InvalidInput, "ticket ID is required")
	}
	return s.checkIn(ctx, "manual", func(ctx context.Context) (*models.Registration, error) {
		reg, err := s.store.FindByField(ctx, records.FieldTicketID, ticketID)
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, ErrTicketNotFound
		}
		return reg, err
	})
}

func (s *Service) checkIn(ctx context.Context, method string, find func(context.Context) (*models.Registration, error)) (*CheckInResult, error) {
	var res *CheckInResult
	err := s.locker.WithLock(ctx, func(ctx context.Context) error {
		reg, err := find(ctx)
		if err != nil {
			return err
		}
		if reg.Status == models.StatusRejected {
			return ErrRejected
		}
		if reg.CheckedIn {
			return ErrAlreadyCheckedIn
		}

		fields := map[records.Field]any{records.FieldCheckedIn: true}
		res = &CheckInResult{Name: reg.Name, TicketID: reg.TicketID, Day1Stamp: reg.Day1Attendance}
		if !reg.AttendanceMarked(1) {
			ts := s.stamp()
			fields[records.FieldDay1Attendance] = &ts
			res.Day1Stamp = &ts
			res.Day1AutoMarked = true
		}
		return s.store.UpdateFields(ctx, reg.ID, fields)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("checked in", zap.String("ticket_id", res.TicketID), zap.String("method", method))
	s.feed.Publish(realtime.EventCheckedIn, map[string]interface{}{
		"ticket_id": res.TicketID,
		"name":      res.Name,
		"method":    method,
	})
	return res, nil
}

// MarkAttendance stamps the given day for a fully verified, Approved ticket.
func (s *Service) MarkAttendance(ctx context.Context, adminKey, ticketID, token, day string) (*AttendanceResult, error) {
	if err := s.gate.Authorize(adminKey); err != nil {
		return nil, err
	}
	ticketID, token = strings.TrimSpace(ticketID), strings.TrimSpace(token)
	if ticketID == "" || token == "" {
		return nil, apperr.E(apperr.InvalidInput, "ticket, token and day are required")
	}
	n, err := ParseDay(day)
	if err != nil {
		return nil, err
	}
	field, err := records.DayField(n)
	if err != nil {
		return nil, err
	}

	var res *AttendanceResult
	err = s.locker.WithLock(ctx, func(ctx context.Context) error {
		reg, err := s.store.FindByField(ctx, records.FieldTicketID, ticketID)
		if err != nil {
			if apperr.IsKind(err, apperr.NotFound) {
				return ErrTicketNotFound
			}
			return err
		}
		if subtle.ConstantTimeCompare([]byte(reg.TicketToken), []byte(token)) != 1 {
			return ErrTicketNotFound
		}
		if reg.Status != models.StatusApproved {
			return ErrNotApproved
		}
		if reg.AttendanceMarked(n) {
			return apperr.E(apperr.AlreadyDone, fmt.Sprintf("Attendance already marked for Day %d", n))
		}
		ts := s.stamp()
		if err := s.store.Update(ctx, reg.ID, field, &ts); err != nil {
			return err
		}
		res = &AttendanceResult{Name: reg.Name, TicketID: reg.TicketID, Day: n, Timestamp: ts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("attendance marked", zap.String("ticket_id", res.TicketID), zap.Int("day", n))
	s.feed.Publish(realtime.EventAttendanceMarked, res)
	return res, nil
}

// ParseDay accepts "1".."3", "day1".."day3" and "Day 1".."Day 3".
func ParseDay(s string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSpace(strings.TrimPrefix(v, "day"))
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > models.Days {
		return 0, apperr.E(apperr.InvalidInput, "Invalid Day")
	}
	return n, nil
}

package models

import (
	"strings"

	"github.com/google/uuid"
)

// TimestampLayout is the wall-clock format used for created-at and attendance stamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Status is the review state of a registration. Values outside the known
// set are kept verbatim.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// ParseStatus trims s and maps known statuses to their canonical spelling
// regardless of case. Anything else passes through unaltered.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	for _, known := range []Status{StatusPending, StatusApproved, StatusRejected} {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return Status(s)
}

// Registration is one applicant's registration and its ticket/attendance state.
type Registration struct {
	ID            uuid.UUID `json:"id"`
	Seq           int64     `json:"seq"`
	CreatedAt     string    `json:"created_at"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	TransactionID string    `json:"transaction_id"`
	ProofURL      string    `json:"proof_url"`
	Status        Status    `json:"status"`
	TicketID      string    `json:"ticket_id"`
	TicketToken   string    `json:"ticket_token"`
	TicketLink    string    `json:"ticket_link"`
	TicketQRURL   string    `json:"ticket_qr_url"`
	TicketSent    bool      `json:"ticket_sent"`
	CheckedIn     bool      `json:"checked_in"`

	Day1Attendance *string `json:"day1_attendance,omitempty"`
	Day2Attendance *string `json:"day2_attendance,omitempty"`
	Day3Attendance *string `json:"day3_attendance,omitempty"`
}

// Days is the number of event days with attendance tracking.
const Days = 3

// Attendance returns the stamp for day (1-based), or nil when unmarked or out of range.
func (r *Registration) Attendance(day int) *string {
	switch day {
	case 1:
		return r.Day1Attendance
	case 2:
		return r.Day2Attendance
	case 3:
		return r.Day3Attendance
	}
	return nil
}

// AttendanceMarked reports whether day already holds a stamp.
func (r *Registration) AttendanceMarked(day int) bool {
	return r.Attendance(day) != nil
}

// SetAttendance stores a stamp for day (1-based). Out-of-range days are ignored.
func (r *Registration) SetAttendance(day int, stamp *string) {
	switch day {
	case 1:
		r.Day1Attendance = stamp
	case 2:
		r.Day2Attendance = stamp
	case 3:
		r.Day3Attendance = stamp
	}
}

// HasTicket reports whether ticket credentials have been written.
func (r *Registration) HasTicket() bool {
	return r.TicketSent && r.TicketID != "" && r.TicketToken != ""
}

// NormalizeStamp turns blank or placeholder attendance values into nil.
// Values of two characters or fewer ("", "-", "No") count as unmarked.
func NormalizeStamp(v string) *string {
	v = strings.TrimSpace(v)
	if len(v) <= 2 || strings.EqualFold(v, "no") {
		return nil
	}
	return &v
}

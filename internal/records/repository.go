// Package records is the storage adapter for registration records.
//
// Records are addressed by a stable UUID assigned at creation. Physical
// order (Seq) only decides which record wins a lookup when several match;
// it is never exposed as a mutation key.
package records

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/internal/models"
)

// Field names a mutable or searchable record column.
type Field string

const (
	FieldID             Field = "id"
	FieldEmail          Field = "email"
	FieldStatus         Field = "status"
	FieldProofURL       Field = "proof_url"
	FieldTicketID       Field = "ticket_id"
	FieldTicketToken    Field = "ticket_token"
	FieldTicketLink     Field = "ticket_link"
	FieldTicketQRURL    Field = "ticket_qr_url"
	FieldTicketSent     Field = "ticket_sent"
	FieldCheckedIn      Field = "checked_in"
	FieldDay1Attendance Field = "day1_attendance"
	FieldDay2Attendance Field = "day2_attendance"
	FieldDay3Attendance Field = "day3_attendance"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = apperr.E(apperr.NotFound, "registration not found")

// Store is the record-by-key contract the services depend on.
type Store interface {
	// Append inserts rec at the end, assigning ID (if zero) and Seq.
	Append(ctx context.Context, rec *models.Registration) error
	Get(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	// FindByField returns the first record in Seq order whose field equals value.
	FindByField(ctx context.Context, field Field, value string) (*models.Registration, error)
	// FindTicket returns the first record matching both ticket ID and token.
	FindTicket(ctx context.Context, ticketID, token string) (*models.Registration, error)
	// List returns all records in Seq order.
	List(ctx context.Context) ([]models.Registration, error)
	Update(ctx context.Context, id uuid.UUID, field Field, value any) error
	// UpdateFields writes all fields in one step; either all land or none.
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[Field]any) error
	// Delete permanently removes the record.
	Delete(ctx context.Context, id uuid.UUID) error
}

// DayField returns the attendance column for day (1-based).
func DayField(day int) (Field, error) {
	switch day {
	case 1:
		return FieldDay1Attendance, nil
	case 2:
		return FieldDay2Attendance, nil
	case 3:
		return FieldDay3Attendance, nil
	}
	return "", apperr.E(apperr.InvalidInput, fmt.Sprintf("invalid day %d", day))
}

var searchable = map[Field]bool{
	FieldID:       true,
	FieldEmail:    true,
	FieldTicketID: true,
}

var mutable = map[Field]bool{
	FieldStatus:         true,
	FieldProofURL:       true,
	FieldTicketID:       true,
	FieldTicketToken:    true,
	FieldTicketLink:     true,
	FieldTicketQRURL:    true,
	FieldTicketSent:     true,
	FieldCheckedIn:      true,
	FieldDay1Attendance: true,
	FieldDay2Attendance: true,
	FieldDay3Attendance: true,
}

func checkMutable(field Field) error {
	if !mutable[field] {
		return fmt.Errorf("field %q is not mutable", field)
	}
	return nil
}

// normalizeValue converts domain types to plain driver values.
func normalizeValue(field Field, value any) (any, error) {
	switch field {
	case FieldTicketSent, FieldCheckedIn:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("field %q wants bool, got %T", field, value)
		}
		return b, nil
	case FieldDay1Attendance, FieldDay2Attendance, FieldDay3Attendance:
		switch v := value.(type) {
		case nil:
			return (*string)(nil), nil
		case *string:
			return v, nil
		case string:
			return models.NormalizeStamp(v), nil
		}
		return nil, fmt.Errorf("field %q wants *string, got %T", field, value)
	case FieldStatus:
		switch v := value.(type) {
		case models.Status:
			return string(models.ParseStatus(string(v))), nil
		case string:
			return string(models.ParseStatus(v)), nil
		}
		return nil, fmt.Errorf("field %q wants status, got %T", field, value)
	default:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("field %q wants string, got %T", field, value)
		}
		return s, nil
	}
}

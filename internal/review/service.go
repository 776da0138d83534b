// Package review implements the admin status change and delete operations.
package review

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/internal/issuance"
	"github.com/bis-events/gatepass/internal/lock"
	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/internal/realtime"
	"github.com/bis-events/gatepass/internal/records"
)

// Authorizer checks the admin secret.
type Authorizer interface {
	Authorize(credential string) error
}

// Issuer runs ticket issuance.
type Issuer interface {
	IssueIfNeeded(ctx context.Context, id uuid.UUID) (*issuance.Result, error)
}

// StatusResult is returned by SetStatus. Warning is set when the status was
// written but ticket issuance failed.
type StatusResult struct {
	ID       uuid.UUID        `json:"id"`
	Status   models.Status    `json:"status"`
	Issuance *issuance.Result `json:"issuance,omitempty"`
	Warning  string           `json:"warning,omitempty"`
	WarnCode apperr.Kind      `json:"warning_code,omitempty"`
}

// Message summarizes the result for display.
func (r *StatusResult) Message() string {
	if r.Status != models.StatusApproved {
		return "Updated status to " + string(r.Status)
	}
	switch {
	case r.Warning != "":
		return "Updated to Approved but Ticket Error: " + r.Warning
	case r.Issuance != nil && r.Issuance.Outcome == issuance.Issued:
		return "Updated to Approved & Ticket Generated"
	}
	return "Updated to Approved (Ticket already sent)"
}

// Service changes the review state of registrations.
type Service struct {
	store  records.Store
	locker lock.Locker
	gate   Authorizer
	issuer Issuer
	feed   realtime.Publisher
	logger *zap.Logger
}

// NewService creates a review service.
func NewService(store records.Store, locker lock.Locker, gate Authorizer, issuer Issuer, feed realtime.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if feed == nil {
		feed = realtime.Nop{}
	}
	return &Service{store: store, locker: locker, gate: gate, issuer: issuer, feed: feed, logger: logger}
}

// ParseKey resolves an external record key. Keys that are not UUIDs cannot
// name any record.
func ParseKey(key string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(key))
	if err != nil {
		return uuid.Nil, records.ErrNotFound
	}
	return id, nil
}

// SetStatus writes the new status unconditionally. Moving to Approved issues
// the ticket if none was sent yet; an issuance failure does not undo the
// status change and is reported as a warning.
func (s *Service) SetStatus(ctx context.Context, adminKey, key, newStatus string) (*StatusResult, error) {
	if err := s.gate.Authorize(adminKey); err != nil {
		return nil, err
	}
	status := models.ParseStatus(newStatus)
	if status == "" {
		return nil, apperr.E(apperr.InvalidInput, "status is required")
	}
	id, err := ParseKey(key)
	if err != nil {
		return nil, err
	}

	var ticketSent bool
	err = s.locker.WithLock(ctx, func(ctx context.Context) error {
		reg, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.store.Update(ctx, id, records.FieldStatus, status); err != nil {
			return err
		}
		ticketSent = reg.TicketSent
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("status changed", zap.String("registration_id", id.String()), zap.String("status", string(status)))
	s.feed.Publish(realtime.EventStatusChanged, map[string]string{
		"registration_id": id.String(),
		"status":          string(status),
	})

	res := &StatusResult{ID: id, Status: status}
	if status != models.StatusApproved || ticketSent {
		return res, nil
	}

	issued, err := s.issuer.IssueIfNeeded(ctx, id)
	if err != nil {
		s.logger.Warn("status approved but ticket not issued", zap.String("registration_id", id.String()), zap.Error(err))
		res.Warning = apperr.Message(err)
		res.WarnCode = apperr.KindOf(err)
		return res, nil
	}
	res.Issuance = issued
	return res, nil
}

// Delete permanently removes a registration.
func (s *Service) Delete(ctx context.Context, adminKey, key string) error {
	if err := s.gate.Authorize(adminKey); err != nil {
		return err
	}
	id, err := ParseKey(key)
	if err != nil {
		return err
	}
	err = s.locker.WithLock(ctx, func(ctx context.Context) error {
		return s.store.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("registration deleted", zap.String("registration_id", id.String()))
	s.feed.Publish(realtime.EventRegistrationDeleted, map[string]string{"registration_id": id.String()})
	return nil
}

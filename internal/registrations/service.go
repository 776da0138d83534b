// Package registrations accepts applicant submissions and serves the
// read-only registration views.
package registrations

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/internal/lock"
	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/internal/realtime"
	"github.com/bis-events/gatepass/internal/records"
	"github.com/bis-events/gatepass/pkg/storage"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	txnPattern   = regexp.MustCompile(`^\d{12}$`)
)

// ErrTicketNotFound is returned by GetTicket for any non-matching pair.
var ErrTicketNotFound = apperr.E(apperr.NotFound, "Ticket not found")

// Authorizer checks the admin secret.
type Authorizer interface {
	Authorize(credential string) error
}

// Options tune submission and listing behaviour.
type Options struct {
	// Location is the event time zone used for created-at stamps.
	Location *time.Location
	// StrictProof turns a failed proof upload into an UpstreamFailure
	// instead of a registration with an empty proof URL.
	StrictProof bool
	// StrictForm applies the registration form's field rules server side.
	StrictForm bool
	// ListRequiresAdmin gates ListAll behind the admin key.
	ListRequiresAdmin bool
}

// SubmitInput is one applicant submission.
type SubmitInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	TransactionID string `json:"transactionId"`
	Screenshot    string `json:"screenshot"`
	MimeType      string `json:"mimeType"`
	FileName      string `json:"fileName"`
}

// Service handles submissions and reads.
type Service struct {
	store  records.Store
	locker lock.Locker
	blob   storage.Blob
	gate   Authorizer
	feed   realtime.Publisher
	opts   Options
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a registrations service.
func NewService(store records.Store, locker lock.Locker, blob storage.Blob, gate Authorizer, feed realtime.Publisher, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if feed == nil {
		feed = realtime.Nop{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{store: store, locker: locker, blob: blob, gate: gate, feed: feed, opts: opts, now: time.Now, logger: logger}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) validate(in *SubmitInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	if in.Name == "" || in.Email == "" || in.Phone == "" {
		return apperr.E(apperr.InvalidInput, "name, email and phone are required")
	}
	if !s.opts.StrictForm {
		return nil
	}
	switch {
	case !emailPattern.MatchString(in.Email):
		return apperr.E(apperr.InvalidInput, "Please enter a valid email address.")
	case !phonePattern.MatchString(in.Phone):
		return apperr.E(apperr.InvalidInput, "Please enter a valid 10-digit phone number.")
	case !txnPattern.MatchString(in.TransactionID):
		return apperr.E(apperr.InvalidInput, "Please enter a valid 12-digit Transaction ID.")
	case in.Screenshot == "":
		return apperr.E(apperr.InvalidInput, "Please upload the payment screenshot.")
	case !isJPEGOrPNG(in.MimeType, in.FileName):
		return apperr.E(apperr.InvalidInput, "Only JPG and PNG screenshots are accepted.")
	}
	return nil
}

// Submit stores the payment proof and appends a Pending registration.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Registration, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	proofURL, err := s.saveProof(ctx, in)
	if err != nil {
		return nil, err
	}

	reg := &models.Registration{
		CreatedAt:     s.now().In(s.opts.Location).Format(models.TimestampLayout),
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		TransactionID: in.TransactionID,
		ProofURL:      proofURL,
		Status:        models.StatusPending,
	}
	err = s.locker.WithLock(ctx, func(ctx context.Context) error {
		return s.store.Append(ctx, reg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("registration submitted", zap.String("registration_id", reg.ID.String()))
	s.feed.Publish(realtime.EventRegistrationSubmitted, map[string]string{
		"registration_id": reg.ID.String(),
		"name":            reg.Name,
		"created_at":      reg.CreatedAt,
	})
	return reg, nil
}

// saveProof uploads the screenshot. Failures yield an empty URL unless
// StrictProof is set.
func (s *Service) saveProof(ctx context.Context, in SubmitInput) (string, error) {
	if in.Screenshot == "" {
		return "", nil
	}
	data, mimeType, err := DecodeProof(in.Screenshot, in.MimeType)
	if err == nil {
		var url string
		url, err = s.blob.Save(ctx, data, mimeType, proofFilename(in.FileName, mimeType), storage.NamespaceProofs)
		if err == nil {
			return url, nil
		}
	}
	s.logger.Warn("payment proof not stored", zap.String("email", in.Email), zap.Error(err))
	if s.opts.StrictProof {
		return "", apperr.Wrap(apperr.UpstreamFailure, "could not store payment proof", err)
	}
	return "", nil
}

// GetTicket returns the registration holding ticketID and token. The token
// is the only credential.
func (s *Service) GetTicket(ctx context.Context, ticketID, token string) (*models.Registration, error) {
	ticketID, token = strings.TrimSpace(ticketID), strings.TrimSpace(token)
	if ticketID == "" || token == "" {
		return nil, apperr.E(apperr.InvalidInput, "Missing params")
	}
	reg, err := s.store.FindTicket(ctx, ticketID, token)
	if apperr.IsKind(err, apperr.NotFound) {
		return nil, ErrTicketNotFound
	}
	return reg, err
}

// ListAll returns every registration in insertion order.
func (s *Service) ListAll(ctx context.Context, adminKey string) ([]models.Registration, error) {
	if s.opts.ListRequiresAdmin {
		if err := s.gate.Authorize(adminKey); err != nil {
			return nil, err
		}
	}
	return s.store.List(ctx)
}

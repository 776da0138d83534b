package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bis-events/gatepass/internal/records"
)

// Authorizer checks the admin secret.
type Authorizer interface {
	Authorize(credential string) error
}

// Service computes statistics from the record store. It never takes the
// write lock.
type Service struct {
	store  records.Store
	gate   Authorizer
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates an analytics service.
func NewService(store records.Store, gate Authorizer, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, gate: gate, loc: loc, now: time.Now, logger: logger}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Compute returns the report covering the trailing lastDays days.
func (s *Service) Compute(ctx context.Context, adminKey string, lastDays int) (*Report, error) {
	if err := s.gate.Authorize(adminKey); err != nil {
		return nil, err
	}
	regs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	rep := Aggregate(regs, lastDays, s.now(), s.loc)
	if rep.UnknownDates > 0 {
		s.logger.Debug("registrations with unparseable created_at", zap.Int("count", rep.UnknownDates))
	}
	return rep, nil
}

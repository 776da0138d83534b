package issuance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ApprovedChannel is the NOTIFY channel raised by the registrations trigger
// whenever a record's status becomes Approved, including edits made directly
// in the database.
const ApprovedChannel = "registration_approved"

// Issuer is the part of the workflow the listener drives.
type Issuer interface {
	IssueIfNeeded(ctx context.Context, id uuid.UUID) (*Result, error)
	Sweep(ctx context.Context) (int, error)
}

// Listener reacts to approval notifications from Postgres.
type Listener struct {
	pool    *pgxpool.Pool
	issuer  Issuer
	logger  *zap.Logger
	backoff time.Duration
	sweep   bool
}

// NewListener creates a listener on the shared pool.
func NewListener(pool *pgxpool.Pool, issuer Issuer, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{pool: pool, issuer: issuer, logger: logger, backoff: 2 * time.Second}
}

// EnableSweep makes the listener sweep for un-issued approvals after every
// (re)connect. A sweep also re-attempts issuances that failed earlier, so it
// is off unless the operator opts in.
func (l *Listener) EnableSweep(on bool) { l.sweep = on }

// Run listens until ctx is cancelled, reconnecting on errors.
func (l *Listener) Run(ctx context.Context) {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("approval listener disconnected", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.backoff):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ApprovedChannel); err != nil {
		return err
	}
	l.logger.Info("listening for approvals", zap.String("channel", ApprovedChannel))

	l.catchUp(ctx)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		id, err := uuid.Parse(n.Payload)
		if err != nil {
			l.logger.Warn("bad approval payload", zap.String("payload", n.Payload))
			continue
		}
		res, err := l.issuer.IssueIfNeeded(ctx, id)
		if err != nil {
			l.logger.Warn("issuance from approval notification failed",
				zap.String("registration_id", id.String()), zap.Error(err))
			continue
		}
		l.logger.Debug("approval notification handled",
			zap.String("registration_id", id.String()), zap.String("outcome", string(res.Outcome)))
	}
}

// catchUp runs the optional sweep.
func (l *Listener) catchUp(ctx context.Context) {
	if !l.sweep {
		return
	}
	if n, err := l.issuer.Sweep(ctx); err != nil {
		l.logger.Warn("approval sweep failed", zap.Error(err))
	} else if n > 0 {
		l.logger.Info("approval sweep issued tickets", zap.Int("count", n))
	}
}

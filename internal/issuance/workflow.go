// Package issuance generates and delivers tickets for approved registrations.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/internal/lock"
	"github.com/bis-events/gatepass/internal/mailer"
	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/internal/qrcode"
	"github.com/bis-events/gatepass/internal/realtime"
	"github.com/bis-events/gatepass/internal/records"
	"github.com/bis-events/gatepass/pkg/storage"
)

// MaxIDAttempts bounds ticket ID regeneration after collisions.
const MaxIDAttempts = 5

// Link query parameters.
const (
	ParamTicket = "ticket"
	ParamToken  = "t"
)

// Outcome says what IssueIfNeeded did.
type Outcome string

const (
	Issued        Outcome = "issued"
	AlreadyIssued Outcome = "already_issued"
	NotApproved   Outcome = "not_approved"
)

// Credentials produces ticket IDs and tokens.
type Credentials interface {
	TicketID() (string, error)
	Token() (string, error)
}

// Result is returned by IssueIfNeeded.
type Result struct {
	Outcome      Outcome              `json:"outcome"`
	Registration *models.Registration `json:"-"`
	TicketID     string               `json:"ticket_id,omitempty"`
	EmailQueued  bool                 `json:"email_queued"`
}

// Deps are the collaborators of the workflow.
type Deps struct {
	Store         records.Store
	Locker        lock.Locker
	Credentials   Credentials
	Renderer      qrcode.Renderer
	Blob          storage.Blob
	Notifier      mailer.Notifier
	Feed          realtime.Publisher
	VerifyBaseURL string
	Logger        *zap.Logger
}

// Workflow issues tickets. It is safe to call IssueIfNeeded any number of
// times for the same record from any trigger; credentials are written once.
type Workflow struct {
	store    records.Store
	locker   lock.Locker
	creds    Credentials
	renderer qrcode.Renderer
	blob     storage.Blob
	notifier mailer.Notifier
	feed     realtime.Publisher
	baseURL  string
	logger   *zap.Logger
	group    singleflight.Group
}

// New creates a workflow.
func New(d Deps) *Workflow {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Feed == nil {
		d.Feed = realtime.Nop{}
	}
	return &Workflow{
		store:    d.Store,
		locker:   d.Locker,
		creds:    d.Credentials,
		renderer: d.Renderer,
		blob:     d.Blob,
		notifier: d.Notifier,
		feed:     d.Feed,
		baseURL:  d.VerifyBaseURL,
		logger:   d.Logger,
	}
}

// IssueIfNeeded issues a ticket for the registration when it is Approved and
// has no ticket yet. Concurrent calls for one record share a single run.
func (w *Workflow) IssueIfNeeded(ctx context.Context, id uuid.UUID) (*Result, error) {
	v, err, _ := w.group.Do(id.String(), func() (interface{}, error) {
		return w.issue(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (w *Workflow) issue(ctx context.Context, id uuid.UUID) (*Result, error) {
	reg, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.TicketSent {
		return &Result{Outcome: AlreadyIssued, Registration: reg, TicketID: reg.TicketID}, nil
	}
	if reg.Status != models.StatusApproved {
		return &Result{Outcome: NotApproved, Registration: reg}, nil
	}

	ticketID, token, err := w.newCredentials(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.IssuanceFailed, "could not generate ticket credentials", err)
	}
	link := BuildLink(w.baseURL, ticketID, token)

	png, err := w.renderer.Render(ctx, link)
	if err != nil {
		w.logger.Warn("qr render failed", zap.String("registration_id", id.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.IssuanceFailed, "could not render ticket QR code", err)
	}
	qrURL, err := w.blob.Save(ctx, png, "image/png", ticketID+".png", storage.NamespaceTickets)
	if err != nil {
		w.logger.Warn("qr upload failed", zap.String("registration_id", id.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.IssuanceFailed, "could not store ticket QR code", err)
	}

	var (
		issued *models.Registration
		result *Result
	)
	err = w.locker.WithLock(ctx, func(ctx context.Context) error {
		cur, err := w.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if cur.TicketSent {
			result = &Result{Outcome: AlreadyIssued, Registration: cur, TicketID: cur.TicketID}
			return nil
		}
		if cur.Status != models.StatusApproved {
			result = &Result{Outcome: NotApproved, Registration: cur}
			return nil
		}
		if err := w.store.UpdateFields(ctx, id, map[records.Field]any{
			records.FieldTicketID:    ticketID,
			records.FieldTicketToken: token,
			records.FieldTicketLink:  link,
			records.FieldTicketQRURL: qrURL,
			records.FieldTicketSent:  true,
		}); err != nil {
			return err
		}
		cur.TicketID = ticketID
		cur.TicketToken = token
		cur.TicketLink = link
		cur.TicketQRURL = qrURL
		cur.TicketSent = true
		issued = cur
		return nil
	})
	if err != nil || issued == nil {
		w.discard(qrURL)
		if err != nil {
			if apperr.IsKind(err, apperr.LockTimeout) || apperr.IsKind(err, apperr.NotFound) {
				return nil, err
			}
			return nil, apperr.Wrap(apperr.IssuanceFailed, "could not save ticket", err)
		}
		return result, nil
	}

	w.logger.Info("ticket issued",
		zap.String("registration_id", id.String()),
		zap.String("ticket_id", ticketID),
	)
	w.feed.Publish(realtime.EventTicketIssued, map[string]string{
		"registration_id": id.String(),
		"ticket_id":       ticketID,
		"name":            issued.Name,
	})

	res := &Result{Outcome: Issued, Registration: issued, TicketID: ticketID}
	if err := w.notifier.SendTicket(ctx, issued); err != nil {
		w.logger.Warn("ticket email not queued",
			zap.String("registration_id", id.String()),
			zap.String("ticket_id", ticketID),
			zap.Error(err),
		)
	} else {
		res.EmailQueued = true
	}
	return res, nil
}

// newCredentials generates a ticket ID not used by any other record.
func (w *Workflow) newCredentials(ctx context.Context) (string, string, error) {
	for attempt := 1; attempt <= MaxIDAttempts; attempt++ {
		ticketID, err := w.creds.TicketID()
		if err != nil {
			return "", "", err
		}
		_, err = w.store.FindByField(ctx, records.FieldTicketID, ticketID)
		if err == nil {
			w.logger.Warn("ticket id collision", zap.String("ticket_id", ticketID), zap.Int("attempt", attempt))
			continue
		}
		if !errors.Is(err, records.ErrNotFound) {
			return "", "", err
		}
		token, err := w.creds.Token()
		if err != nil {
			return "", "", err
		}
		return ticketID, token, nil
	}
	return "", "", fmt.Errorf("no unique ticket id after %d attempts", MaxIDAttempts)
}

// discard removes a QR image that did not end up on a record.
func (w *Workflow) discard(ref string) {
	ctx, cancel := context.WithTimeout(context.Background(), lock.DefaultTimeout)
	defer cancel()
	if err := w.blob.Delete(ctx, ref); err != nil {
		w.logger.Warn("could not discard unused qr", zap.String("ref", ref), zap.Error(err))
	}
}

// Sweep issues tickets for every Approved record still without one. It
// catches approvals whose notification was missed.
func (w *Workflow) Sweep(ctx context.Context) (int, error) {
	list, err := w.store.List(ctx)
	if err != nil {
		return 0, err
	}
	issued := 0
	for _, reg := range list {
		if reg.TicketSent || reg.Status != models.StatusApproved {
			continue
		}
		res, err := w.IssueIfNeeded(ctx, reg.ID)
		if err != nil {
			w.logger.Warn("sweep issuance failed", zap.String("registration_id", reg.ID.String()), zap.Error(err))
			continue
		}
		if res.Outcome == Issued {
			issued++
		}
	}
	return issued, nil
}

// BuildLink composes the verification link carried by the QR code and email.
func BuildLink(base, ticketID, token string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + ParamTicket + "=" + url.QueryEscape(ticketID) + "&" + ParamToken + "=" + url.QueryEscape(token)
}

// ParseLink extracts the ticket ID and token from a verification link.
func ParseLink(link string) (ticketID, token string, err error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", "", apperr.Wrap(apperr.InvalidInput, "invalid ticket link", err)
	}
	q := u.Query()
	ticketID, token = q.Get(ParamTicket), q.Get(ParamToken)
	if ticketID == "" || token == "" {
		return "", "", apperr.E(apperr.InvalidInput, "ticket link is missing ticket or token")
	}
	return ticketID, token, nil
}

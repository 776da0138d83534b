// Package issuancetest wires an issuance workflow over in-memory
// collaborators for use in tests.
package issuancetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bis-events/gatepass/internal/credentials"
	"github.com/bis-events/gatepass/internal/issuance"
	"github.com/bis-events/gatepass/internal/lock"
	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/internal/records"
	"github.com/bis-events/gatepass/pkg/storage"
)

// VerifyBaseURL is the link base used by fixtures.
const VerifyBaseURL = "https://tickets.example.org/verify.html"

// Renderer returns a fixed PNG-ish payload, or Err when set.
type Renderer struct {
	mu    sync.Mutex
	Err   error
	calls int32
}

func (r *Renderer) Render(_ context.Context, text string) ([]byte, error) {
	atomic.AddInt32(&r.calls, 1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return append([]byte("\x89PNG qr:"), text...), nil
}

// Fail makes subsequent renders fail (nil restores).
func (r *Renderer) Fail(err error) {
	r.mu.Lock()
	r.Err = err
	r.mu.Unlock()
}

// Calls returns how many renders were requested.
func (r *Renderer) Calls() int { return int(atomic.LoadInt32(&r.calls)) }

// Notifier records ticket emails.
type Notifier struct {
	mu   sync.Mutex
	Err  error
	Sent []models.Registration
}

func (n *Notifier) SendTicket(_ context.Context, reg *models.Registration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Sent = append(n.Sent, *reg)
	return nil
}

// Count returns the number of emails sent.
func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Sent)
}

// Feed records published events.
type Feed struct {
	mu     sync.Mutex
	Events []string
}

func (f *Feed) Publish(event string, _ interface{}) {
	f.mu.Lock()
	f.Events = append(f.Events, event)
	f.mu.Unlock()
}

// Count returns how many times event was published.
func (f *Feed) Count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.Events {
		if e == event {
			n++
		}
	}
	return n
}

// Fixture bundles a workflow with its fakes.
type Fixture struct {
	Store    *records.Memory
	Locker   *lock.Local
	Blob     *storage.Memory
	Renderer *Renderer
	Notifier *Notifier
	Feed     *Feed
	Workflow *issuance.Workflow
}

// New builds a fixture with real credentials and in-memory collaborators.
func New() *Fixture {
	return NewWithCredentials(credentials.NewGenerator(""))
}

// NewWithCredentials builds a fixture using creds.
func NewWithCredentials(creds issuance.Credentials) *Fixture {
	f := &Fixture{
		Store:    records.NewMemory(),
		Locker:   lock.NewLocal(lock.DefaultTimeout),
		Blob:     storage.NewMemory(),
		Renderer: &Renderer{},
		Notifier: &Notifier{},
		Feed:     &Feed{},
	}
	f.Workflow = issuance.New(issuance.Deps{
		Store:         f.Store,
		Locker:        f.Locker,
		Credentials:   creds,
		Renderer:      f.Renderer,
		Blob:          f.Blob,
		Notifier:      f.Notifier,
		Feed:          f.Feed,
		VerifyBaseURL: VerifyBaseURL,
	})
	return f
}

// Seed appends a registration with the given status and returns it.
func (f *Fixture) Seed(name string, status models.Status) *models.Registration {
	reg := &models.Registration{
		CreatedAt: "2026-01-10 09:30:00",
		Name:      name,
		Email:     name + "@example.org",
		Phone:     "9999999999",
		Status:    status,
	}
	if err := f.Store.Append(context.Background(), reg); err != nil {
		panic(err)
	}
	return reg
}

// ErrRender is a canned renderer failure.
var ErrRender = errors.New("qr service returned 503")

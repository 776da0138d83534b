package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/pkg/queue"
)

func ticketed() *models.Registration {
	return &models.Registration{
		ID:         uuid.New(),
		Name:       `A. Smith <script>`,
		Email:      "a@x.com",
		TicketID:   "BIS-ACAD-ABCD1234",
		TicketLink: "https://verify.example/verify.html?ticket=BIS-ACAD-ABCD1234&t=0123",
	}
}

func TestTicketTemplateEscapesName(t *testing.T) {
	tmpl := NewTicketTemplate("Your Ticket", "the Internship", "The Team")
	subject, body, err := tmpl.Render(ticketed())
	require.NoError(t, err)
	assert.Equal(t, "Your Ticket", subject)
	assert.Contains(t, body, "A. Smith &lt;script&gt;")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "BIS-ACAD-ABCD1234")
	assert.Contains(t, body, `href="https://verify.example/verify.html?ticket=BIS-ACAD-ABCD1234`)
	assert.Contains(t, body, "View Your Ticket")
}

func TestTicketTemplateRequiresTicket(t *testing.T) {
	_, _, err := NewTicketTemplate("s", "e", "t").Render(&models.Registration{})
	assert.Error(t, err)
}

type fakeQueue struct {
	jobs []queue.EmailPayload
	err  error
}

func (f *fakeQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, p)
	return nil
}

func TestQueuedNotifier(t *testing.T) {
	q := &fakeQueue{}
	n := NewQueuedNotifier(q, NewTicketTemplate("Your Ticket", "e", "t"))
	reg := ticketed()

	require.NoError(t, n.SendTicket(context.Background(), reg))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, reg.ID, q.jobs[0].RegistrationID)
	assert.Equal(t, "a@x.com", q.jobs[0].RecipientEmail)
	assert.Equal(t, models.EmailTypeTicket, q.jobs[0].EmailType)

	reg.Email = ""
	assert.Error(t, n.SendTicket(context.Background(), reg))

	q.err = errors.New("redis down")
	assert.Error(t, n.SendTicket(context.Background(), ticketed()))
}

type recordingSender struct {
	to, subject, body string
}

func (r *recordingSender) Send(_ context.Context, to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return nil
}

func TestDirectNotifier(t *testing.T) {
	s := &recordingSender{}
	n := NewDirectNotifier(s, NewTicketTemplate("Your Ticket", "e", "t"))
	require.NoError(t, n.SendTicket(context.Background(), ticketed()))
	assert.Equal(t, "a@x.com", s.to)
	assert.Equal(t, "Your Ticket", s.subject)
	assert.Contains(t, s.body, "BIS-ACAD-ABCD1234")
}

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bis-events/gatepass/internal/models"
	"github.com/bis-events/gatepass/pkg/queue"
)

type flakySender struct {
	mu       sync.Mutex
	failures int
	sent     []string
}

func (s *flakySender) Send(_ context.Context, to, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("smtp 421 try later")
	}
	s.sent = append(s.sent, to)
	return nil
}

func (s *flakySender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type memLogs struct {
	mu   sync.Mutex
	rows []models.EmailLog
}

func (m *memLogs) Insert(_ context.Context, el *models.EmailLog) error {
	m.mu.Lock()
	m.rows = append(m.rows, *el)
	m.mu.Unlock()
	return nil
}

func (m *memLogs) snapshot() []models.EmailLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.EmailLog(nil), m.rows...)
}

func newQueue(t *testing.T) *queue.Queue {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.NewQueue(client, nil)
}

func TestRunRetriesUntilSent(t *testing.T) {
	q := newQueue(t)
	sender := &flakySender{failures: 1}
	logs := &memLogs{}
	p := NewEmailProcessor(q, sender, logs, nil)
	p.SetBackoff(10 * time.Millisecond)

	regID := uuid.New()
	require.NoError(t, q.EnqueueEmail(context.Background(), queue.EmailPayload{
		EmailType:      models.EmailTypeTicket,
		RegistrationID: regID,
		RecipientEmail: "a@x.com",
		Subject:        "Your ticket",
		BodyHTML:       "<p>hi</p>",
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return sender.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	rows := logs.snapshot()
	require.Len(t, rows, 2)
	assert.Equal(t, models.EmailLogStatusFailed, rows[0].Status)
	assert.Equal(t, 1, rows[0].Attempt)
	assert.Contains(t, rows[0].ErrorMessage, "421")
	assert.Equal(t, models.EmailLogStatusSent, rows[1].Status)
	assert.Equal(t, 2, rows[1].Attempt)
	assert.NotNil(t, rows[1].SentAt)
	assert.Equal(t, regID, *rows[1].RegistrationID)
}

func TestProcessRejectsUnknownJob(t *testing.T) {
	p := NewEmailProcessor(nil, &flakySender{}, nil, nil)
	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "recording"})
	assert.Error(t, err)
}

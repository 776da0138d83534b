package records

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bis-events/gatepass/internal/models"
)

// Memory is an in-process Store used by tests and local runs without Postgres.
type Memory struct {
	mu   sync.RWMutex
	rows []*models.Registration
	seq  int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func clone(r *models.Registration) *models.Registration {
	c := *r
	for day := 1; day <= models.Days; day++ {
		if s := r.Attendance(day); s != nil {
			v := *s
			c.SetAttendance(day, &v)
		}
	}
	return &c
}

func (m *Memory) indexOf(id uuid.UUID) int {
	for i, r := range m.rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (m *Memory) Append(_ context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	reg.Status = models.ParseStatus(string(reg.Status))
	m.seq++
	reg.Seq = m.seq
	m.rows = append(m.rows, clone(reg))
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexOf(id); i >= 0 {
		return clone(m.rows[i]), nil
	}
	return nil, ErrNotFound
}

func (m *Memory) FindByField(ctx context.Context, field Field, value string) (*models.Registration, error) {
	if !searchable[field] {
		return nil, fmt.Errorf("field %q is not searchable", field)
	}
	if field == FieldID {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, ErrNotFound
		}
		return m.Get(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rows {
		var v string
		switch field {
		case FieldEmail:
			v = r.Email
		case FieldTicketID:
			v = r.TicketID
		}
		if v == value {
			return clone(r), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindTicket(_ context.Context, ticketID, token string) (*models.Registration, error) {
	if ticketID == "" || token == "" {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rows {
		if r.TicketID == ticketID && r.TicketToken == token {
			return clone(r), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) List(_ context.Context) ([]models.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]models.Registration, 0, len(m.rows))
	for _, r := range m.rows {
		list = append(list, *clone(r))
	}
	return list, nil
}

func (m *Memory) Update(ctx context.Context, id uuid.UUID, field Field, value any) error {
	return m.UpdateFields(ctx, id, map[Field]any{field: value})
}

func (m *Memory) UpdateFields(_ context.Context, id uuid.UUID, fields map[Field]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	next := clone(m.rows[i])
	for f, raw := range fields {
		if err := checkMutable(f); err != nil {
			return err
		}
		v, err := normalizeValue(f, raw)
		if err != nil {
			return err
		}
		switch f {
		case FieldStatus:
			next.Status = models.Status(v.(string))
		case FieldProofURL:
			next.ProofURL = v.(string)
		case FieldTicketID:
			next.TicketID = v.(string)
		case FieldTicketToken:
			next.TicketToken = v.(string)
		case FieldTicketLink:
			next.TicketLink = v.(string)
		case FieldTicketQRURL:
			next.TicketQRURL = v.(string)
		case FieldTicketSent:
			next.TicketSent = v.(bool)
		case FieldCheckedIn:
			next.CheckedIn = v.(bool)
		case FieldDay1Attendance:
			next.Day1Attendance = v.(*string)
		case FieldDay2Attendance:
			next.Day2Attendance = v.(*string)
		case FieldDay3Attendance:
			next.Day3Attendance = v.(*string)
		}
	}
	m.rows[i] = next
	return nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	return nil
}

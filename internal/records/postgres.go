package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bis-events/gatepass/internal/models"
)

const columns = `id, seq, created_at, name, email, phone, transaction_id, proof_url, status,
	ticket_id, ticket_token, ticket_link, ticket_qr_url, ticket_sent, checked_in,
	day1_attendance, day2_attendance, day3_attendance`

// SourceSetting is the transaction-local setting that tags writes made by
// this service. The registrations trigger skips rows written with it.
const SourceSetting = "gatepass.source"

// SetSourceSQL tags the current transaction as a service write.
const SetSourceSQL = `SELECT set_config('` + SourceSetting + `', 'api', true)`

// Postgres stores registrations in the registrations table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed record store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var status string
	err := row.Scan(&reg.ID, &reg.Seq, &reg.CreatedAt, &reg.Name, &reg.Email, &reg.Phone,
		&reg.TransactionID, &reg.ProofURL, &status,
		&reg.TicketID, &reg.TicketToken, &reg.TicketLink, &reg.TicketQRURL, &reg.TicketSent, &reg.CheckedIn,
		&reg.Day1Attendance, &reg.Day2Attendance, &reg.Day3Attendance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// Rows edited by hand may carry any casing.
	reg.Status = models.ParseStatus(status)
	return &reg, nil
}

// Append inserts a registration; seq is assigned by the database.
func (p *Postgres) Append(ctx context.Context, reg *models.Registration) error {
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	reg.Status = models.ParseStatus(string(reg.Status))
	const q = `INSERT INTO registrations (id, created_at, name, email, phone, transaction_id, proof_url, status,
		ticket_id, ticket_token, ticket_link, ticket_qr_url, ticket_sent, checked_in,
		day1_attendance, day2_attendance, day3_attendance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING seq`
	return p.pool.QueryRow(ctx, q, reg.ID, reg.CreatedAt, reg.Name, reg.Email, reg.Phone, reg.TransactionID,
		reg.ProofURL, string(reg.Status), reg.TicketID, reg.TicketToken, reg.TicketLink, reg.TicketQRURL,
		reg.TicketSent, reg.CheckedIn, reg.Day1Attendance, reg.Day2Attendance, reg.Day3Attendance).
		Scan(&reg.Seq)
}

// Get returns a registration by ID.
func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	q := `SELECT ` + columns + ` FROM registrations WHERE id = $1`
	return scanRegistration(p.pool.QueryRow(ctx, q, id))
}

// FindByField returns the earliest registration whose field equals value.
func (p *Postgres) FindByField(ctx context.Context, field Field, value string) (*models.Registration, error) {
	if !searchable[field] {
		return nil, fmt.Errorf("field %q is not searchable", field)
	}
	if field == FieldID {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, ErrNotFound
		}
		return p.Get(ctx, id)
	}
	q := `SELECT ` + columns + ` FROM registrations WHERE ` + string(field) + ` = $1 ORDER BY seq LIMIT 1`
	return scanRegistration(p.pool.QueryRow(ctx, q, value))
}

// FindTicket returns the earliest registration holding both ticketID and token.
func (p *Postgres) FindTicket(ctx context.Context, ticketID, token string) (*models.Registration, error) {
	if ticketID == "" || token == "" {
		return nil, ErrNotFound
	}
	q := `SELECT ` + columns + ` FROM registrations WHERE ticket_id = $1 AND ticket_token = $2 ORDER BY seq LIMIT 1`
	return scanRegistration(p.pool.QueryRow(ctx, q, ticketID, token))
}

// List returns every registration in insertion order.
func (p *Postgres) List(ctx context.Context) ([]models.Registration, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+columns+` FROM registrations ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *reg)
	}
	return list, rows.Err()
}

// Update writes a single field.
func (p *Postgres) Update(ctx context.Context, id uuid.UUID, field Field, value any) error {
	return p.UpdateFields(ctx, id, map[Field]any{field: value})
}

// UpdateFields writes several fields in one UPDATE statement.
func (p *Postgres) UpdateFields(ctx context.Context, id uuid.UUID, fields map[Field]any) error {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for f := range fields {
		if err := checkMutable(f); err != nil {
			return err
		}
		names = append(names, string(f))
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names))
	args := make([]any, 0, len(names)+1)
	args = append(args, id)
	for i, name := range names {
		v, err := normalizeValue(Field(name), fields[Field(name)])
		if err != nil {
			return err
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", name, i+2))
		args = append(args, v)
	}
	q := `UPDATE registrations SET ` + strings.Join(sets, ", ") + `, updated_at = NOW() WHERE id = $1`
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		// The approval trigger only serves edits made outside the service;
		// the service issues tickets for its own approvals.
		if _, err := tx.Exec(ctx, SetSourceSQL); err != nil {
			return fmt.Errorf("mark write source: %w", err)
		}
		tag, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Delete removes a registration permanently.
func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

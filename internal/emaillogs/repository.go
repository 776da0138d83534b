package emaillogs

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bis-events/gatepass/internal/models"
)

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 200

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records one delivery attempt.
func (r *Repository) Insert(ctx context.Context, el *models.EmailLog) error {
	if el.ID == uuid.Nil {
		el.ID = uuid.New()
	}
	const q = `INSERT INTO email_logs (id, registration_id, email_type, recipient_email, subject, status, attempt, sent_at, error_message)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NULLIF($9, ''))
		RETURNING created_at`
	return r.pool.QueryRow(ctx, q,
		el.ID, el.RegistrationID, el.EmailType, el.RecipientEmail, el.Subject,
		el.Status, el.Attempt, el.SentAt, el.ErrorMessage,
	).Scan(&el.CreatedAt)
}

// List returns the newest email logs, optionally for one registration.
func (r *Repository) List(ctx context.Context, registrationID *uuid.UUID, limit int) ([]*models.EmailLog, error) {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	const q = `SELECT id, registration_id, email_type, recipient_email, subject, status, attempt, sent_at, error_message, created_at
		FROM email_logs
		WHERE ($1::uuid IS NULL OR registration_id = $1)
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, registrationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.RegistrationID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status, &el.Attempt, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}

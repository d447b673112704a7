package postgres

import (
	"context"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/jmoiron/sqlx"
)

type SecurityEventRepository struct {
	db *sqlx.DB
}

func NewSecurityEventRepository(db *sqlx.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

// Create appends one audit event. Runs on the supplied executor so flag
// writes can include it in their transaction.
func (r *SecurityEventRepository) Create(ctx context.Context, ext sqlx.ExtContext, event *domain.SecurityEvent) error {
	query := `
		INSERT INTO security_events (
			id, user_id, event_type, severity, description, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`
	_, err := ext.ExecContext(ctx, query,
		event.ID, event.UserID, event.EventType, event.Severity,
		event.Description, event.Metadata, event.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(translateSchemaErr(err), "failed to log security event")
	}
	return nil
}

// FindAll lists events newest first for operator review.
func (r *SecurityEventRepository) FindAll(ctx context.Context, limit, offset int) ([]domain.SecurityEvent, int, error) {
	var events []domain.SecurityEvent
	var total int

	query := `
		SELECT id, user_id, event_type, severity, description, metadata, created_at
		FROM security_events
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	err := r.db.SelectContext(ctx, &events, query, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(translateSchemaErr(err), "failed to list security events")
	}

	err = r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM security_events`)
	if err != nil {
		return nil, 0, errors.Wrap(translateSchemaErr(err), "failed to count security events")
	}

	return events, total, nil
}

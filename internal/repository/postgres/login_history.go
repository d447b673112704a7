package postgres

import (
	"context"
	"time"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type LoginHistoryRepository struct {
	db *sqlx.DB
}

func NewLoginHistoryRepository(db *sqlx.DB) *LoginHistoryRepository {
	return &LoginHistoryRepository{db: db}
}

// Create appends one login attempt row.
func (r *LoginHistoryRepository) Create(ctx context.Context, entry *domain.LoginHistory) error {
	query := `
		INSERT INTO login_history (
			id, user_id, ip_address, user_agent, device_info, login_method,
			success, failure_reason, created_at
		) VALUES (
			:id, :user_id, :ip_address, :user_agent, :device_info, :login_method,
			:success, :failure_reason, :created_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return errors.Wrap(translateSchemaErr(err), "failed to record login attempt")
	}
	return nil
}

// CountFailedSince counts the user's failed attempts after the cutoff.
func (r *LoginHistoryRepository) CountFailedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM login_history
		WHERE user_id = $1 AND success = false AND created_at >= $2
	`
	err := r.db.GetContext(ctx, &count, query, userID, since)
	if err != nil {
		return 0, errors.Wrap(translateSchemaErr(err), "failed to count failed logins")
	}
	return count, nil
}

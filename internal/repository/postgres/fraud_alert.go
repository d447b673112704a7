package postgres

import (
	"context"
	"fmt"
	"time"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type FraudAlertRepository struct {
	db *sqlx.DB
}

func NewFraudAlertRepository(db *sqlx.DB) *FraudAlertRepository {
	return &FraudAlertRepository{db: db}
}

// Create appends one alert row.
func (r *FraudAlertRepository) Create(ctx context.Context, alert *domain.FraudAlert) error {
	query := `
		INSERT INTO fraud_alerts (
			id, user_id, rule_type, severity, description, evidence,
			risk_score_contribution, status, created_at
		) VALUES (
			:id, :user_id, :rule_type, :severity, :description, :evidence,
			:risk_score_contribution, :status, :created_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, alert)
	if err != nil {
		return errors.Wrap(translateSchemaErr(err), "failed to create fraud alert")
	}
	return nil
}

// FindAll lists alerts newest first, optionally filtered by status.
func (r *FraudAlertRepository) FindAll(ctx context.Context, status domain.AlertStatus, limit, offset int) ([]domain.FraudAlert, int, error) {
	var alerts []domain.FraudAlert
	var total int

	query := `
		SELECT id, user_id, rule_type, severity, description, evidence,
		       risk_score_contribution, status, created_at, resolved_at, resolution_notes
		FROM fraud_alerts
	`
	countQuery := `SELECT COUNT(*) FROM fraud_alerts`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		countQuery += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + fmt.Sprint(len(args)+1) + ` OFFSET $` + fmt.Sprint(len(args)+2)

	err := r.db.SelectContext(ctx, &alerts, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.Wrap(translateSchemaErr(err), "failed to list fraud alerts")
	}

	err = r.db.GetContext(ctx, &total, countQuery, args...)
	if err != nil {
		return nil, 0, errors.Wrap(translateSchemaErr(err), "failed to count fraud alerts")
	}

	return alerts, total, nil
}

// CountCreatedSince counts alerts created after the cutoff.
func (r *FraudAlertRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM fraud_alerts WHERE created_at >= $1`
	err := r.db.GetContext(ctx, &count, query, since)
	if err != nil {
		return 0, errors.Wrap(translateSchemaErr(err), "failed to count recent alerts")
	}
	return count, nil
}

// CountByStatus counts alerts in the given status.
func (r *FraudAlertRepository) CountByStatus(ctx context.Context, status domain.AlertStatus) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM fraud_alerts WHERE status = $1`
	err := r.db.GetContext(ctx, &count, query, status)
	if err != nil {
		return 0, errors.Wrap(translateSchemaErr(err), "failed to count alerts by status")
	}
	return count, nil
}

// ResolvePendingByUser transitions every pending alert for the user to
// resolved. It runs on the supplied executor so unflag can include it in
// the same transaction as the user update.
func (r *FraudAlertRepository) ResolvePendingByUser(ctx context.Context, ext sqlx.ExtContext, userID uuid.UUID, notes *string, resolvedAt time.Time) error {
	query := `
		UPDATE fraud_alerts
		SET status = $1, resolved_at = $2, resolution_notes = $3
		WHERE user_id = $4 AND status = $5
	`
	_, err := ext.ExecContext(ctx, query,
		domain.AlertStatusResolved, resolvedAt, notes, userID, domain.AlertStatusPending,
	)
	if err != nil {
		return errors.Wrap(translateSchemaErr(err), "failed to resolve pending alerts")
	}
	return nil
}

package postgres

import (
	"context"
	"time"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// FlagStore performs the flag/unflag state transitions. Both span multiple
// tables, so they run inside a single transaction; the initial UPDATE on
// users takes the row lock that serializes concurrent flag actions on the
// same account.
type FlagStore struct {
	db     *sqlx.DB
	alerts *FraudAlertRepository
	events *SecurityEventRepository
}

func NewFlagStore(db *sqlx.DB, alerts *FraudAlertRepository, events *SecurityEventRepository) *FlagStore {
	return &FlagStore{db: db, alerts: alerts, events: events}
}

// Flag marks the account for review and writes the account_locked audit
// event in the same transaction.
func (s *FlagStore) Flag(ctx context.Context, userID uuid.UUID, reason, reviewedBy string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin flag transaction")
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET is_flagged = true, flagged_reason = $1, flagged_at = $2,
		    reviewed_by = $3, updated_at = $2
		WHERE id = $4
	`, reason, now, reviewedBy, userID)
	if err != nil {
		return errors.Wrap(err, "failed to flag user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrUserNotFound
	}

	event := &domain.SecurityEvent{
		ID:          uuid.New(),
		UserID:      userID,
		EventType:   domain.EventAccountLocked,
		Severity:    string(domain.SeverityHigh),
		Description: reason,
		Metadata:    domain.Metadata{"reviewed_by": reviewedBy},
		CreatedAt:   now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit flag transaction")
}

// Unflag clears the review lock, bulk-resolves the user's pending alerts,
// and writes the audit event, all atomically.
func (s *FlagStore) Unflag(ctx context.Context, userID uuid.UUID, reviewerID string, notes *string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin unflag transaction")
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET is_flagged = false, reviewed_by = $1, reviewed_at = $2, updated_at = $2
		WHERE id = $3
	`, reviewerID, now, userID)
	if err != nil {
		return errors.Wrap(err, "failed to unflag user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrUserNotFound
	}

	if err := s.alerts.ResolvePendingByUser(ctx, tx, userID, notes, now); err != nil {
		return err
	}

	event := &domain.SecurityEvent{
		ID:          uuid.New(),
		UserID:      userID,
		EventType:   domain.EventAccountUnlocked,
		Severity:    string(domain.SeverityMedium),
		Description: "Account review completed, flag cleared",
		Metadata:    domain.Metadata{"reviewed_by": reviewerID},
		CreatedAt:   now,
	}
	if err := s.events.Create(ctx, tx, event); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "failed to commit unflag transaction")
}

package postgres

import (
	"context"
	"database/sql"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, email, username, referrer_id, user_type, risk_score,
	is_flagged, flagged_reason, flagged_at, reviewed_by, reviewed_at,
	is_active, created_at, updated_at
`

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &user, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	err := r.db.GetContext(ctx, &user, query, email)
	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user by email")
	}
	return &user, nil
}

// UpdateRiskScore overwrites the user's risk score. Called on every
// scoring run.
func (r *UserRepository) UpdateRiskScore(ctx context.Context, id uuid.UUID, score int) error {
	query := `UPDATE users SET risk_score = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, score, id)
	if err != nil {
		return errors.Wrap(err, "failed to update risk score")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

// FlagState is the gate's read: only the two columns the request path needs.
func (r *UserRepository) FlagState(ctx context.Context, id uuid.UUID) (bool, *string, error) {
	var row struct {
		IsFlagged     bool    `db:"is_flagged"`
		FlaggedReason *string `db:"flagged_reason"`
	}
	query := `SELECT is_flagged, flagged_reason FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return false, nil, errors.ErrUserNotFound
	}
	if err != nil {
		return false, nil, errors.Wrap(err, "failed to read flag state")
	}
	return row.IsFlagged, row.FlaggedReason, nil
}

func (r *UserRepository) CountFlagged(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE is_flagged = true`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count flagged users")
	}
	return count, nil
}

func (r *UserRepository) CountHighRisk(ctx context.Context, minScore int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE risk_score >= $1`, minScore)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count high risk users")
	}
	return count, nil
}

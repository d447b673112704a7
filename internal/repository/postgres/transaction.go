package postgres

import (
	"context"
	"time"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CountByTypeSince counts a user's transactions of the given type created
// after the cutoff. The risk engine uses this for the commission-burst factor.
func (r *TransactionRepository) CountByTypeSince(ctx context.Context, userID uuid.UUID, txType domain.TransactionType, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM transactions
		WHERE user_id = $1 AND transaction_type = $2 AND created_at >= $3
	`
	err := r.db.GetContext(ctx, &count, query, userID, txType, since)
	if err != nil {
		return 0, errors.Wrap(translateSchemaErr(err), "failed to count transactions")
	}
	return count, nil
}

// FindRecentByUser lists a user's latest transactions for review tooling.
func (r *TransactionRepository) FindRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	query := `
		SELECT id, user_id, transaction_type, amount, currency, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	err := r.db.SelectContext(ctx, &txs, query, userID, limit)
	if err != nil {
		return nil, errors.Wrap(translateSchemaErr(err), "failed to list transactions")
	}
	return txs, nil
}

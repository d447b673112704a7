package postgres

import (
	"context"
	"time"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type IPAddressRepository struct {
	db *sqlx.DB
}

func NewIPAddressRepository(db *sqlx.DB) *IPAddressRepository {
	return &IPAddressRepository{db: db}
}

// Upsert inserts an observation or bumps last_seen_at/login_count for an
// existing (user_id, ip_address) pair in one atomic statement.
func (r *IPAddressRepository) Upsert(ctx context.Context, ip *domain.IPAddress) error {
	query := `
		INSERT INTO ip_addresses (
			id, user_id, ip_address, first_seen_at, last_seen_at, login_count
		) VALUES (
			$1, $2, $3, $4, $5, 1
		)
		ON CONFLICT (user_id, ip_address) DO UPDATE SET
			last_seen_at = EXCLUDED.last_seen_at,
			login_count = ip_addresses.login_count + 1
	`
	_, err := r.db.ExecContext(ctx, query,
		ip.ID, ip.UserID, ip.IPAddress, ip.FirstSeenAt, ip.LastSeenAt,
	)
	if err != nil {
		return errors.Wrap(translateSchemaErr(err), "failed to upsert ip address")
	}
	return nil
}

// CountDistinctUsersSharing returns how many distinct users (the subject
// included) have logged in from any IP the subject has used.
func (r *IPAddressRepository) CountDistinctUsersSharing(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := `
		SELECT COUNT(DISTINCT ia.user_id)
		FROM ip_addresses ia
		WHERE ia.ip_address IN (
			SELECT ip_address FROM ip_addresses WHERE user_id = $1
		)
	`
	err := r.db.GetContext(ctx, &count, query, userID)
	if err != nil {
		return 0, errors.Wrap(translateSchemaErr(err), "failed to count users sharing ip")
	}
	return count, nil
}

// CountRecentRegistrationsSharing counts accounts created after the cutoff
// that share at least one IP with the subject, the subject excluded.
func (r *IPAddressRepository) CountRecentRegistrationsSharing(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(DISTINCT u.id)
		FROM ip_addresses ia
		JOIN users u ON u.id = ia.user_id
		WHERE ia.ip_address IN (
			SELECT ip_address FROM ip_addresses WHERE user_id = $1
		)
		AND u.id != $1
		AND u.created_at >= $2
	`
	err := r.db.GetContext(ctx, &count, query, userID, since)
	if err != nil {
		return 0, errors.Wrap(translateSchemaErr(err), "failed to count recent registrations sharing ip")
	}
	return count, nil
}

// FindUsersSharing returns the other users seen on any of the subject's IPs.
func (r *IPAddressRepository) FindUsersSharing(ctx context.Context, userID uuid.UUID) ([]domain.RelatedAccount, error) {
	var accounts []domain.RelatedAccount
	query := `
		SELECT DISTINCT u.id, u.username, u.email, u.created_at
		FROM ip_addresses ia
		JOIN users u ON u.id = ia.user_id
		WHERE ia.ip_address IN (
			SELECT ip_address FROM ip_addresses WHERE user_id = $1
		)
		AND ia.user_id != $1
		ORDER BY u.created_at DESC
	`
	err := r.db.SelectContext(ctx, &accounts, query, userID)
	if err != nil {
		return nil, errors.Wrap(translateSchemaErr(err), "failed to find users sharing ip")
	}
	return accounts, nil
}

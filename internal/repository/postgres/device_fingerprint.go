package postgres

import (
	"context"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type DeviceFingerprintRepository struct {
	db *sqlx.DB
}

func NewDeviceFingerprintRepository(db *sqlx.DB) *DeviceFingerprintRepository {
	return &DeviceFingerprintRepository{db: db}
}

// Upsert inserts a fingerprint row or, when (user_id, fingerprint_hash)
// already exists, bumps last_seen_at and login_count. A single conditional
// write so concurrent logins from the same user never lose an increment.
func (r *DeviceFingerprintRepository) Upsert(ctx context.Context, fp *domain.DeviceFingerprint) error {
	query := `
		INSERT INTO device_fingerprints (
			id, user_id, fingerprint_hash, browser, os, device_type, user_agent,
			first_seen_at, last_seen_at, login_count
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, 1
		)
		ON CONFLICT (user_id, fingerprint_hash) DO UPDATE SET
			last_seen_at = EXCLUDED.last_seen_at,
			login_count = device_fingerprints.login_count + 1
	`
	_, err := r.db.ExecContext(ctx, query,
		fp.ID, fp.UserID, fp.FingerprintHash, fp.Browser, fp.OS, fp.DeviceType,
		fp.UserAgent, fp.FirstSeenAt, fp.LastSeenAt,
	)
	if err != nil {
		return errors.Wrap(translateSchemaErr(err), "failed to upsert device fingerprint")
	}
	return nil
}

// CountDistinctUsersSharing returns how many distinct users (the subject
// included) have used any fingerprint hash the subject has used.
func (r *DeviceFingerprintRepository) CountDistinctUsersSharing(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := `
		SELECT COUNT(DISTINCT df.user_id)
		FROM device_fingerprints df
		WHERE df.fingerprint_hash IN (
			SELECT fingerprint_hash FROM device_fingerprints WHERE user_id = $1
		)
	`
	err := r.db.GetContext(ctx, &count, query, userID)
	if err != nil {
		return 0, errors.Wrap(translateSchemaErr(err), "failed to count users sharing device")
	}
	return count, nil
}

// FindUsersSharing returns the other users seen on any of the subject's
// fingerprints, newest accounts first.
func (r *DeviceFingerprintRepository) FindUsersSharing(ctx context.Context, userID uuid.UUID) ([]domain.RelatedAccount, error) {
	var accounts []domain.RelatedAccount
	query := `
		SELECT DISTINCT u.id, u.username, u.email, u.created_at
		FROM device_fingerprints df
		JOIN users u ON u.id = df.user_id
		WHERE df.fingerprint_hash IN (
			SELECT fingerprint_hash FROM device_fingerprints WHERE user_id = $1
		)
		AND df.user_id != $1
		ORDER BY u.created_at DESC
	`
	err := r.db.SelectContext(ctx, &accounts, query, userID)
	if err != nil {
		return nil, errors.Wrap(translateSchemaErr(err), "failed to find users sharing device")
	}
	return accounts, nil
}

// FindByUser lists the subject's own fingerprints, most recently seen first.
func (r *DeviceFingerprintRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.DeviceFingerprint, error) {
	var fps []domain.DeviceFingerprint
	query := `
		SELECT id, user_id, fingerprint_hash, browser, os, device_type, user_agent,
		       first_seen_at, last_seen_at, login_count
		FROM device_fingerprints
		WHERE user_id = $1
		ORDER BY last_seen_at DESC
	`
	err := r.db.SelectContext(ctx, &fps, query, userID)
	if err != nil {
		return nil, errors.Wrap(translateSchemaErr(err), "failed to list device fingerprints")
	}
	return fps, nil
}

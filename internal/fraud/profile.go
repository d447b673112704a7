package fraud

import (
	"context"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/google/uuid"
)

const profileTransactionLimit = 20

// UserProfile is the operator review view of one account: the user row
// plus the identity and ledger context a reviewer needs to judge a flag.
type UserProfile struct {
	User               *domain.User               `json:"user"`
	Devices            []domain.DeviceFingerprint `json:"devices"`
	RecentTransactions []domain.Transaction       `json:"recent_transactions"`
}

// UserProfile assembles the review view. Sections backed by unprovisioned
// tables come back empty rather than failing the whole view.
func (s *Service) UserProfile(ctx context.Context, userID uuid.UUID) (*UserProfile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &UserProfile{
		User:               user,
		Devices:            []domain.DeviceFingerprint{},
		RecentTransactions: []domain.Transaction{},
	}

	if s.caps.DeviceTracking {
		devices, err := s.devices.FindByUser(ctx, userID)
		if err != nil && !errors.Is(err, errors.ErrSchemaNotProvisioned) {
			return nil, err
		}
		if devices != nil {
			profile.Devices = devices
		}
	}

	if s.caps.Transactions {
		txs, err := s.txs.FindRecentByUser(ctx, userID, profileTransactionLimit)
		if err != nil && !errors.Is(err, errors.ErrSchemaNotProvisioned) {
			return nil, err
		}
		if txs != nil {
			profile.RecentTransactions = txs
		}
	}

	return profile, nil
}

// Rules lists the configured fraud rules for operator tooling. Without a
// provisioned rule table the engine runs on defaults and the list is empty.
func (s *Service) Rules(ctx context.Context) ([]domain.FraudRule, error) {
	if !s.caps.FraudRules {
		return []domain.FraudRule{}, nil
	}
	rules, err := s.rules.FindAll(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrSchemaNotProvisioned) {
			return []domain.FraudRule{}, nil
		}
		return nil, err
	}
	return rules, nil
}

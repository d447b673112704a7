package fraud

import (
	"context"

	"refnet/internal/domain"

	"github.com/google/uuid"
)

// Confidence constants per relationship type. Device sharing is weighted
// higher than IP sharing: an IP can be shared innocently through NAT or a
// carrier, a fingerprint match is stronger identity correlation.
const (
	ConfidenceSharedIP     = 70
	ConfidenceSharedDevice = 85
)

// FindRelatedAccounts discovers other users sharing an IP address or
// device fingerprint with the subject. The two relation queries are
// independent and their results are unioned without deduplication: a pair
// related both ways yields two entries, one per relationship type. The
// subject itself never appears in the results.
func (s *Service) FindRelatedAccounts(ctx context.Context, userID uuid.UUID) ([]domain.RelatedAccount, error) {
	related := []domain.RelatedAccount{}
	if !s.caps.DeviceTracking {
		return related, nil
	}

	byIP, err := s.ips.FindUsersSharing(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, acc := range byIP {
		acc.Relationship = domain.RelationshipSharedIP
		acc.Confidence = ConfidenceSharedIP
		related = append(related, acc)
	}

	byDevice, err := s.devices.FindUsersSharing(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, acc := range byDevice {
		acc.Relationship = domain.RelationshipSharedDevice
		acc.Confidence = ConfidenceSharedDevice
		related = append(related, acc)
	}

	return related, nil
}

package fraud

import (
	"context"
	"time"

	"refnet/internal/domain"
	"refnet/pkg/errors"
)

// DashboardStats returns the operator rollups: four independent counts,
// not a consistent snapshot. Counts backed by unprovisioned tables report
// zero.
func (s *Service) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{}

	flagged, err := s.users.CountFlagged(ctx)
	if err != nil {
		return nil, err
	}
	stats.FlaggedUsers = flagged

	highRisk, err := s.users.CountHighRisk(ctx, highRiskThreshold)
	if err != nil {
		return nil, err
	}
	stats.HighRiskUsers = highRisk

	if s.caps.FraudAlerts {
		recent, err := s.alerts.CountCreatedSince(ctx, time.Now().Add(-24*time.Hour))
		if err != nil && !errors.Is(err, errors.ErrSchemaNotProvisioned) {
			return nil, err
		}
		stats.RecentAlerts = recent

		pending, err := s.alerts.CountByStatus(ctx, domain.AlertStatusPending)
		if err != nil && !errors.Is(err, errors.ErrSchemaNotProvisioned) {
			return nil, err
		}
		stats.PendingAlerts = pending
	}

	return stats, nil
}

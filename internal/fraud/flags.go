package fraud

import (
	"context"

	"github.com/google/uuid"
)

// FlagUser locks the account pending manual review. Unlike the background
// scoring path, flagging is an explicit administrative action and errors
// propagate to the caller.
func (s *Service) FlagUser(ctx context.Context, userID uuid.UUID, reason, reviewedBy string) error {
	if reviewedBy == "" {
		reviewedBy = SystemReviewer
	}
	if err := s.flags.Flag(ctx, userID, reason, reviewedBy); err != nil {
		return err
	}
	s.logger.Info("user flagged", map[string]interface{}{
		"user_id":     userID.String(),
		"reason":      reason,
		"reviewed_by": reviewedBy,
	})
	return nil
}

// UnflagUser clears the review lock and resolves the user's pending
// alerts in one atomic transition.
func (s *Service) UnflagUser(ctx context.Context, userID uuid.UUID, reviewerID string, notes *string) error {
	if err := s.flags.Unflag(ctx, userID, reviewerID, notes); err != nil {
		return err
	}
	s.logger.Info("user unflagged", map[string]interface{}{
		"user_id":     userID.String(),
		"reviewed_by": reviewerID,
	})
	return nil
}

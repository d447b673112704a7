package fraud

import (
	"context"
	"testing"

	"refnet/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestFlagUser(t *testing.T) {
	svc, m := newTestService(allCapabilities(), PolicyAllOrNothing)
	userID := uuid.New()

	m.flags.On("Flag", mock.Anything, userID, "chargeback ring", "admin-1").Return(nil)

	err := svc.FlagUser(context.Background(), userID, "chargeback ring", "admin-1")
	assert.NoError(t, err)
	m.flags.AssertExpectations(t)
}

func TestFlagUserDefaultsReviewerToSystem(t *testing.T) {
	svc, m := newTestService(allCapabilities(), PolicyAllOrNothing)
	userID := uuid.New()

	m.flags.On("Flag", mock.Anything, userID, "suspicious", SystemReviewer).Return(nil)

	err := svc.FlagUser(context.Background(), userID, "suspicious", "")
	assert.NoError(t, err)
	m.flags.AssertExpectations(t)
}

func TestFlagUserPropagatesNotFound(t *testing.T) {
	svc, m := newTestService(allCapabilities(), PolicyAllOrNothing)
	userID := uuid.New()

	m.flags.On("Flag", mock.Anything, userID, "reason", "admin-1").Return(errors.ErrUserNotFound)

	err := svc.FlagUser(context.Background(), userID, "reason", "admin-1")
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestUnflagUser(t *testing.T) {
	svc, m := newTestService(allCapabilities(), PolicyAllOrNothing)
	userID := uuid.New()
	notes := "cleared after manual review"

	m.flags.On("Unflag", mock.Anything, userID, "admin-2", &notes).Return(nil)

	err := svc.UnflagUser(context.Background(), userID, "admin-2", &notes)
	assert.NoError(t, err)
	m.flags.AssertExpectations(t)
}

func TestUnflagUserPropagatesError(t *testing.T) {
	svc, m := newTestService(allCapabilities(), PolicyAllOrNothing)
	userID := uuid.New()

	m.flags.On("Unflag", mock.Anything, userID, "admin-2", (*string)(nil)).Return(assert.AnError)

	err := svc.UnflagUser(context.Background(), userID, "admin-2", nil)
	assert.Error(t, err)
}

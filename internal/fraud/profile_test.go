package fraud

import (
	"context"
	"testing"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestUserProfile(t *testing.T) {
	svc, m := newTestService(allCapabilities(), PolicyAllOrNothing)
	userID := uuid.New()
	user := &domain.User{ID: userID, Username: "alice", RiskScore: 30}
	devices := []domain.DeviceFingerprint{{ID: uuid.New(), UserID: userID, Browser: "Chrome"}}
	txs := []domain.Transaction{{ID: uuid.New(), UserID: userID, TransactionType: domain.TransactionTypeCommission}}

	m.users.On("FindByID", mock.Anything, userID).Return(user, nil)
	m.devices.On("FindByUser", mock.Anything, userID).Return(devices, nil)
	m.txs.On("FindRecentByUser", mock.Anything, userID, profileTransactionLimit).Return(txs, nil)

	profile, err := svc.UserProfile(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, user, profile.User)
	assert.Equal(t, devices, profile.Devices)
	assert.Equal(t, txs, profile.RecentTransactions)
}

func TestUserProfileWithMinimalSchema(t *testing.T) {
	caps := allCapabilities()
	caps.DeviceTracking = false
	caps.Transactions = false
	svc, m := newTestService(caps, PolicyAllOrNothing)
	userID := uuid.New()
	user := &domain.User{ID: userID, Username: "bob"}

	m.users.On("FindByID", mock.Anything, userID).Return(user, nil)

	profile, err := svc.UserProfile(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, user, profile.User)
	assert.Empty(t, profile.Devices)
	assert.Empty(t, profile.RecentTransactions)

	m.devices.AssertNotCalled(t, "FindByUser", mock.Anything, mock.Anything)
	m.txs.AssertNotCalled(t, "FindRecentByUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserProfileUnknownUser(t *testing.T) {
	svc, m := newTestService(allCapabilities(), PolicyAllOrNothing)
	userID := uuid.New()

	m.users.On("FindByID", mock.Anything, userID).Return(nil, errors.ErrUserNotFound)

	_, err := svc.UserProfile(context.Background(), userID)
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestRulesListing(t *testing.T) {
	svc, m := newTestService(allCapabilities(), PolicyAllOrNothing)
	rules := []domain.FraudRule{{ID: uuid.New(), RuleType: domain.RuleMultiAccountIP, Weight: 30}}

	m.rules.On("FindAll", mock.Anything).Return(rules, nil)

	got, err := svc.Rules(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, rules, got)
}

func TestRulesEmptyWithoutRuleTable(t *testing.T) {
	caps := allCapabilities()
	caps.FraudRules = false
	svc, m := newTestService(caps, PolicyAllOrNothing)

	got, err := svc.Rules(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, got)

	m.rules.AssertNotCalled(t, "FindAll", mock.Anything)
}

func TestRulesToleratesUnprovisionedTable(t *testing.T) {
	svc, m := newTestService(allCapabilities(), PolicyAllOrNothing)

	m.rules.On("FindAll", mock.Anything).Return(nil, errors.ErrSchemaNotProvisioned)

	got, err := svc.Rules(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, got)
}

package fraud

import (
	"context"
	"time"

	"refnet/internal/domain"
	"refnet/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mocks

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) UpdateRiskScore(ctx context.Context, id uuid.UUID, score int) error {
	args := m.Called(ctx, id, score)
	return args.Error(0)
}

func (m *MockUserRepository) FlagState(ctx context.Context, id uuid.UUID) (bool, *string, error) {
	args := m.Called(ctx, id)
	var reason *string
	if args.Get(1) != nil {
		reason = args.Get(1).(*string)
	}
	return args.Bool(0), reason, args.Error(2)
}

func (m *MockUserRepository) CountFlagged(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) CountHighRisk(ctx context.Context, minScore int) (int, error) {
	args := m.Called(ctx, minScore)
	return args.Int(0), args.Error(1)
}

type MockDeviceRepository struct {
	mock.Mock
}

func (m *MockDeviceRepository) Upsert(ctx context.Context, fp *domain.DeviceFingerprint) error {
	args := m.Called(ctx, fp)
	return args.Error(0)
}

func (m *MockDeviceRepository) CountDistinctUsersSharing(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockDeviceRepository) FindUsersSharing(ctx context.Context, userID uuid.UUID) ([]domain.RelatedAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RelatedAccount), args.Error(1)
}

func (m *MockDeviceRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.DeviceFingerprint, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DeviceFingerprint), args.Error(1)
}

type MockIPRepository struct {
	mock.Mock
}

func (m *MockIPRepository) Upsert(ctx context.Context, ip *domain.IPAddress) error {
	args := m.Called(ctx, ip)
	return args.Error(0)
}

func (m *MockIPRepository) CountDistinctUsersSharing(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockIPRepository) CountRecentRegistrationsSharing(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockIPRepository) FindUsersSharing(ctx context.Context, userID uuid.UUID) ([]domain.RelatedAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RelatedAccount), args.Error(1)
}

type MockRuleRepository struct {
	mock.Mock
}

func (m *MockRuleRepository) FindActiveByType(ctx context.Context, ruleType domain.RuleType) (*domain.FraudRule, error) {
	args := m.Called(ctx, ruleType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FraudRule), args.Error(1)
}

func (m *MockRuleRepository) FindAll(ctx context.Context) ([]domain.FraudRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FraudRule), args.Error(1)
}

type MockAlertRepository struct {
	mock.Mock
}

func (m *MockAlertRepository) Create(ctx context.Context, alert *domain.FraudAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockAlertRepository) FindAll(ctx context.Context, status domain.AlertStatus, limit, offset int) ([]domain.FraudAlert, int, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.FraudAlert), args.Int(1), args.Error(2)
}

func (m *MockAlertRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

func (m *MockAlertRepository) CountByStatus(ctx context.Context, status domain.AlertStatus) (int, error) {
	args := m.Called(ctx, status)
	return args.Int(0), args.Error(1)
}

type MockLoginHistoryRepository struct {
	mock.Mock
}

func (m *MockLoginHistoryRepository) Create(ctx context.Context, entry *domain.LoginHistory) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLoginHistoryRepository) CountFailedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CountByTypeSince(ctx context.Context, userID uuid.UUID, txType domain.TransactionType, since time.Time) (int, error) {
	args := m.Called(ctx, userID, txType, since)
	return args.Int(0), args.Error(1)
}

func (m *MockTransactionRepository) FindRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

type MockFlagStore struct {
	mock.Mock
}

func (m *MockFlagStore) Flag(ctx context.Context, userID uuid.UUID, reason, reviewedBy string) error {
	args := m.Called(ctx, userID, reason, reviewedBy)
	return args.Error(0)
}

func (m *MockFlagStore) Unflag(ctx context.Context, userID uuid.UUID, reviewerID string, notes *string) error {
	args := m.Called(ctx, userID, reviewerID, notes)
	return args.Error(0)
}

type MockSecurityEventLister struct {
	mock.Mock
}

func (m *MockSecurityEventLister) FindAll(ctx context.Context, limit, offset int) ([]domain.SecurityEvent, int, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.SecurityEvent), args.Int(1), args.Error(2)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(to, subject, body string) error {
	args := m.Called(to, subject, body)
	return args.Error(0)
}

// Test fixture

type testMocks struct {
	users   *MockUserRepository
	devices *MockDeviceRepository
	ips     *MockIPRepository
	rules   *MockRuleRepository
	alerts  *MockAlertRepository
	logins  *MockLoginHistoryRepository
	txs     *MockTransactionRepository
	flags   *MockFlagStore
	events  *MockSecurityEventLister
}

func testFraudConfig() config.FraudConfig {
	return config.FraudConfig{
		AutoFlagThreshold: 75,
		FailedLoginWindow: 30 * time.Minute,
		RapidRegWindow:    24 * time.Hour,
		TransactionWindow: time.Hour,
	}
}

func allCapabilities() Capabilities {
	return Capabilities{
		DeviceTracking: true,
		LoginHistory:   true,
		FraudRules:     true,
		FraudAlerts:    true,
		Transactions:   true,
		SecurityEvents: true,
	}
}

func newTestService(caps Capabilities, policy ScoringPolicy) (*Service, *testMocks) {
	m := &testMocks{
		users:   new(MockUserRepository),
		devices: new(MockDeviceRepository),
		ips:     new(MockIPRepository),
		rules:   new(MockRuleRepository),
		alerts:  new(MockAlertRepository),
		logins:  new(MockLoginHistoryRepository),
		txs:     new(MockTransactionRepository),
		flags:   new(MockFlagStore),
		events:  new(MockSecurityEventLister),
	}
	svc := NewService(ServiceParams{
		Users:   m.users,
		Devices: m.devices,
		IPs:     m.ips,
		Rules:   m.rules,
		Alerts:  m.alerts,
		Logins:  m.logins,
		Txs:     m.txs,
		Flags:   m.flags,
		Events:  m.events,
		Caps:    caps,
		Policy:  policy,
		Config:  testFraudConfig(),
	})
	return svc, m
}

// noActiveRules makes every rule lookup fall back to defaults.
func (m *testMocks) noActiveRules() {
	m.rules.On("FindActiveByType", mock.Anything, mock.Anything).Return(nil, nil)
}

// quietCounts sets every factor count to zero.
func (m *testMocks) quietCounts() {
	m.ips.On("CountDistinctUsersSharing", mock.Anything, mock.Anything).Return(0, nil)
	m.devices.On("CountDistinctUsersSharing", mock.Anything, mock.Anything).Return(0, nil)
	m.logins.On("CountFailedSince", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	m.ips.On("CountRecentRegistrationsSharing", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	m.txs.On("CountByTypeSince", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
}

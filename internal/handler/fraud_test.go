package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"refnet/internal/domain"
	"refnet/internal/fraud"
	"refnet/pkg/config"
	"refnet/pkg/logger"
	"refnet/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
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

// Fixture

type handlerMocks struct {
	users  *MockUserRepository
	flags  *MockFlagStore
	alerts *MockAlertRepository
}

func newTestHandler() (*FraudHandler, *handlerMocks) {
	m := &handlerMocks{
		users:  new(MockUserRepository),
		flags:  new(MockFlagStore),
		alerts: new(MockAlertRepository),
	}
	svc := fraud.NewService(fraud.ServiceParams{
		Users:  m.users,
		Flags:  m.flags,
		Alerts: m.alerts,
		Config: config.FraudConfig{AutoFlagThreshold: 75},
		Logger: logger.NewNop(),
	})
	h := NewFraudHandler(svc, validator.New(), nil, config.FraudConfig{}, logger.NewNop())
	return h, m
}

func testRouter(h *FraudHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/internal/v1/events/login-success", h.LoginSuccess).Methods("POST")
	r.HandleFunc("/internal/v1/events/login-failure", h.LoginFailure).Methods("POST")
	r.HandleFunc("/api/v1/fraud/dashboard", h.Dashboard).Methods("GET")
	r.HandleFunc("/api/v1/fraud/alerts", h.Alerts).Methods("GET")
	r.HandleFunc("/api/v1/fraud/users/{id}/flag", h.Flag).Methods("POST")
	r.HandleFunc("/api/v1/fraud/users/{id}/unflag", h.Unflag).Methods("POST")
	return r
}

func doJSON(r *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// Tests

func TestLoginSuccessAccepted(t *testing.T) {
	h, m := newTestHandler()
	userID := uuid.New()

	// The background scoring task persists a zero score; nothing else is
	// provisioned in this fixture.
	m.users.On("UpdateRiskScore", mock.Anything, userID, 0).Return(nil).Maybe()

	rec := doJSON(testRouter(h), http.MethodPost, "/internal/v1/events/login-success", map[string]string{
		"user_id":    userID.String(),
		"ip_address": "203.0.113.7",
		"user_agent": "Mozilla/5.0",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	time.Sleep(50 * time.Millisecond)
}

func TestLoginSuccessRejectsMissingFields(t *testing.T) {
	h, _ := newTestHandler()

	rec := doJSON(testRouter(h), http.MethodPost, "/internal/v1/events/login-success", map[string]string{
		"user_id": uuid.NewString(),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginSuccessRejectsInvalidJSON(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/internal/v1/events/login-success", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginFailureAccepted(t *testing.T) {
	h, m := newTestHandler()

	m.users.On("FindByEmail", mock.Anything, "mallory@example.com").Return(nil, assert.AnError).Maybe()

	rec := doJSON(testRouter(h), http.MethodPost, "/internal/v1/events/login-failure", map[string]string{
		"email":      "mallory@example.com",
		"ip_address": "203.0.113.7",
		"reason":     "bad password",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	time.Sleep(50 * time.Millisecond)
}

func TestFlagUserAsSystemWithoutIdentity(t *testing.T) {
	h, m := newTestHandler()
	userID := uuid.New()

	m.flags.On("Flag", mock.Anything, userID, "manual review", fraud.SystemReviewer).Return(nil)

	rec := doJSON(testRouter(h), http.MethodPost, "/api/v1/fraud/users/"+userID.String()+"/flag", map[string]string{
		"reason": "manual review",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	m.flags.AssertExpectations(t)
}

func TestFlagUserRejectsInvalidID(t *testing.T) {
	h, _ := newTestHandler()

	rec := doJSON(testRouter(h), http.MethodPost, "/api/v1/fraud/users/not-a-uuid/flag", map[string]string{
		"reason": "manual review",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlagUserRequiresReason(t *testing.T) {
	h, m := newTestHandler()
	userID := uuid.New()

	rec := doJSON(testRouter(h), http.MethodPost, "/api/v1/fraud/users/"+userID.String()+"/flag", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m.flags.AssertNotCalled(t, "Flag", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUnflagUserWithoutBody(t *testing.T) {
	h, m := newTestHandler()
	userID := uuid.New()

	m.flags.On("Unflag", mock.Anything, userID, fraud.SystemReviewer, (*string)(nil)).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/fraud/users/"+userID.String()+"/unflag", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	m.flags.AssertExpectations(t)
}

func TestAlertsRejectsBadStatusFilter(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fraud/alerts?status=bogus", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertsListsWithFilter(t *testing.T) {
	h, m := newTestHandler()

	m.alerts.On("FindAll", mock.Anything, domain.AlertStatusPending, 50, 0).Return([]domain.FraudAlert{}, 0, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fraud/alerts?status=pending", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	m.alerts.AssertExpectations(t)
}

func TestDashboardStats(t *testing.T) {
	h, m := newTestHandler()

	m.users.On("CountFlagged", mock.Anything).Return(3, nil)
	m.users.On("CountHighRisk", mock.Anything, mock.Anything).Return(5, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fraud/dashboard", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var stats domain.DashboardStats
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.FlaggedUsers)
	assert.Equal(t, 5, stats.HighRiskUsers)
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"?limit=20&offset=40", 20, 40},
		{"?limit=0", 50, 0},
		{"?limit=9999", 50, 0},
		{"?offset=-5", 50, 0},
		{"?limit=abc&offset=xyz", 50, 0},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/fraud/alerts"+tc.query, nil)
		limit, offset := parsePagination(req)
		assert.Equal(t, tc.wantLimit, limit, "query %q", tc.query)
		assert.Equal(t, tc.wantOffset, offset, "query %q", tc.query)
	}
}

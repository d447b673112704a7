// Package fraud implements the fraud-detection and risk-scoring engine:
// identity recording, weighted multi-factor scoring, alerting, account
// flags, related-account discovery, and operator rollups.
//
// Everything triggered from the login path is fire-and-forget: the caller
// is never delayed by, and never fails because of, fraud work.
package fraud

import (
	"context"
	"time"

	"refnet/internal/domain"
	"refnet/pkg/config"
	"refnet/pkg/errors"
	"refnet/pkg/logger"

	"github.com/google/uuid"
)

// UserRepository exposes the user rows the engine reads and the risk
// columns it owns.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateRiskScore(ctx context.Context, id uuid.UUID, score int) error
	FlagState(ctx context.Context, id uuid.UUID) (bool, *string, error)
	CountFlagged(ctx context.Context) (int, error)
	CountHighRisk(ctx context.Context, minScore int) (int, error)
}

type DeviceRepository interface {
	Upsert(ctx context.Context, fp *domain.DeviceFingerprint) error
	CountDistinctUsersSharing(ctx context.Context, userID uuid.UUID) (int, error)
	FindUsersSharing(ctx context.Context, userID uuid.UUID) ([]domain.RelatedAccount, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.DeviceFingerprint, error)
}

type IPRepository interface {
	Upsert(ctx context.Context, ip *domain.IPAddress) error
	CountDistinctUsersSharing(ctx context.Context, userID uuid.UUID) (int, error)
	CountRecentRegistrationsSharing(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	FindUsersSharing(ctx context.Context, userID uuid.UUID) ([]domain.RelatedAccount, error)
}

type RuleRepository interface {
	FindActiveByType(ctx context.Context, ruleType domain.RuleType) (*domain.FraudRule, error)
	FindAll(ctx context.Context) ([]domain.FraudRule, error)
}

type AlertRepository interface {
	Create(ctx context.Context, alert *domain.FraudAlert) error
	FindAll(ctx context.Context, status domain.AlertStatus, limit, offset int) ([]domain.FraudAlert, int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	CountByStatus(ctx context.Context, status domain.AlertStatus) (int, error)
}

type LoginHistoryRepository interface {
	Create(ctx context.Context, entry *domain.LoginHistory) error
	CountFailedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

type TransactionRepository interface {
	CountByTypeSince(ctx context.Context, userID uuid.UUID, txType domain.TransactionType, since time.Time) (int, error)
	FindRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error)
}

// FlagStore performs the atomic flag/unflag transitions.
type FlagStore interface {
	Flag(ctx context.Context, userID uuid.UUID, reason, reviewedBy string) error
	Unflag(ctx context.Context, userID uuid.UUID, reviewerID string, notes *string) error
}

type SecurityEventLister interface {
	FindAll(ctx context.Context, limit, offset int) ([]domain.SecurityEvent, int, error)
}

// Notifier delivers best-effort operator notifications.
type Notifier interface {
	Send(to, subject, body string) error
}

// Capabilities records which fraud tables this deployment has migrated.
// Built explicitly at startup; refresh by rebuilding the Service's copy
// after running migrations.
type Capabilities struct {
	DeviceTracking bool
	LoginHistory   bool
	FraudRules     bool
	FraudAlerts    bool
	Transactions   bool
	SecurityEvents bool
}

// ScoringPolicy names how a scoring run treats a failing factor query.
type ScoringPolicy string

const (
	// PolicyAllOrNothing aborts the whole run on the first factor error.
	PolicyAllOrNothing ScoringPolicy = "all_or_nothing"
	// PolicyBestEffortPerFactor skips failing factors and scores the rest.
	PolicyBestEffortPerFactor ScoringPolicy = "best_effort_per_factor"
)

// Service is the fraud engine facade used by handlers and middleware.
type Service struct {
	users    UserRepository
	devices  DeviceRepository
	ips      IPRepository
	rules    RuleRepository
	alerts   AlertRepository
	logins   LoginHistoryRepository
	txs      TransactionRepository
	flags    FlagStore
	events   SecurityEventLister
	notifier Notifier

	caps   Capabilities
	policy ScoringPolicy
	cfg    config.FraudConfig
	logger logger.Logger
}

type ServiceParams struct {
	Users    UserRepository
	Devices  DeviceRepository
	IPs      IPRepository
	Rules    RuleRepository
	Alerts   AlertRepository
	Logins   LoginHistoryRepository
	Txs      TransactionRepository
	Flags    FlagStore
	Events   SecurityEventLister
	Notifier Notifier

	Caps   Capabilities
	Policy ScoringPolicy
	Config config.FraudConfig
	Logger logger.Logger
}

func NewService(p ServiceParams) *Service {
	policy := p.Policy
	if policy == "" {
		policy = PolicyAllOrNothing
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		users:    p.Users,
		devices:  p.Devices,
		ips:      p.IPs,
		rules:    p.Rules,
		alerts:   p.Alerts,
		logins:   p.Logins,
		txs:      p.Txs,
		flags:    p.Flags,
		events:   p.Events,
		notifier: p.Notifier,
		caps:     p.Caps,
		policy:   policy,
		cfg:      p.Config,
		logger:   log,
	}
}

// OnLoginSuccess is the post-authentication entry point. It dispatches
// identity recording and risk scoring as independent background tasks and
// returns immediately.
func (s *Service) OnLoginSuccess(userID uuid.UUID, ipAddress, userAgent string) {
	go s.runBackground("record_identity", userID, func(ctx context.Context) error {
		return s.recordIdentity(ctx, userID, ipAddress, userAgent)
	})
	go s.runBackground("risk_scoring", userID, func(ctx context.Context) error {
		_, err := s.CalculateRiskScore(ctx, userID)
		return err
	})
}

// OnLoginFailure records a failed attempt when the email resolves to a
// known user, and silently no-ops otherwise. Fire-and-forget.
func (s *Service) OnLoginFailure(email, ipAddress, userAgent, reason string) {
	go s.runBackground("record_failed_login", uuid.Nil, func(ctx context.Context) error {
		user, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, errors.ErrUserNotFound) {
				return nil
			}
			return err
		}
		return s.recordLoginAttempt(ctx, user.ID, ipAddress, userAgent, false, &reason)
	})
}

// IsBlocked is the synchronous request-path gate. It fails open: a store
// error allows the request rather than turning a fraud-subsystem outage
// into a platform-wide lockout.
func (s *Service) IsBlocked(ctx context.Context, userID uuid.UUID) (bool, string) {
	flagged, reason, err := s.users.FlagState(ctx, userID)
	if err != nil {
		if !errors.Is(err, errors.ErrUserNotFound) {
			s.logger.Warn("flag state lookup failed, failing open", map[string]interface{}{
				"user_id": userID.String(),
				"error":   err.Error(),
			})
		}
		return false, ""
	}
	if !flagged {
		return false, ""
	}
	if reason != nil {
		return true, *reason
	}
	return true, ""
}

// SecurityEvents lists the audit trail for operators.
func (s *Service) SecurityEvents(ctx context.Context, limit, offset int) ([]domain.SecurityEvent, int, error) {
	return s.events.FindAll(ctx, limit, offset)
}

// Alerts lists fraud alerts, optionally filtered by status.
func (s *Service) Alerts(ctx context.Context, status domain.AlertStatus, limit, offset int) ([]domain.FraudAlert, int, error) {
	return s.alerts.FindAll(ctx, status, limit, offset)
}

// runBackground executes one fire-and-forget task. Every error is logged
// and swallowed: fraud detection is a best-effort enhancement and must
// never surface a failure to the login path.
func (s *Service) runBackground(task string, userID uuid.UUID, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("background fraud task panicked", map[string]interface{}{
				"task":  task,
				"panic": r,
			})
		}
	}()

	ctx := context.Background()
	if err := fn(ctx); err != nil {
		if errors.Is(err, errors.ErrSchemaNotProvisioned) {
			return
		}
		fields := map[string]interface{}{
			"task":  task,
			"error": err.Error(),
		}
		if userID != uuid.Nil {
			fields["user_id"] = userID.String()
		}
		s.logger.Warn("background fraud task failed", fields)
	}
}

// recordIdentity persists the device fingerprint, IP observation, and the
// successful login audit row.
func (s *Service) recordIdentity(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) error {
	if s.caps.DeviceTracking {
		if _, err := s.RecordDevice(ctx, userID, userAgent, ipAddress); err != nil {
			return err
		}
		if err := s.RecordIP(ctx, userID, ipAddress); err != nil {
			return err
		}
	}
	return s.recordLoginAttempt(ctx, userID, ipAddress, userAgent, true, nil)
}

func (s *Service) recordLoginAttempt(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string, success bool, failureReason *string) error {
	if !s.caps.LoginHistory {
		return nil
	}
	info := ParseUserAgent(userAgent)
	entry := &domain.LoginHistory{
		ID:            uuid.New(),
		UserID:        userID,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		DeviceInfo:    info.String(),
		LoginMethod:   "password",
		Success:       success,
		FailureReason: failureReason,
		CreatedAt:     time.Now(),
	}
	err := s.logins.Create(ctx, entry)
	if errors.Is(err, errors.ErrSchemaNotProvisioned) {
		return nil
	}
	return err
}

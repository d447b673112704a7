// Package domain defines the data model shared by the fraud subsystem.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Metadata holds arbitrary structured JSON stored in a JSONB column.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}

// User represents a platform user. The fraud subsystem owns the risk and
// flag columns; everything else belongs to the account service.
type User struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	Username      string     `json:"username" db:"username"`
	ReferrerID    *uuid.UUID `json:"referrer_id,omitempty" db:"referrer_id"`
	UserType      UserType   `json:"user_type" db:"user_type"`
	RiskScore     int        `json:"risk_score" db:"risk_score"`
	IsFlagged     bool       `json:"is_flagged" db:"is_flagged"`
	FlaggedReason *string    `json:"flagged_reason,omitempty" db:"flagged_reason"`
	FlaggedAt     *time.Time `json:"flagged_at,omitempty" db:"flagged_at"`
	ReviewedBy    *string    `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

type UserType string

const (
	UserTypeMember UserType = "member"
	UserTypeAdmin  UserType = "admin"
)

// DeviceFingerprint correlates logins sharing the same browser signals.
// The hash is a correlation key, not a unique-device guarantee.
type DeviceFingerprint struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	FingerprintHash string    `json:"fingerprint_hash" db:"fingerprint_hash"`
	Browser         string    `json:"browser" db:"browser"`
	OS              string    `json:"os" db:"os"`
	DeviceType      string    `json:"device_type" db:"device_type"`
	UserAgent       string    `json:"user_agent" db:"user_agent"`
	FirstSeenAt     time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt      time.Time `json:"last_seen_at" db:"last_seen_at"`
	LoginCount      int       `json:"login_count" db:"login_count"`
}

// IPAddress records every address a user has logged in from.
type IPAddress struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	IPAddress   string    `json:"ip_address" db:"ip_address"`
	FirstSeenAt time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at" db:"last_seen_at"`
	LoginCount  int       `json:"login_count" db:"login_count"`
}

// RuleType identifies a fraud factor.
type RuleType string

const (
	RuleMultiAccountIP        RuleType = "multi_account_ip"
	RuleMultiAccountDevice    RuleType = "multi_account_device"
	RuleFailedLoginThreshold  RuleType = "failed_login_threshold"
	RuleRapidRegistration     RuleType = "rapid_registration"
	RuleSuspiciousTransaction RuleType = "suspicious_transaction"
)

// FraudRule configures the threshold and score weight for one factor.
// Absence of an active rule falls back to hardcoded defaults so the engine
// is never silently disabled by missing configuration.
type FraudRule struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RuleType  RuleType  `json:"rule_type" db:"rule_type"`
	Threshold Metadata  `json:"threshold" db:"threshold"`
	Weight    int       `json:"weight" db:"weight"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Limit reads the integer threshold out of the JSONB payload, returning
// fallback when absent or malformed. Rules use per-type keys
// (max_accounts, max_attempts, max_transactions) or the generic "limit".
func (r *FraudRule) Limit(fallback int) int {
	if r == nil || r.Threshold == nil {
		return fallback
	}
	for _, key := range []string{"max_accounts", "max_attempts", "max_transactions", "limit"} {
		if v, ok := r.Threshold[key]; ok {
			switch n := v.(type) {
			case float64:
				return int(n)
			case int:
				return n
			}
		}
	}
	return fallback
}

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

type AlertStatus string

const (
	AlertStatusPending  AlertStatus = "pending"
	AlertStatusResolved AlertStatus = "resolved"
)

// FraudAlert is an append-only record of one detected factor occurrence.
type FraudAlert struct {
	ID                    uuid.UUID     `json:"id" db:"id"`
	UserID                uuid.UUID     `json:"user_id" db:"user_id"`
	RuleType              RuleType      `json:"rule_type" db:"rule_type"`
	Severity              AlertSeverity `json:"severity" db:"severity"`
	Description           string        `json:"description" db:"description"`
	Evidence              Metadata      `json:"evidence" db:"evidence"`
	RiskScoreContribution int           `json:"risk_score_contribution" db:"risk_score_contribution"`
	Status                AlertStatus   `json:"status" db:"status"`
	CreatedAt             time.Time     `json:"created_at" db:"created_at"`
	ResolvedAt            *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolutionNotes       *string       `json:"resolution_notes,omitempty" db:"resolution_notes"`
}

// LoginHistory is the append-only login audit log. The table may be absent
// in a not-yet-provisioned deployment; callers must tolerate that.
type LoginHistory struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	IPAddress     string    `json:"ip_address" db:"ip_address"`
	UserAgent     string    `json:"user_agent" db:"user_agent"`
	DeviceInfo    string    `json:"device_info" db:"device_info"`
	LoginMethod   string    `json:"login_method" db:"login_method"`
	Success       bool      `json:"success" db:"success"`
	FailureReason *string   `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// SecurityEvent is the audit trail for flag/unflag and related actions.
type SecurityEvent struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	EventType   string    `json:"event_type" db:"event_type"`
	Severity    string    `json:"severity" db:"severity"`
	Description string    `json:"description" db:"description"`
	Metadata    Metadata  `json:"metadata" db:"metadata"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

const (
	EventAccountLocked   = "account_locked"
	EventAccountUnlocked = "account_unlocked"
)

// TransactionType categorizes ledger transactions. The risk engine only
// counts commission rows; the full set belongs to the ledger service.
type TransactionType string

const (
	TransactionTypeCommission TransactionType = "commission"
	TransactionTypePayout     TransactionType = "payout"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

// Transaction is the ledger row read by the transaction-burst factor.
type Transaction struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	TransactionType TransactionType `json:"transaction_type" db:"transaction_type"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Currency        string          `json:"currency" db:"currency"`
	Description     string          `json:"description" db:"description"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// RiskLevel is the band derived from the numeric score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Evidence explains why one factor contributed to a risk score.
type Evidence struct {
	Type     RuleType      `json:"type"`
	Severity AlertSeverity `json:"severity"`
	Detail   string        `json:"detail"`
}

// RiskAssessment is the result of one scoring run.
type RiskAssessment struct {
	UserID    uuid.UUID  `json:"user_id"`
	RiskScore int        `json:"risk_score"`
	Level     RiskLevel  `json:"level"`
	Evidence  []Evidence `json:"evidence"`
}

type Relationship string

const (
	RelationshipSharedIP     Relationship = "shared_ip"
	RelationshipSharedDevice Relationship = "shared_device"
)

// RelatedAccount is another user sharing an IP or device with the subject.
type RelatedAccount struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Username     string       `json:"username" db:"username"`
	Email        string       `json:"email" db:"email"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	Relationship Relationship `json:"relationship" db:"relationship"`
	Confidence   int          `json:"confidence" db:"confidence"`
}

// DashboardStats are operator-facing rollups. The four counts are
// independent queries, not a consistent snapshot.
type DashboardStats struct {
	FlaggedUsers  int `json:"flagged_users"`
	HighRiskUsers int `json:"high_risk_users"`
	RecentAlerts  int `json:"recent_alerts"`
	PendingAlerts int `json:"pending_alerts"`
}

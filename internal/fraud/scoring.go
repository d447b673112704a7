package fraud

import (
	"context"
	"fmt"
	"time"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/google/uuid"
)

const (
	// AutoFlagReason is written when the engine locks an account itself.
	AutoFlagReason = "Automatic flag: High risk score detected"
	// SystemReviewer is the reviewer identity on automatic flags.
	SystemReviewer = "system"

	maxRiskScore      = 100
	highRiskThreshold = 51
)

// factorResult is one fired factor: its evidence and score contribution.
type factorResult struct {
	ruleType domain.RuleType
	severity domain.AlertSeverity
	detail   string
	weight   int
	evidence domain.Metadata
}

// CalculateRiskScore evaluates the five fraud factors against the rule
// store, combines fired factors into a score clamped to [0,100], persists
// the score, and auto-flags at or above the configured threshold.
//
// The failure policy is the service's ScoringPolicy: AllOrNothing aborts
// the run on the first factor error, BestEffortPerFactor skips failed
// factors. A factor whose backing table is not provisioned is skipped
// under either policy.
func (s *Service) CalculateRiskScore(ctx context.Context, userID uuid.UUID) (*domain.RiskAssessment, error) {
	factors := []func(context.Context, uuid.UUID) (*factorResult, error){
		s.factorMultiAccountIP,
		s.factorMultiAccountDevice,
		s.factorFailedLogins,
		s.factorRapidRegistration,
		s.factorTransactionBurst,
	}

	total := 0
	evidence := []domain.Evidence{}
	for _, factor := range factors {
		res, err := factor(ctx, userID)
		if err != nil {
			if errors.Is(err, errors.ErrSchemaNotProvisioned) {
				continue
			}
			if s.policy == PolicyBestEffortPerFactor {
				s.logger.Warn("skipping failed risk factor", map[string]interface{}{
					"user_id": userID.String(),
					"error":   err.Error(),
				})
				continue
			}
			return nil, err
		}
		if res == nil {
			continue
		}

		total += res.weight
		evidence = append(evidence, domain.Evidence{
			Type:     res.ruleType,
			Severity: res.severity,
			Detail:   res.detail,
		})
		s.createAlert(ctx, userID, res)
	}

	// Clamp, not scale: the sum of all weights can exceed 100.
	if total > maxRiskScore {
		total = maxRiskScore
	}

	if err := s.users.UpdateRiskScore(ctx, userID, total); err != nil {
		return nil, err
	}

	if total >= s.cfg.AutoFlagThreshold {
		if err := s.flags.Flag(ctx, userID, AutoFlagReason, SystemReviewer); err != nil {
			return nil, err
		}
	}

	return &domain.RiskAssessment{
		UserID:    userID,
		RiskScore: total,
		Level:     RiskLevelForScore(total),
		Evidence:  evidence,
	}, nil
}

// RiskLevelForScore maps a score to its band. The critical lower bound
// (76) sits one point above the auto-flag threshold (75); that gap is
// deliberate, inherited behavior.
func RiskLevelForScore(score int) domain.RiskLevel {
	switch {
	case score >= 76:
		return domain.RiskCritical
	case score >= 51:
		return domain.RiskHigh
	case score >= 21:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func (s *Service) factorMultiAccountIP(ctx context.Context, userID uuid.UUID) (*factorResult, error) {
	if !s.caps.DeviceTracking {
		return nil, nil
	}
	params, err := s.resolveRule(ctx, domain.RuleMultiAccountIP)
	if err != nil {
		return nil, err
	}
	count, err := s.ips.CountDistinctUsersSharing(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count < params.Threshold {
		return nil, nil
	}
	return &factorResult{
		ruleType: domain.RuleMultiAccountIP,
		severity: domain.SeverityHigh,
		detail:   fmt.Sprintf("%d accounts from same IP", count),
		weight:   params.Weight,
		evidence: domain.Metadata{"account_count": count, "threshold": params.Threshold},
	}, nil
}

func (s *Service) factorMultiAccountDevice(ctx context.Context, userID uuid.UUID) (*factorResult, error) {
	if !s.caps.DeviceTracking {
		return nil, nil
	}
	params, err := s.resolveRule(ctx, domain.RuleMultiAccountDevice)
	if err != nil {
		return nil, err
	}
	count, err := s.devices.CountDistinctUsersSharing(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count < params.Threshold {
		return nil, nil
	}
	return &factorResult{
		ruleType: domain.RuleMultiAccountDevice,
		severity: domain.SeverityHigh,
		detail:   fmt.Sprintf("%d accounts from same device", count),
		weight:   params.Weight,
		evidence: domain.Metadata{"account_count": count, "threshold": params.Threshold},
	}, nil
}

func (s *Service) factorFailedLogins(ctx context.Context, userID uuid.UUID) (*factorResult, error) {
	if !s.caps.LoginHistory {
		return nil, nil
	}
	params, err := s.resolveRule(ctx, domain.RuleFailedLoginThreshold)
	if err != nil {
		return nil, err
	}
	since := time.Now().Add(-s.cfg.FailedLoginWindow)
	count, err := s.logins.CountFailedSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	if count < params.Threshold {
		return nil, nil
	}
	return &factorResult{
		ruleType: domain.RuleFailedLoginThreshold,
		severity: domain.SeverityMedium,
		detail:   fmt.Sprintf("%d failed login attempts in last 30 minutes", count),
		weight:   params.Weight,
		evidence: domain.Metadata{"attempt_count": count, "threshold": params.Threshold},
	}, nil
}

func (s *Service) factorRapidRegistration(ctx context.Context, userID uuid.UUID) (*factorResult, error) {
	if !s.caps.DeviceTracking {
		return nil, nil
	}
	params, err := s.resolveRule(ctx, domain.RuleRapidRegistration)
	if err != nil {
		return nil, err
	}
	since := time.Now().Add(-s.cfg.RapidRegWindow)
	count, err := s.ips.CountRecentRegistrationsSharing(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	if count < params.Threshold {
		return nil, nil
	}
	return &factorResult{
		ruleType: domain.RuleRapidRegistration,
		severity: domain.SeverityHigh,
		detail:   fmt.Sprintf("%d accounts registered from shared IP in last 24 hours", count),
		weight:   params.Weight,
		evidence: domain.Metadata{"registration_count": count, "threshold": params.Threshold},
	}, nil
}

func (s *Service) factorTransactionBurst(ctx context.Context, userID uuid.UUID) (*factorResult, error) {
	if !s.caps.Transactions {
		return nil, nil
	}
	params, err := s.resolveRule(ctx, domain.RuleSuspiciousTransaction)
	if err != nil {
		return nil, err
	}
	since := time.Now().Add(-s.cfg.TransactionWindow)
	count, err := s.txs.CountByTypeSince(ctx, userID, domain.TransactionTypeCommission, since)
	if err != nil {
		return nil, err
	}
	if count <= params.Threshold {
		return nil, nil
	}
	return &factorResult{
		ruleType: domain.RuleSuspiciousTransaction,
		severity: domain.SeverityMedium,
		detail:   fmt.Sprintf("%d commission transactions in last hour", count),
		weight:   params.Weight,
		evidence: domain.Metadata{"transaction_count": count, "threshold": params.Threshold},
	}, nil
}

// createAlert persists one alert per fired factor. Alert persistence is
// diagnostic, not authoritative: failures are logged and swallowed so they
// never abort a scoring run.
func (s *Service) createAlert(ctx context.Context, userID uuid.UUID, res *factorResult) {
	if !s.caps.FraudAlerts {
		return
	}
	alert := &domain.FraudAlert{
		ID:                    uuid.New(),
		UserID:                userID,
		RuleType:              res.ruleType,
		Severity:              res.severity,
		Description:           res.detail,
		Evidence:              res.evidence,
		RiskScoreContribution: res.weight,
		Status:                domain.AlertStatusPending,
		CreatedAt:             time.Now(),
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		if errors.Is(err, errors.ErrSchemaNotProvisioned) {
			return
		}
		s.logger.Error("failed to persist fraud alert", map[string]interface{}{
			"user_id":   userID.String(),
			"rule_type": string(res.ruleType),
			"error":     err.Error(),
		})
		return
	}
	s.notifyCritical(alert)
}

// notifyCritical emails fraud ops about critical alerts. Best-effort.
func (s *Service) notifyCritical(alert *domain.FraudAlert) {
	if s.notifier == nil || !s.cfg.NotifyCriticalAlerts || s.cfg.OpsEmail == "" {
		return
	}
	if alert.Severity != domain.SeverityCritical && alert.Severity != domain.SeverityHigh {
		return
	}
	subject := fmt.Sprintf("[fraud] %s alert for user %s", alert.Severity, alert.UserID)
	body := fmt.Sprintf("Rule: %s\nDetail: %s\nContribution: %d\nCreated: %s\n",
		alert.RuleType, alert.Description, alert.RiskScoreContribution,
		alert.CreatedAt.Format(time.RFC3339))
	if err := s.notifier.Send(s.cfg.OpsEmail, subject, body); err != nil {
		s.logger.Warn("failed to send alert notification", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

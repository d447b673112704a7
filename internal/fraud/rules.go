package fraud

import (
	"context"

	"refnet/internal/domain"
	"refnet/pkg/errors"
)

// RuleParams are the resolved threshold and score weight for one factor.
type RuleParams struct {
	Threshold int
	Weight    int
}

// defaultRules is the single fallback table. The engine is never silently
// disabled by missing configuration: absence of an active fraud_rules row
// (or of the table itself) falls back to these values.
var defaultRules = map[domain.RuleType]RuleParams{
	domain.RuleMultiAccountIP:        {Threshold: 3, Weight: 30},
	domain.RuleMultiAccountDevice:    {Threshold: 2, Weight: 25},
	domain.RuleFailedLoginThreshold:  {Threshold: 5, Weight: 10},
	domain.RuleRapidRegistration:     {Threshold: 3, Weight: 20},
	domain.RuleSuspiciousTransaction: {Threshold: 10, Weight: 15},
}

// resolveRule returns the active rule's parameters for the given type, or
// the hardcoded defaults when no active rule exists. All five factor
// evaluations consume this uniformly.
func (s *Service) resolveRule(ctx context.Context, ruleType domain.RuleType) (RuleParams, error) {
	def, ok := defaultRules[ruleType]
	if !ok {
		return RuleParams{}, errors.ErrUnknownRuleType
	}
	if !s.caps.FraudRules {
		return def, nil
	}

	rule, err := s.rules.FindActiveByType(ctx, ruleType)
	if err != nil {
		if errors.Is(err, errors.ErrSchemaNotProvisioned) {
			return def, nil
		}
		return RuleParams{}, err
	}
	if rule == nil {
		return def, nil
	}

	params := RuleParams{Threshold: rule.Limit(def.Threshold), Weight: rule.Weight}
	if params.Weight <= 0 {
		params.Weight = def.Weight
	}
	return params, nil
}

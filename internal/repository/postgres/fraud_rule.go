package postgres

import (
	"context"
	"database/sql"

	"refnet/internal/domain"
	"refnet/pkg/errors"

	"github.com/jmoiron/sqlx"
)

type FraudRuleRepository struct {
	db *sqlx.DB
}

func NewFraudRuleRepository(db *sqlx.DB) *FraudRuleRepository {
	return &FraudRuleRepository{db: db}
}

// FindActiveByType returns the active rule for the given type, or nil when
// no active rule is configured (callers fall back to defaults).
func (r *FraudRuleRepository) FindActiveByType(ctx context.Context, ruleType domain.RuleType) (*domain.FraudRule, error) {
	var rule domain.FraudRule
	query := `
		SELECT id, rule_type, threshold, weight, is_active, created_at, updated_at
		FROM fraud_rules
		WHERE rule_type = $1 AND is_active = true
		ORDER BY updated_at DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &rule, query, ruleType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(translateSchemaErr(err), "failed to find fraud rule")
	}
	return &rule, nil
}

// FindAll lists every rule for operator tooling.
func (r *FraudRuleRepository) FindAll(ctx context.Context) ([]domain.FraudRule, error) {
	var rules []domain.FraudRule
	query := `
		SELECT id, rule_type, threshold, weight, is_active, created_at, updated_at
		FROM fraud_rules
		ORDER BY rule_type
	`
	err := r.db.SelectContext(ctx, &rules, query)
	if err != nil {
		return nil, errors.Wrap(translateSchemaErr(err), "failed to list fraud rules")
	}
	return rules, nil
}

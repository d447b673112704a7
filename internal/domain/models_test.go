package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFraudRuleLimit(t *testing.T) {
	tests := []struct {
		name      string
		threshold Metadata
		fallback  int
		want      int
	}{
		{"max_accounts", Metadata{"max_accounts": float64(3)}, 5, 3},
		{"max_attempts", Metadata{"max_attempts": float64(8)}, 5, 8},
		{"max_transactions", Metadata{"max_transactions": float64(10)}, 5, 10},
		{"generic_limit", Metadata{"limit": float64(7)}, 5, 7},
		{"int_value", Metadata{"limit": 7}, 5, 7},
		{"empty_metadata", Metadata{}, 5, 5},
		{"nil_metadata", nil, 5, 5},
		{"non_numeric", Metadata{"limit": "ten"}, 5, 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rule := &FraudRule{Threshold: tc.threshold}
			assert.Equal(t, tc.want, rule.Limit(tc.fallback))
		})
	}
}

func TestFraudRuleLimitNilRule(t *testing.T) {
	var rule *FraudRule
	assert.Equal(t, 4, rule.Limit(4))
}

func TestMetadataRoundTrip(t *testing.T) {
	m := Metadata{"account_count": float64(3), "threshold": float64(3)}

	value, err := m.Value()
	assert.NoError(t, err)

	var scanned Metadata
	assert.NoError(t, scanned.Scan(value.([]byte)))
	assert.Equal(t, m, scanned)
}

func TestMetadataScanRejectsNonBytes(t *testing.T) {
	var m Metadata
	assert.Error(t, m.Scan(42))
}

func TestFraudRuleLimitFromStoredJSON(t *testing.T) {
	// Thresholds arrive from a JSONB column, so numbers decode as float64.
	var m Metadata
	assert.NoError(t, json.Unmarshal([]byte(`{"max_accounts": 3}`), &m))

	rule := &FraudRule{Threshold: m}
	assert.Equal(t, 3, rule.Limit(99))
}

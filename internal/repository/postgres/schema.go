package postgres

import (
	"context"
	"errors"

	refneterrors "refnet/pkg/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// SchemaCapabilities records which fraud tables exist in this deployment.
// It is built once at startup and refreshed on an explicit lifecycle event
// (post-migration), never cached implicitly inside query paths.
type SchemaCapabilities struct {
	HasDeviceTables  bool
	HasLoginHistory  bool
	HasFraudRules    bool
	HasFraudAlerts   bool
	HasTransactions  bool
	HasSecurityEvent bool
}

// SchemaProbe detects table existence via pg_catalog.
type SchemaProbe struct {
	db *sqlx.DB
}

func NewSchemaProbe(db *sqlx.DB) *SchemaProbe {
	return &SchemaProbe{db: db}
}

// Detect probes every fraud table and returns the capability set.
func (p *SchemaProbe) Detect(ctx context.Context) (*SchemaCapabilities, error) {
	caps := &SchemaCapabilities{}

	checks := []struct {
		table string
		dest  *bool
	}{
		{"device_fingerprints", &caps.HasDeviceTables},
		{"login_history", &caps.HasLoginHistory},
		{"fraud_rules", &caps.HasFraudRules},
		{"fraud_alerts", &caps.HasFraudAlerts},
		{"transactions", &caps.HasTransactions},
		{"security_events", &caps.HasSecurityEvent},
	}

	for _, c := range checks {
		exists, err := p.tableExists(ctx, c.table)
		if err != nil {
			return nil, refneterrors.Wrap(err, "failed to probe table "+c.table)
		}
		*c.dest = exists
	}

	// device_fingerprints and ip_addresses migrate together; require both.
	if caps.HasDeviceTables {
		exists, err := p.tableExists(ctx, "ip_addresses")
		if err != nil {
			return nil, refneterrors.Wrap(err, "failed to probe table ip_addresses")
		}
		caps.HasDeviceTables = exists
	}

	return caps, nil
}

func (p *SchemaProbe) tableExists(ctx context.Context, table string) (bool, error) {
	var regclass *string
	err := p.db.GetContext(ctx, &regclass, "SELECT to_regclass($1)::text", table)
	if err != nil {
		return false, err
	}
	return regclass != nil, nil
}

// translateSchemaErr maps Postgres undefined_table errors to the
// ErrSchemaNotProvisioned sentinel so callers can treat missing tables as
// "feature not active".
func translateSchemaErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return refneterrors.ErrSchemaNotProvisioned
	}
	return err
}

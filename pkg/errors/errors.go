// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAlertNotFound      = errors.New("fraud alert not found")
	ErrRuleNotFound       = errors.New("fraud rule not found")
	ErrUnknownRuleType    = errors.New("unknown fraud rule type")
	ErrAccountFlagged     = errors.New("account under review")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSchemaNotProvisioned marks queries against tables that have not
	// been migrated yet. Callers treat it as "feature not active", not a
	// failure.
	ErrSchemaNotProvisioned = errors.New("schema not provisioned")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

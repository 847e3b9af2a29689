package onboarding

import (
	"errors"
	"fmt"
)

// errors
var (
	ErrNilManager         = errors.New("onboarding manager is nil")
	ErrNilLedger          = errors.New("onboarding ledger is nil")
	ErrNilIdentityAdapter = errors.New("identity adapter is nil")
	ErrNilPolicyAdapter   = errors.New("policy adapter is nil")
	ErrNilRegistryAdapter = errors.New("registry adapter is nil")
	ErrNilVault           = errors.New("certificate vault is nil")

	// ErrInProgress is returned to the loser of a same-key race;
	// the winning orchestration is still driving the record
	ErrInProgress = errors.New("onboarding is already in progress for this device")

	// ErrProvisioningFailed is the generic terminal failure returned
	// to callers; details stay in the logs and the ledger record
	ErrProvisioningFailed = errors.New("device provisioning failed")

	// ErrCompensationFailed means cleanup itself failed and the
	// record is frozen until an operator deprovisions it
	ErrCompensationFailed = errors.New("provisioning cleanup failed, operator intervention required")
)

// ValidationError describes a malformed request field; never retried,
// returned to the caller immediately
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a request validation failure
func IsValidation(err error) bool {
	for err != nil {
		if _, ok := err.(*ValidationError); ok {
			return true
		}

		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}

		err = cause.Cause()
	}

	return false
}

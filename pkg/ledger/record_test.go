package ledger_test

import (
	"testing"

	"github.com/sensorhub/onboarding/pkg/ledger"
	"github.com/stretchr/testify/assert"
)

func TestStatusGraph(t *testing.T) {
	a := assert.New(t)

	// forward chain
	a.True(ledger.SPending.CanAdvanceTo(ledger.SIdentityIssued))
	a.True(ledger.SIdentityIssued.CanAdvanceTo(ledger.SPolicyAttached))
	a.True(ledger.SPolicyAttached.CanAdvanceTo(ledger.SRegistered))
	a.True(ledger.SRegistered.CanAdvanceTo(ledger.SComplete))

	// every non-terminal forward state may fail
	a.True(ledger.SPending.CanAdvanceTo(ledger.SFailed))
	a.True(ledger.SIdentityIssued.CanAdvanceTo(ledger.SFailed))
	a.True(ledger.SPolicyAttached.CanAdvanceTo(ledger.SFailed))
	a.True(ledger.SRegistered.CanAdvanceTo(ledger.SFailed))

	// deprovisioning is gated on COMPLETE (or FAILED remediation)
	a.True(ledger.SComplete.CanAdvanceTo(ledger.SDeprovisioned))
	a.True(ledger.SFailed.CanAdvanceTo(ledger.SDeprovisioned))

	// a cleanly compensated failure may restart
	a.True(ledger.SFailed.CanAdvanceTo(ledger.SPending))

	// no skipping ahead, no going back mid-flight
	a.False(ledger.SPending.CanAdvanceTo(ledger.SPolicyAttached))
	a.False(ledger.SPending.CanAdvanceTo(ledger.SComplete))
	a.False(ledger.SComplete.CanAdvanceTo(ledger.SPending))
	a.False(ledger.SRegistered.CanAdvanceTo(ledger.SIdentityIssued))
	a.False(ledger.SDeprovisioned.CanAdvanceTo(ledger.SPending))

	a.True(ledger.SComplete.Terminal())
	a.True(ledger.SFailed.Terminal())
	a.True(ledger.SDeprovisioned.Terminal())
	a.False(ledger.SPending.Terminal())
	a.False(ledger.SRegistered.Terminal())
}

func TestRecordAdvance(t *testing.T) {
	a := assert.New(t)

	rec := ledger.NewRecord("sensors", "SN-001")
	a.Equal(ledger.SPending, rec.Status)
	a.NotEmpty(rec.Version)
	a.NoError(rec.Validate())

	v0 := rec.Version
	a.NoError(rec.Advance(ledger.SIdentityIssued))
	a.Equal(ledger.SIdentityIssued, rec.Status)
	a.NotEqual(v0, rec.Version)

	// skipping a state is rejected and leaves the record untouched
	v1 := rec.Version
	a.Equal(ledger.ErrIllegalTransition, rec.Advance(ledger.SComplete))
	a.Equal(ledger.SIdentityIssued, rec.Status)
	a.Equal(v1, rec.Version)
}

func TestNewVersionUnique(t *testing.T) {
	a := assert.New(t)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		v := ledger.NewVersion()
		a.False(seen[v])
		seen[v] = true
	}
}

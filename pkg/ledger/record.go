package ledger

import (
	"time"
)

// Status is the onboarding state machine state persisted per device
type Status string

// onboarding states; the forward chain runs PENDING through COMPLETE,
// FAILED is the compensated branch and DEPROVISIONED is terminal
const (
	SPending        Status = "PENDING"
	SIdentityIssued Status = "IDENTITY_ISSUED"
	SPolicyAttached Status = "POLICY_ATTACHED"
	SRegistered     Status = "REGISTERED"
	SComplete       Status = "COMPLETE"
	SFailed         Status = "FAILED"
	SDeprovisioned  Status = "DEPROVISIONED"
)

// transitions defines the legal state graph
var transitions = map[Status][]Status{
	SPending:        {SIdentityIssued, SFailed},
	SIdentityIssued: {SPolicyAttached, SFailed},
	SPolicyAttached: {SRegistered, SFailed},
	SRegistered:     {SComplete, SFailed},
	SComplete:       {SDeprovisioned},
	SFailed:         {SPending, SDeprovisioned},
	SDeprovisioned:  {},
}

// CanAdvanceTo reports whether next is a legal transition from s
func (s Status) CanAdvanceTo(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}

	return false
}

// Terminal reports whether the state admits no further forward work
func (s Status) Terminal() bool {
	return s == SComplete || s == SFailed || s == SDeprovisioned
}

// Record is the durable onboarding ledger entry, keyed by
// (deviceGroup, serialNumber). Version changes on every write and
// backs the optimistic concurrency check; there is never any private
// key material in here.
type Record struct {
	DeviceGroup        string    `json:"deviceGroup" dynamodbav:"deviceGroup"`
	SerialNumber       string    `json:"serialNumber" dynamodbav:"serialNumber"`
	Status             Status    `json:"status" dynamodbav:"status"`
	Version            string    `json:"version" dynamodbav:"version"`
	IdentityID         string    `json:"identityId,omitempty" dynamodbav:"identityId"`
	PolicyName         string    `json:"policyName,omitempty" dynamodbav:"policyName"`
	RegistryEntryName  string    `json:"registryEntryName,omitempty" dynamodbav:"registryEntryName"`
	CompensationFailed bool      `json:"compensationFailed,omitempty" dynamodbav:"compensationFailed"`
	LastError          string    `json:"lastError,omitempty" dynamodbav:"lastError"`
	CreatedAt          time.Time `json:"createdAt" dynamodbav:"createdAt,unixtime"`
	UpdatedAt          time.Time `json:"updatedAt" dynamodbav:"updatedAt,unixtime"`
}

// NewRecord initializes a fresh pending record for a device key
func NewRecord(group, serial string) Record {
	now := time.Now()

	return Record{
		DeviceGroup:  group,
		SerialNumber: serial,
		Status:       SPending,
		Version:      NewVersion(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks record key integrity
func (r Record) Validate() error {
	if r.DeviceGroup == "" {
		return ErrEmptyDeviceGroup
	}

	if r.SerialNumber == "" {
		return ErrEmptySerialNumber
	}

	if r.Status == "" {
		return ErrEmptyStatus
	}

	return nil
}

// Advance moves the record to the next state, stamping a new version;
// the previous version must be used as the conditional write guard
func (r *Record) Advance(next Status) error {
	if !r.Status.CanAdvanceTo(next) {
		return ErrIllegalTransition
	}

	r.Status = next
	r.Version = NewVersion()
	r.UpdatedAt = time.Now()

	return nil
}

// Touch stamps a new version without changing state; used to claim
// ownership of an in-flight record
func (r *Record) Touch() {
	r.Version = NewVersion()
	r.UpdatedAt = time.Now()
}

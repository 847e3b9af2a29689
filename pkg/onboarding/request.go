package onboarding

import (
	"strings"

	"github.com/asaskevich/govalidator"
)

// identifier fields must stay safe for use inside derived resource
// names and topic paths
const namePattern = `^[A-Za-z0-9][A-Za-z0-9._-]*$`

// Request is an inbound onboarding request
type Request struct {
	DeviceGroup    string `json:"device_group"`
	SerialNumber   string `json:"serial_number"`
	TopicNamespace string `json:"topic_namespace"`
	CallerIdentity string `json:"caller_identity,omitempty"`
}

// Validate sanity-checks request fields before any remote work starts
func (r Request) Validate() error {
	if strings.TrimSpace(r.DeviceGroup) == "" {
		return &ValidationError{Field: "deviceGroup", Reason: "must not be empty"}
	}

	if !govalidator.Matches(r.DeviceGroup, namePattern) {
		return &ValidationError{Field: "deviceGroup", Reason: "contains unsafe characters"}
	}

	if strings.TrimSpace(r.SerialNumber) == "" {
		return &ValidationError{Field: "serialNumber", Reason: "must not be empty"}
	}

	if !govalidator.Matches(r.SerialNumber, namePattern) {
		return &ValidationError{Field: "serialNumber", Reason: "contains unsafe characters"}
	}

	ns := strings.TrimSpace(r.TopicNamespace)
	if ns == "" {
		return &ValidationError{Field: "topicNamespace", Reason: "must not be empty"}
	}

	if !govalidator.IsPrintableASCII(ns) {
		return &ValidationError{Field: "topicNamespace", Reason: "must be printable ascii"}
	}

	if strings.ContainsAny(ns, "#+") {
		return &ValidationError{Field: "topicNamespace", Reason: "wildcards are not allowed"}
	}

	if strings.HasPrefix(ns, "/") || strings.HasSuffix(ns, "/") {
		return &ValidationError{Field: "topicNamespace", Reason: "must not start or end with a slash"}
	}

	return nil
}

// Result is returned to the caller on successful onboarding. The
// private key appears exactly once, on the run that issued the
// credential; replays and resumed runs return identifiers only.
type Result struct {
	IdentityID        string `json:"identity_id"`
	CertificatePEM    string `json:"certificate_pem,omitempty"`
	PrivateKeyPEM     string `json:"private_key_pem,omitempty"`
	PolicyName        string `json:"policy_name"`
	RegistryEntryName string `json:"registry_entry_name"`
	Replayed          bool   `json:"replayed,omitempty"`
}

package identity

import "context"

// Status represents a credential activation status
type Status string

const (
	SActive   Status = "ACTIVE"
	SInactive Status = "INACTIVE"
	SRevoked  Status = "REVOKED"
)

// Credential is an issued device credential. PrivateKeyPEM is
// disclosed exactly once at issue time and is never serialized,
// logged or persisted anywhere downstream.
type Credential struct {
	ID             string `json:"id"`
	ARN            string `json:"arn"`
	CertificatePEM string `json:"certificate_pem"`
	PrivateKeyPEM  string `json:"-"`
	Status         Status `json:"status"`
}

// Adapter is the identity store contract; it allocates and revokes
// key material in an external identity authority and knows nothing
// about devices or policies
type Adapter interface {
	// Issue allocates a new key pair and certificate; the caller must
	// record the returned identifier durably before any further step
	Issue(ctx context.Context) (Credential, error)

	// Describe returns the credential without private key material
	Describe(ctx context.Context, id string) (Credential, error)

	// UpdateStatus flips the credential activation status
	UpdateStatus(ctx context.Context, id string, status Status) error

	// Revoke deactivates and deletes the credential
	Revoke(ctx context.Context, id string) error
}

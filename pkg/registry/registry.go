package registry

import "context"

// Entry is a logical device record ("thing"): a deterministic name,
// the device group it belongs to, and zero-or-one attached principal
type Entry struct {
	Name         string `json:"name"`
	Group        string `json:"group"`
	PrincipalARN string `json:"principal_arn,omitempty"`
}

// Adapter is the device registry contract
type Adapter interface {
	// Create registers a new entry; it fails with a conflict if an
	// entry with that name already exists (names are deterministic
	// and must not collide across groups)
	Create(ctx context.Context, name, group string) (Entry, error)

	// Describe returns the entry or a not-found failure
	Describe(ctx context.Context, name string) (Entry, error)

	// AttachPrincipal binds a credential to the entry
	AttachPrincipal(ctx context.Context, name, principal string) error

	// DetachPrincipal unbinds a credential from the entry
	DetachPrincipal(ctx context.Context, name, principal string) error

	// Delete removes the entry
	Delete(ctx context.Context, name string) error
}

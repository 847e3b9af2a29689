package ledger

import (
	"context"
)

// Store is the durable ledger contract. Every mutation is a single
// atomic conditional write: Put with an empty expectedVersion
// requires the record to be absent, otherwise the stored version must
// match expectedVersion exactly; a mismatch yields ErrVersionConflict
// and the caller must abort rather than double-provision.
type Store interface {
	Get(ctx context.Context, group, serial string) (Record, error)
	Put(ctx context.Context, rec Record, expectedVersion string) error
	Delete(ctx context.Context, group, serial, expectedVersion string) error
}

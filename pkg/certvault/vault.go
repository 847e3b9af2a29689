package certvault

import (
	"context"
	"errors"
	"fmt"
)

// errors
var (
	ErrNilClient      = errors.New("s3 client is nil")
	ErrEmptyBucket    = errors.New("bucket name is empty")
	ErrEmptyKey       = errors.New("object key is empty")
	ErrEmptyMaterial  = errors.New("certificate material is empty")
	ErrObjectNotFound = errors.New("archived certificate not found")
)

// Vault archives issued device certificates (public part only; the
// private key is disclosed once to the caller and never stored)
type Vault interface {
	Archive(ctx context.Context, group, serial string, certificatePEM []byte) error
	Fetch(ctx context.Context, group, serial string) ([]byte, error)
}

// ObjectKey derives the archive location for a device certificate
func ObjectKey(group, serial string) string {
	return fmt.Sprintf("certificates/%s/%s.pem", group, serial)
}

package certvault

import (
	"context"
	"sync"

	"github.com/sensorhub/onboarding/pkg/remote"
)

// MemoryVault keeps archived certificates in memory
type MemoryVault struct {
	FailArchive func() error

	objects map[string][]byte
	sync.RWMutex
}

// NewMemoryVault returns an initialized in-memory certificate vault
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		objects: make(map[string][]byte),
	}
}

func (v *MemoryVault) Archive(ctx context.Context, group, serial string, certificatePEM []byte) error {
	v.Lock()
	defer v.Unlock()

	if v.FailArchive != nil {
		if err := v.FailArchive(); err != nil {
			return err
		}
	}

	if len(certificatePEM) == 0 {
		return remote.Permanent("certvault.archive", ErrEmptyMaterial)
	}

	payload := make([]byte, len(certificatePEM))
	copy(payload, certificatePEM)

	v.objects[ObjectKey(group, serial)] = payload

	return nil
}

func (v *MemoryVault) Fetch(ctx context.Context, group, serial string) ([]byte, error) {
	v.RLock()
	defer v.RUnlock()

	payload, ok := v.objects[ObjectKey(group, serial)]
	if !ok {
		return nil, remote.NotFound("certvault.fetch", ErrObjectNotFound)
	}

	return payload, nil
}

// Count returns the number of archived certificates
func (v *MemoryVault) Count() int {
	v.RLock()
	defer v.RUnlock()

	return len(v.objects)
}

package registry

import (
	"context"
	"sync"

	"github.com/sensorhub/onboarding/pkg/remote"
)

// MemoryAdapter is an in-memory device registry for local mode and
// tests, with failure hooks and a call log
type MemoryAdapter struct {
	FailCreate          func() error
	FailAttachPrincipal func() error
	FailDetachPrincipal func() error
	FailDelete          func() error

	Calls []string

	entries map[string]Entry
	sync.RWMutex
}

// NewMemoryAdapter returns an initialized in-memory registry adapter
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		entries: make(map[string]Entry),
	}
}

func (a *MemoryAdapter) record(call string) {
	a.Calls = append(a.Calls, call)
}

func (a *MemoryAdapter) Create(ctx context.Context, name, group string) (e Entry, err error) {
	a.Lock()
	defer a.Unlock()

	a.record("create")

	if a.FailCreate != nil {
		if err = a.FailCreate(); err != nil {
			return e, err
		}
	}

	if name == "" {
		return e, remote.Permanent("registry.create", ErrEmptyName)
	}

	if group == "" {
		return e, remote.Permanent("registry.create", ErrEmptyGroup)
	}

	if _, ok := a.entries[name]; ok {
		return e, remote.Conflict("registry.create", ErrEntryExists)
	}

	e = Entry{Name: name, Group: group}
	a.entries[name] = e

	return e, nil
}

func (a *MemoryAdapter) Describe(ctx context.Context, name string) (e Entry, err error) {
	a.RLock()
	defer a.RUnlock()

	e, ok := a.entries[name]
	if !ok {
		return e, remote.NotFound("registry.describe", ErrEntryNotFound)
	}

	return e, nil
}

func (a *MemoryAdapter) AttachPrincipal(ctx context.Context, name, principal string) error {
	a.Lock()
	defer a.Unlock()

	a.record("attach_principal")

	if a.FailAttachPrincipal != nil {
		if err := a.FailAttachPrincipal(); err != nil {
			return err
		}
	}

	e, ok := a.entries[name]
	if !ok {
		return remote.NotFound("registry.attach_principal", ErrEntryNotFound)
	}

	e.PrincipalARN = principal
	a.entries[name] = e

	return nil
}

func (a *MemoryAdapter) DetachPrincipal(ctx context.Context, name, principal string) error {
	a.Lock()
	defer a.Unlock()

	a.record("detach_principal")

	if a.FailDetachPrincipal != nil {
		if err := a.FailDetachPrincipal(); err != nil {
			return err
		}
	}

	e, ok := a.entries[name]
	if !ok {
		return remote.NotFound("registry.detach_principal", ErrEntryNotFound)
	}

	if e.PrincipalARN == principal {
		e.PrincipalARN = ""
		a.entries[name] = e
	}

	return nil
}

func (a *MemoryAdapter) Delete(ctx context.Context, name string) error {
	a.Lock()
	defer a.Unlock()

	a.record("delete")

	if a.FailDelete != nil {
		if err := a.FailDelete(); err != nil {
			return err
		}
	}

	if _, ok := a.entries[name]; !ok {
		return remote.NotFound("registry.delete", ErrEntryNotFound)
	}

	delete(a.entries, name)

	return nil
}

// Count returns the number of registered entries
func (a *MemoryAdapter) Count() int {
	a.RLock()
	defer a.RUnlock()

	return len(a.entries)
}

// Has reports whether the named entry exists
func (a *MemoryAdapter) Has(name string) bool {
	a.RLock()
	defer a.RUnlock()

	_, ok := a.entries[name]

	return ok
}

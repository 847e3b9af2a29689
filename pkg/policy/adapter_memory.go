package policy

import (
	"context"
	"sync"

	"github.com/sensorhub/onboarding/pkg/remote"
)

// MemoryAdapter is an in-memory policy store for local mode and
// tests; attachments are tracked so the delete probe behaves like
// the real store
type MemoryAdapter struct {
	FailEnsure func() error
	FailAttach func() error
	FailDetach func() error
	FailDelete func() error

	Calls []string

	policies    map[string]Policy
	attachments map[string]map[string]bool
	sync.RWMutex
}

// NewMemoryAdapter returns an initialized in-memory policy adapter
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		policies:    make(map[string]Policy),
		attachments: make(map[string]map[string]bool),
	}
}

func (a *MemoryAdapter) record(call string) {
	a.Calls = append(a.Calls, call)
}

func (a *MemoryAdapter) Ensure(ctx context.Context, name, document string) (p Policy, err error) {
	a.Lock()
	defer a.Unlock()

	a.record("ensure")

	if a.FailEnsure != nil {
		if err = a.FailEnsure(); err != nil {
			return p, err
		}
	}

	if name == "" {
		return p, remote.Permanent("policy.ensure", ErrEmptyName)
	}

	if document == "" {
		return p, remote.Permanent("policy.ensure", ErrEmptyDocument)
	}

	if existing, ok := a.policies[name]; ok {
		return existing, nil
	}

	p = Policy{
		Name:     name,
		ARN:      "arn:memory:policy/" + name,
		Document: document,
	}

	a.policies[name] = p

	return p, nil
}

func (a *MemoryAdapter) Attach(ctx context.Context, name, principal string) error {
	a.Lock()
	defer a.Unlock()

	a.record("attach")

	if a.FailAttach != nil {
		if err := a.FailAttach(); err != nil {
			return err
		}
	}

	if _, ok := a.policies[name]; !ok {
		return remote.NotFound("policy.attach", ErrPolicyNotFound)
	}

	if a.attachments[name] == nil {
		a.attachments[name] = make(map[string]bool)
	}

	a.attachments[name][principal] = true

	return nil
}

func (a *MemoryAdapter) Detach(ctx context.Context, name, principal string) error {
	a.Lock()
	defer a.Unlock()

	a.record("detach")

	if a.FailDetach != nil {
		if err := a.FailDetach(); err != nil {
			return err
		}
	}

	if _, ok := a.policies[name]; !ok {
		return remote.NotFound("policy.detach", ErrPolicyNotFound)
	}

	delete(a.attachments[name], principal)

	return nil
}

func (a *MemoryAdapter) DeleteIfUnreferenced(ctx context.Context, name string) error {
	a.Lock()
	defer a.Unlock()

	a.record("delete")

	if a.FailDelete != nil {
		if err := a.FailDelete(); err != nil {
			return err
		}
	}

	if _, ok := a.policies[name]; !ok {
		return remote.NotFound("policy.delete", ErrPolicyNotFound)
	}

	if len(a.attachments[name]) > 0 {
		return remote.Conflict("policy.delete", ErrPolicyShared)
	}

	delete(a.policies, name)
	delete(a.attachments, name)

	return nil
}

// Has reports whether the named policy exists
func (a *MemoryAdapter) Has(name string) bool {
	a.RLock()
	defer a.RUnlock()

	_, ok := a.policies[name]

	return ok
}

// IsAttached reports whether the named policy is attached to the principal
func (a *MemoryAdapter) IsAttached(name, principal string) bool {
	a.RLock()
	defer a.RUnlock()

	return a.attachments[name][principal]
}

// AttachmentCount returns the number of principals the policy is attached to
func (a *MemoryAdapter) AttachmentCount(name string) int {
	a.RLock()
	defer a.RUnlock()

	return len(a.attachments[name])
}

package registry

import "errors"

// errors
var (
	ErrNilAdapter     = errors.New("registry adapter is nil")
	ErrNilClient      = errors.New("iot client is nil")
	ErrEmptyName      = errors.New("entry name is empty")
	ErrEmptyGroup     = errors.New("device group is empty")
	ErrEmptyPrincipal = errors.New("principal is empty")
	ErrEntryNotFound  = errors.New("registry entry not found")
	ErrEntryExists    = errors.New("registry entry already exists")
)

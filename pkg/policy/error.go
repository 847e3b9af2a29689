package policy

import "errors"

// errors
var (
	ErrNilAdapter     = errors.New("policy adapter is nil")
	ErrNilClient      = errors.New("iot client is nil")
	ErrEmptyName      = errors.New("policy name is empty")
	ErrEmptyDocument  = errors.New("policy document is empty")
	ErrEmptyPrincipal = errors.New("principal is empty")
	ErrPolicyNotFound = errors.New("policy not found")
	ErrPolicyShared   = errors.New("policy is still referenced")
)

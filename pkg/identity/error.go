package identity

import "errors"

// errors
var (
	ErrNilAdapter         = errors.New("identity adapter is nil")
	ErrNilClient          = errors.New("iot client is nil")
	ErrEmptyCredentialID  = errors.New("credential id is empty")
	ErrCredentialNotFound = errors.New("credential not found")
)

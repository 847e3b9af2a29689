package core

import "errors"

// errors
var (
	ErrNilCore               = errors.New("service core is nil")
	ErrEmptyLedgerTable      = errors.New("ledger table name is empty")
	ErrEmptyBadgerDir        = errors.New("badger database directory is empty")
	ErrUnknownLedgerBackend  = errors.New("unknown ledger backend")
	ErrUnknownAdapterBackend = errors.New("unknown adapter backend")
)

package ledger

import "errors"

// errors
var (
	ErrNilStore          = errors.New("ledger store is nil")
	ErrNilDatabase       = errors.New("ledger database is nil")
	ErrEmptyTableName    = errors.New("ledger table name is empty")
	ErrEmptyDeviceGroup  = errors.New("device group is empty")
	ErrEmptySerialNumber = errors.New("serial number is empty")
	ErrEmptyStatus       = errors.New("record status is empty")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrRecordNotFound    = errors.New("onboarding record not found")
	ErrVersionConflict   = errors.New("record version conflict")
)

package ledger

import (
	"context"

	"github.com/dgraph-io/badger"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// badgerStore is a local, embedded ledger backend; badger's
// serializable transactions give the same conditional-write
// semantics as the DynamoDB table
type badgerStore struct {
	db *badger.DB
}

// NewBadgerStore returns a ledger store on top of an open badger database
func NewBadgerStore(db *badger.DB) (Store, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}

	return &badgerStore{db: db}, nil
}

func recordKey(group, serial string) []byte {
	return []byte("onboarding/" + group + "/" + serial)
}

func (s *badgerStore) Get(ctx context.Context, group, serial string) (rec Record, err error) {
	if group == "" {
		return rec, ErrEmptyDeviceGroup
	}

	if serial == "" {
		return rec, ErrEmptySerialNumber
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(group, serial))
		if err == badger.ErrKeyNotFound {
			return ErrRecordNotFound
		}
		if err != nil {
			return errors.Wrap(err, "failed to read onboarding record")
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})

	return rec, err
}

func (s *badgerStore) Put(ctx context.Context, rec Record, expectedVersion string) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	key := recordKey(rec.DeviceGroup, rec.SerialNumber)

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)

		switch {
		case err == badger.ErrKeyNotFound:
			if expectedVersion != "" {
				return ErrVersionConflict
			}
		case err != nil:
			return errors.Wrap(err, "failed to read onboarding record")
		default:
			if expectedVersion == "" {
				return ErrVersionConflict
			}

			var current Record
			if err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return errors.Wrap(err, "failed to unmarshal onboarding record")
			}

			if current.Version != expectedVersion {
				return ErrVersionConflict
			}
		}

		payload, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "failed to marshal onboarding record")
		}

		return txn.Set(key, payload)
	})

	// two same-key transactions racing resolve as a version conflict
	if err == badger.ErrConflict {
		return ErrVersionConflict
	}

	return err
}

func (s *badgerStore) Delete(ctx context.Context, group, serial, expectedVersion string) error {
	if group == "" {
		return ErrEmptyDeviceGroup
	}

	if serial == "" {
		return ErrEmptySerialNumber
	}

	key := recordKey(group, serial)

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read onboarding record")
		}

		if expectedVersion != "" {
			var current Record
			if err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return errors.Wrap(err, "failed to unmarshal onboarding record")
			}

			if current.Version != expectedVersion {
				return ErrVersionConflict
			}
		}

		return txn.Delete(key)
	})

	if err == badger.ErrConflict {
		return ErrVersionConflict
	}

	return err
}

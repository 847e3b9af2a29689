package ledger

import (
	"context"
	"sync"
)

// memoryStore keeps records in a mutex-guarded map; used in tests
// and local mode
type memoryStore struct {
	records map[string]Record
	sync.RWMutex
}

// NewMemoryStore returns a ledger store that keeps everything in memory
func NewMemoryStore() Store {
	return &memoryStore{
		records: make(map[string]Record),
	}
}

func memoryKey(group, serial string) string {
	return group + "/" + serial
}

func (s *memoryStore) Get(ctx context.Context, group, serial string) (rec Record, err error) {
	if group == "" {
		return rec, ErrEmptyDeviceGroup
	}

	if serial == "" {
		return rec, ErrEmptySerialNumber
	}

	s.RLock()
	rec, ok := s.records[memoryKey(group, serial)]
	s.RUnlock()

	if !ok {
		return rec, ErrRecordNotFound
	}

	return rec, nil
}

func (s *memoryStore) Put(ctx context.Context, rec Record, expectedVersion string) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	key := memoryKey(rec.DeviceGroup, rec.SerialNumber)

	s.Lock()
	defer s.Unlock()

	current, exists := s.records[key]

	if expectedVersion == "" {
		if exists {
			return ErrVersionConflict
		}
	} else {
		if !exists || current.Version != expectedVersion {
			return ErrVersionConflict
		}
	}

	s.records[key] = rec

	return nil
}

func (s *memoryStore) Delete(ctx context.Context, group, serial, expectedVersion string) error {
	if group == "" {
		return ErrEmptyDeviceGroup
	}

	if serial == "" {
		return ErrEmptySerialNumber
	}

	key := memoryKey(group, serial)

	s.Lock()
	defer s.Unlock()

	current, exists := s.records[key]
	if !exists {
		return nil
	}

	if expectedVersion != "" && current.Version != expectedVersion {
		return ErrVersionConflict
	}

	delete(s.records, key)

	return nil
}

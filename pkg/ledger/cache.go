package ledger

import (
	"context"
	"time"

	"github.com/allegro/bigcache"
	"github.com/pkg/errors"
)

// cachedStore is a read-through wrapper serving status lookups.
// Only terminal records are ever cached: they are immutable until an
// explicit deprovisioning, so the conditional-write discipline of the
// underlying store is untouched. Mutations always go straight through
// and evict.
type cachedStore struct {
	store Store
	cache *bigcache.BigCache
}

// NewCachedStore wraps a ledger store with a terminal-record cache
func NewCachedStore(s Store) (Store, error) {
	if s == nil {
		return nil, ErrNilStore
	}

	cache, err := bigcache.NewBigCache(bigcache.DefaultConfig(10 * time.Minute))
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize record cache")
	}

	return &cachedStore{store: s, cache: cache}, nil
}

func (s *cachedStore) Get(ctx context.Context, group, serial string) (rec Record, err error) {
	key := memoryKey(group, serial)

	if payload, err := s.cache.Get(key); err == nil {
		if err = json.Unmarshal(payload, &rec); err == nil {
			return rec, nil
		}
	}

	rec, err = s.store.Get(ctx, group, serial)
	if err != nil {
		return rec, err
	}

	if rec.Status.Terminal() {
		if payload, merr := json.Marshal(rec); merr == nil {
			_ = s.cache.Set(key, payload)
		}
	}

	return rec, nil
}

func (s *cachedStore) Put(ctx context.Context, rec Record, expectedVersion string) error {
	if err := s.store.Put(ctx, rec, expectedVersion); err != nil {
		return err
	}

	_ = s.cache.Delete(memoryKey(rec.DeviceGroup, rec.SerialNumber))

	return nil
}

func (s *cachedStore) Delete(ctx context.Context, group, serial, expectedVersion string) error {
	if err := s.store.Delete(ctx, group, serial, expectedVersion); err != nil {
		return err
	}

	_ = s.cache.Delete(memoryKey(group, serial))

	return nil
}

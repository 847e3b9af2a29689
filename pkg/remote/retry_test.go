package remote_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sensorhub/onboarding/pkg/remote"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	a := assert.New(t)

	a.Equal(remote.KUnknown, remote.KindOf(nil))
	a.Equal(remote.KUnknown, remote.KindOf(errors.New("plain")))
	a.Equal(remote.KTransient, remote.KindOf(remote.Transient("op", errors.New("throttled"))))
	a.Equal(remote.KPermanent, remote.KindOf(remote.Permanent("op", errors.New("denied"))))
	a.Equal(remote.KConflict, remote.KindOf(remote.Conflict("op", errors.New("exists"))))
	a.Equal(remote.KNotFound, remote.KindOf(remote.NotFound("op", errors.New("missing"))))

	// the tag must survive pkg/errors wrapping
	wrapped := errors.Wrap(remote.Transient("op", errors.New("throttled")), "failed to issue credential")
	a.True(remote.IsTransient(wrapped))
	a.False(remote.IsPermanent(wrapped))
}

func TestRetryTransient(t *testing.T) {
	a := assert.New(t)

	calls := 0
	err := remote.Retry(context.Background(), "issue", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return remote.Transient("issue", errors.New("throttled"))
		}
		return nil
	})

	a.NoError(err)
	a.Equal(3, calls)
}

func TestRetryExhausted(t *testing.T) {
	a := assert.New(t)

	calls := 0
	err := remote.Retry(context.Background(), "issue", func(ctx context.Context) error {
		calls++
		return remote.Transient("issue", errors.New("throttled"))
	})

	a.Error(err)
	a.True(remote.IsTransient(err))
	a.Equal(remote.MaxAttempts, calls)
}

func TestRetryPermanentNotRetried(t *testing.T) {
	a := assert.New(t)

	calls := 0
	err := remote.Retry(context.Background(), "issue", func(ctx context.Context) error {
		calls++
		return remote.Permanent("issue", errors.New("malformed input"))
	})

	a.Error(err)
	a.True(remote.IsPermanent(err))
	a.Equal(1, calls)
}

func TestRetryConflictNotRetried(t *testing.T) {
	a := assert.New(t)

	calls := 0
	err := remote.Retry(context.Background(), "create", func(ctx context.Context) error {
		calls++
		return remote.Conflict("create", errors.New("already exists"))
	})

	a.Error(err)
	a.True(remote.IsConflict(err))
	a.Equal(1, calls)
}

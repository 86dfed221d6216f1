package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/centbook/centbook"
	"github.com/centbook/centbook/mock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func newTestProfiles(t *testing.T, store centbook.ProfileStore) *Profiles {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return &Profiles{Store: store, Client: client}
}

func TestProfilesGetCachesRow(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	calls := 0
	store := mock.ProfileStore{
		ByIdFn: func(ctx context.Context, userId centbook.UserId) (centbook.Profile, error) {
			calls++
			return centbook.Profile{Id: userId, Name: strPtr("Makin")}, nil
		},
	}
	profiles := newTestProfiles(t, store)

	first, err := profiles.Get(ctx, "u1")
	if !assert.NoError(err) {
		return
	}
	second, err := profiles.Get(ctx, "u1")
	if !assert.NoError(err) {
		return
	}
	assert.Equal(1, calls)
	assert.Equal(first.Id, second.Id)
	assert.Equal("Makin", *second.Name)
}

func TestProfilesInvalidateForcesRefetch(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	calls := 0
	store := mock.ProfileStore{
		ByIdFn: func(ctx context.Context, userId centbook.UserId) (centbook.Profile, error) {
			calls++
			return centbook.Profile{Id: userId}, nil
		},
	}
	profiles := newTestProfiles(t, store)

	if _, err := profiles.Get(ctx, "u1"); !assert.NoError(err) {
		return
	}
	if !assert.NoError(profiles.InvalidateProfiles(ctx)) {
		return
	}
	if _, err := profiles.Get(ctx, "u1"); !assert.NoError(err) {
		return
	}
	assert.Equal(2, calls)
}

func TestProfilesGetNotAuthenticated(t *testing.T) {
	assert := assert.New(t)

	store := mock.ProfileStore{
		ByIdFn: func(ctx context.Context, userId centbook.UserId) (centbook.Profile, error) {
			t.Fatal("store must not be called without a user id")
			return centbook.Profile{}, nil
		},
	}
	profiles := newTestProfiles(t, store)

	_, err := profiles.Get(context.Background(), "")
	assert.ErrorIs(err, centbook.ErrNotAuthenticated)
}

func TestProfilesGetNotFoundPassesThrough(t *testing.T) {
	assert := assert.New(t)

	store := mock.ProfileStore{
		ByIdFn: func(ctx context.Context, userId centbook.UserId) (centbook.Profile, error) {
			return centbook.Profile{}, centbook.ErrProfileNotFound
		},
	}
	profiles := newTestProfiles(t, store)

	_, err := profiles.Get(context.Background(), "u-missing")
	assert.ErrorIs(err, centbook.ErrProfileNotFound)

	var queryErr *centbook.BackendQueryError
	assert.False(errors.As(err, &queryErr))
}

func TestProfilesGetWrapsStoreFailure(t *testing.T) {
	assert := assert.New(t)

	storeErr := errors.New("connection reset")
	store := mock.ProfileStore{
		ByIdFn: func(ctx context.Context, userId centbook.UserId) (centbook.Profile, error) {
			return centbook.Profile{}, storeErr
		},
	}
	profiles := newTestProfiles(t, store)

	_, err := profiles.Get(context.Background(), "u1")
	var queryErr *centbook.BackendQueryError
	if !assert.ErrorAs(err, &queryErr) {
		return
	}
	assert.ErrorIs(queryErr.Err, storeErr)
}

package inmem

import (
	"context"
	"testing"

	"github.com/centbook/centbook"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func TestProfileStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := NewProfileStore()
	store.Put(centbook.Profile{Id: "u1", Email: strPtr("makin@centbook.pl")})

	profile, err := store.ById(ctx, "u1")
	if !assert.NoError(err) {
		return
	}
	assert.Equal(centbook.UserId("u1"), profile.Id)

	_, err = store.ById(ctx, "u2")
	assert.ErrorIs(err, centbook.ErrProfileNotFound)

	updated, err := store.UpdateContact(ctx, "u1", strPtr("Makin"), nil)
	if !assert.NoError(err) {
		return
	}
	assert.Equal("Makin", *updated.Name)
	assert.Nil(updated.Phone)
	assert.False(updated.UpdatedAt.IsZero())

	url := "https://cdn.centbook.pl/avatars/u1/avatar.png?t=1"
	updated, err = store.UpdateAvatarUrl(ctx, "u1", &url)
	if !assert.NoError(err) {
		return
	}
	assert.Equal(url, *updated.AvatarUrl)

	_, err = store.UpdateAvatarUrl(ctx, "u2", nil)
	assert.ErrorIs(err, centbook.ErrProfileNotFound)
}

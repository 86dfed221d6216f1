package mock

import (
	"context"

	"github.com/centbook/centbook"
)

type ProfileStore struct {
	ByIdFn            func(ctx context.Context, userId centbook.UserId) (centbook.Profile, error)
	UpdateContactFn   func(ctx context.Context, userId centbook.UserId, name *string, phone *string) (centbook.Profile, error)
	UpdateAvatarUrlFn func(ctx context.Context, userId centbook.UserId, avatarUrl *string) (centbook.Profile, error)
}

func (s ProfileStore) ById(ctx context.Context, userId centbook.UserId) (centbook.Profile, error) {
	return s.ByIdFn(ctx, userId)
}

func (s ProfileStore) UpdateContact(
	ctx context.Context,
	userId centbook.UserId,
	name *string,
	phone *string,
) (centbook.Profile, error) {
	return s.UpdateContactFn(ctx, userId, name, phone)
}

func (s ProfileStore) UpdateAvatarUrl(
	ctx context.Context,
	userId centbook.UserId,
	avatarUrl *string,
) (centbook.Profile, error) {
	return s.UpdateAvatarUrlFn(ctx, userId, avatarUrl)
}

type ProfileReader struct {
	GetFn func(ctx context.Context, userId centbook.UserId) (centbook.Profile, error)
}

func (r ProfileReader) Get(ctx context.Context, userId centbook.UserId) (centbook.Profile, error) {
	return r.GetFn(ctx, userId)
}

type ProfileInvalidator struct {
	InvalidateProfilesFn func(ctx context.Context) error
}

func (i ProfileInvalidator) InvalidateProfiles(ctx context.Context) error {
	return i.InvalidateProfilesFn(ctx)
}

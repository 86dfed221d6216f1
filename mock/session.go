package mock

import (
	"context"

	"github.com/centbook/centbook"
)

type SessionStore struct {
	RegisterNewFn       func(ctx context.Context, userId centbook.UserId) (centbook.Session, error)
	ByTokenFn           func(token string) (centbook.Session, error)
	InvalidateByTokenFn func(token string) error
}

func (s SessionStore) RegisterNew(ctx context.Context, userId centbook.UserId) (centbook.Session, error) {
	return s.RegisterNewFn(ctx, userId)
}

func (s SessionStore) ByToken(token string) (centbook.Session, error) {
	return s.ByTokenFn(token)
}

func (s SessionStore) InvalidateByToken(token string) error {
	return s.InvalidateByTokenFn(token)
}

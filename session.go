package centbook

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is the identity context: every profile operation resolves the
// current user id through one.
type Session struct {
	Id        string
	UserId    UserId
	Token     string
	ExpiresAt time.Time
}

type SessionStore interface {
	RegisterNew(ctx context.Context, userId UserId) (Session, error)

	ByToken(token string) (Session, error)

	InvalidateByToken(token string) error
}

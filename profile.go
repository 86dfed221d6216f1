package centbook

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrNotAuthenticated = errors.New("not authenticated")
)

type UserId string

// Profile is the per-user account record. Nil fields map to NULL columns.
// Email is written at account creation and never changed by this service.
type Profile struct {
	Id        UserId
	Name      *string
	Email     *string
	Phone     *string
	AvatarUrl *string
	UpdatedAt time.Time
}

type ProfileStore interface {
	ById(ctx context.Context, userId UserId) (Profile, error)

	// UpdateContact sets name, phone and updated_at in a single statement
	// and returns the updated row. Nil clears a column.
	UpdateContact(ctx context.Context, userId UserId, name *string, phone *string) (Profile, error)

	// UpdateAvatarUrl sets avatar_url and updated_at. Nil clears the url.
	UpdateAvatarUrl(ctx context.Context, userId UserId, avatarUrl *string) (Profile, error)
}

// ProfileReader is the cached read side. Identical concurrent reads share one
// fetch and one cached row.
type ProfileReader interface {
	Get(ctx context.Context, userId UserId) (Profile, error)
}

// ProfileInvalidator drops every cached profile row so consumers refetch.
// Cached rows are never patched in place.
type ProfileInvalidator interface {
	InvalidateProfiles(ctx context.Context) error
}

// BackendQueryError wraps a failed profile fetch, backend error kept intact.
type BackendQueryError struct {
	Err error
}

func (e *BackendQueryError) Error() string { return "backend query: " + e.Err.Error() }

func (e *BackendQueryError) Unwrap() error { return e.Err }

type ContactUpdate struct {
	Name  string
	Phone string
}

type ProfileService struct {
	Store ProfileStore
	Cache ProfileInvalidator
}

// UpdateContact applies a name/phone edit for the current user. Empty strings
// normalize to NULL before the write. The store error is surfaced as-is: no
// retry, no partial apply.
func (s *ProfileService) UpdateContact(ctx context.Context, userId UserId, update ContactUpdate) (Profile, error) {
	if userId == "" {
		return Profile{}, ErrNotAuthenticated
	}
	profile, err := s.Store.UpdateContact(ctx, userId, emptyToNil(update.Name), emptyToNil(update.Phone))
	if err != nil {
		return Profile{}, fmt.Errorf("update contact: %w", err)
	}
	invalidateProfiles(ctx, s.Cache)
	return profile, nil
}

func emptyToNil(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// AvatarPalette is the fixed fallback-avatar background palette. ColorIndex
// picks from it deterministically, so the same identifier always renders with
// the same color across restarts.
var AvatarPalette = [6]string{"#ef4444", "#f59e0b", "#10b981", "#3b82f6", "#8b5cf6", "#ec4899"}

func Initials(name *string, email *string) string {
	for _, value := range []*string{name, email} {
		if value == nil {
			continue
		}
		for _, r := range *value {
			return string(unicode.ToUpper(r))
		}
	}
	return "?"
}

func ColorIndex(identifier string) int {
	var hash int32
	for _, r := range identifier {
		hash = int32(r) + (hash << 5) - hash
	}
	index := int(hash) % len(AvatarPalette)
	if index < 0 {
		index = -index
	}
	return index
}

// FallbackIdentifier is the string ColorIndex hashes for a profile:
// name, else email, else empty.
func FallbackIdentifier(name *string, email *string) string {
	switch {
	case name != nil:
		return *name
	case email != nil:
		return *email
	default:
		return ""
	}
}

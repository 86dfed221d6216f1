package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/centbook/centbook"
)

type ProfileStore struct {
	profiles map[centbook.UserId]centbook.Profile
	mutex    sync.RWMutex
}

func NewProfileStore() ProfileStore {
	return ProfileStore{
		profiles: map[centbook.UserId]centbook.Profile{},
		mutex:    sync.RWMutex{},
	}
}

// Put seeds a profile row. Rows are created externally in production, tests
// use this to stand in for account creation.
func (s *ProfileStore) Put(profile centbook.Profile) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.profiles[profile.Id] = profile
}

func (s *ProfileStore) ById(ctx context.Context, userId centbook.UserId) (centbook.Profile, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	profile, ok := s.profiles[userId]
	if !ok {
		return centbook.Profile{}, centbook.ErrProfileNotFound
	}
	return profile, nil
}

func (s *ProfileStore) UpdateContact(
	ctx context.Context,
	userId centbook.UserId,
	name *string,
	phone *string,
) (centbook.Profile, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	profile, ok := s.profiles[userId]
	if !ok {
		return centbook.Profile{}, centbook.ErrProfileNotFound
	}
	profile.Name = name
	profile.Phone = phone
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[userId] = profile
	return profile, nil
}

func (s *ProfileStore) UpdateAvatarUrl(
	ctx context.Context,
	userId centbook.UserId,
	avatarUrl *string,
) (centbook.Profile, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	profile, ok := s.profiles[userId]
	if !ok {
		return centbook.Profile{}, centbook.ErrProfileNotFound
	}
	profile.AvatarUrl = avatarUrl
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[userId] = profile
	return profile, nil
}

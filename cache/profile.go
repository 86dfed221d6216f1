// Package cache is the read side of the profile workflow: a redis-backed
// cache in front of the profile store. Mutations never patch cached rows, they
// call InvalidateProfiles and every consumer refetches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/centbook/centbook"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const profileKeyPrefix = "profile:"

const defaultTTL = 5 * time.Minute

type Profiles struct {
	Store  centbook.ProfileStore
	Client *redis.Client

	// TTL bounds cache staleness when an invalidation is lost. Defaults to
	// defaultTTL.
	TTL time.Duration

	group singleflight.Group
}

var (
	_ centbook.ProfileReader      = (*Profiles)(nil)
	_ centbook.ProfileInvalidator = (*Profiles)(nil)
)

// cachedProfile is the encoded row. Decoded copies are validated before use:
// an entry without an id is treated as a miss, not trusted.
type cachedProfile struct {
	Id        string    `json:"id"`
	Name      *string   `json:"name"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	AvatarUrl *string   `json:"avatarUrl"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p cachedProfile) toDomain() centbook.Profile {
	return centbook.Profile{
		Id:        centbook.UserId(p.Id),
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		AvatarUrl: p.AvatarUrl,
		UpdatedAt: p.UpdatedAt,
	}
}

func cachedFromDomain(profile centbook.Profile) cachedProfile {
	return cachedProfile{
		Id:        string(profile.Id),
		Name:      profile.Name,
		Email:     profile.Email,
		Phone:     profile.Phone,
		AvatarUrl: profile.AvatarUrl,
		UpdatedAt: profile.UpdatedAt,
	}
}

// Get returns the current user's profile, cached. Identical concurrent misses
// share one store fetch. No user id means no request is issued at all.
func (c *Profiles) Get(ctx context.Context, userId centbook.UserId) (centbook.Profile, error) {
	if userId == "" {
		return centbook.Profile{}, centbook.ErrNotAuthenticated
	}

	key := profileKeyPrefix + string(userId)
	if payload, err := c.Client.Get(ctx, key).Bytes(); err == nil {
		var cached cachedProfile
		if err := json.Unmarshal(payload, &cached); err == nil && cached.Id != "" {
			return cached.toDomain(), nil
		}
		logrus.WithField("key", key).Warningln("Dropping undecodable cached profile.")
	} else if !errors.Is(err, redis.Nil) {
		// a broken cache degrades to a plain store read
		logrus.WithError(err).Warningln("Profile cache read failed.")
	}

	value, err, _ := c.group.Do(string(userId), func() (interface{}, error) {
		profile, err := c.Store.ById(ctx, userId)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(cachedFromDomain(profile)); err == nil {
			if err := c.Client.Set(ctx, key, payload, c.ttl()).Err(); err != nil {
				logrus.WithError(err).Warningln("Profile cache write failed.")
			}
		}
		return profile, nil
	})
	if err != nil {
		if errors.Is(err, centbook.ErrProfileNotFound) {
			return centbook.Profile{}, err
		}
		return centbook.Profile{}, &centbook.BackendQueryError{Err: err}
	}
	return value.(centbook.Profile), nil
}

// InvalidateProfiles deletes every cached profile row.
func (c *Profiles) InvalidateProfiles(ctx context.Context) error {
	iter := c.Client.Scan(ctx, 0, profileKeyPrefix+"*", 0).Iterator()
	keys := make([]string, 0, 16)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.Client.Del(ctx, keys...).Err()
}

func (c *Profiles) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return defaultTTL
}

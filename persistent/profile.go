package persistent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/centbook/centbook"
	"github.com/uptrace/bun"
)

type Profile struct {
	bun.BaseModel `bun:"table:profile"`

	Id        string    `bun:",pk"`
	Name      *string   `bun:"name"`
	Email     *string   `bun:"email"`
	Phone     *string   `bun:"phone"`
	AvatarUrl *string   `bun:"avatar_url"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// ToDomain rejects rows missing required fields instead of trusting the scan.
func (p Profile) ToDomain() (centbook.Profile, error) {
	if p.Id == "" {
		return centbook.Profile{}, errors.New("profile row missing id")
	}
	return centbook.Profile{
		Id:        centbook.UserId(p.Id),
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		AvatarUrl: p.AvatarUrl,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

type ProfileStore struct {
	DB *bun.DB
}

var _ centbook.ProfileStore = (*ProfileStore)(nil)

func (s *ProfileStore) ById(ctx context.Context, userId centbook.UserId) (centbook.Profile, error) {
	profile := new(Profile)
	err := s.DB.NewSelect().
		Model(profile).
		Where(`id=?`, string(userId)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return centbook.Profile{}, centbook.ErrProfileNotFound
		}
		return centbook.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return profile.ToDomain()
}

func (s *ProfileStore) UpdateContact(
	ctx context.Context,
	userId centbook.UserId,
	name *string,
	phone *string,
) (centbook.Profile, error) {
	profile := &Profile{
		Id:        string(userId),
		Name:      name,
		Phone:     phone,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.DB.NewUpdate().
		Model(profile).
		Column("name", "phone", "updated_at").
		WherePK().
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return centbook.Profile{}, centbook.ErrProfileNotFound
		}
		return centbook.Profile{}, fmt.Errorf("update profile contact: %w", err)
	}
	return profile.ToDomain()
}

func (s *ProfileStore) UpdateAvatarUrl(
	ctx context.Context,
	userId centbook.UserId,
	avatarUrl *string,
) (centbook.Profile, error) {
	profile := &Profile{
		Id:        string(userId),
		AvatarUrl: avatarUrl,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.DB.NewUpdate().
		Model(profile).
		Column("avatar_url", "updated_at").
		WherePK().
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return centbook.Profile{}, centbook.ErrProfileNotFound
		}
		return centbook.Profile{}, fmt.Errorf("update profile avatar url: %w", err)
	}
	return profile.ToDomain()
}

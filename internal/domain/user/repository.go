package user

import "context"

type Repository interface {
	UpsertProfile(ctx context.Context, profile *Profile) error
	GetProfileByNickname(ctx context.Context, nickname string) (*Profile, error)
}

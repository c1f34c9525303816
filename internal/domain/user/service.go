package user

import (
	"context"
	"errors"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// UpsertProfile records userID under nickname. A nickname is held by the first
// user id that signs in with it; later users get ErrNicknameTaken.
func (s *Service) UpsertProfile(ctx context.Context, userID, nickname, email string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if nickname == "" {
		return fmt.Errorf("nickname is required")
	}

	existing, err := s.repo.GetProfileByNickname(ctx, nickname)
	switch {
	case err == nil && existing.UserID != userID:
		return ErrNicknameTaken
	case err != nil && !errors.Is(err, ErrProfileNotFound):
		return fmt.Errorf("lookup nickname: %w", err)
	}

	profile := Profile{UserID: userID, Nickname: nickname}
	if email != "" {
		profile.Email = &email
	}

	return s.repo.UpsertProfile(ctx, &profile)
}

// Known reports whether nickname belongs to a user that has signed in.
func (s *Service) Known(ctx context.Context, nickname string) (bool, error) {
	_, err := s.repo.GetProfileByNickname(ctx, nickname)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrProfileNotFound) {
		return false, nil
	}
	return false, err
}

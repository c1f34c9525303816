package inmemory

import (
	"context"
	"sync"

	userdomain "pedigree-chart-go/internal/domain/user"
)

type ProfileStore struct {
	mu    sync.RWMutex
	items map[string]userdomain.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		items: make(map[string]userdomain.Profile),
	}
}

func (s *ProfileStore) UpsertProfile(ctx context.Context, profile *userdomain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, other := range s.items {
		if userID != profile.UserID && other.Nickname == profile.Nickname {
			return userdomain.ErrNicknameTaken
		}
	}
	if existing, ok := s.items[profile.UserID]; ok {
		profile.CreatedAt = existing.CreatedAt
		if profile.Email == nil {
			profile.Email = existing.Email
		}
	}
	s.items[profile.UserID] = *profile
	return nil
}

func (s *ProfileStore) GetProfileByNickname(ctx context.Context, nickname string) (*userdomain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, profile := range s.items {
		if profile.Nickname == nickname {
			result := profile
			return &result, nil
		}
	}
	return nil, userdomain.ErrProfileNotFound
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ajoubeir/chat-service/internal/model"
	"github.com/ajoubeir/chat-service/internal/registry/cache"
	"github.com/ajoubeir/chat-service/internal/registry/store"
	"github.com/ajoubeir/chat-service/internal/security"
	"github.com/charmbracelet/log"
)

// ProfileService manages the user directory, with an optional read-through
// cache in front of the profile store.
type ProfileService struct {
	store store.ProfileStore
	cache cache.ProfileCache
	ttl   time.Duration
}

func NewProfileService(profiles store.ProfileStore, profileCache cache.ProfileCache, ttl time.Duration) *ProfileService {
	return &ProfileService{store: profiles, cache: profileCache, ttl: ttl}
}

func validateProfile(profile model.Profile) error {
	if isBlank(profile.Username) {
		return &store.ValidationError{Field: "username", Message: "username must not be empty"}
	}
	if isBlank(profile.FirstName) {
		return &store.ValidationError{Field: "firstName", Message: "first name must not be empty"}
	}
	if isBlank(profile.LastName) {
		return &store.ValidationError{Field: "lastName", Message: "last name must not be empty"}
	}
	return nil
}

// AddProfile creates a new profile. Fails with a conflict when the username
// is already taken.
func (s *ProfileService) AddProfile(ctx context.Context, profile model.Profile) error {
	if err := validateProfile(profile); err != nil {
		return err
	}
	if _, err := s.store.GetProfile(ctx, profile.Username); err == nil {
		return &store.ConflictError{Message: fmt.Sprintf("profile %s already exists", profile.Username)}
	} else if !store.IsNotFound(err) {
		return err
	}
	return s.store.UpsertProfile(ctx, profile)
}

// GetProfile returns the profile for a username, answering from cache when
// possible.
func (s *ProfileService) GetProfile(ctx context.Context, username string) (*model.Profile, error) {
	if isBlank(username) {
		return nil, &store.ValidationError{Field: "username", Message: "username must not be empty"}
	}
	if s.cache != nil && s.cache.Available() {
		cached, err := s.cache.Get(ctx, username)
		if err != nil {
			log.Warn("Profile cache read failed", "username", username, "err", err)
		} else if cached != nil {
			if security.CacheHitsTotal != nil {
				security.CacheHitsTotal.Inc()
			}
			return cached, nil
		} else if security.CacheMissesTotal != nil {
			security.CacheMissesTotal.Inc()
		}
	}

	profile, err := s.store.GetProfile(ctx, username)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && s.cache.Available() {
		if err := s.cache.Set(ctx, *profile, s.ttl); err != nil {
			log.Warn("Profile cache write failed", "username", username, "err", err)
		}
	}
	return profile, nil
}

// UpdateProfile replaces an existing profile. Fails with not-found when the
// username is unknown.
func (s *ProfileService) UpdateProfile(ctx context.Context, profile model.Profile) error {
	if err := validateProfile(profile); err != nil {
		return err
	}
	if _, err := s.store.GetProfile(ctx, profile.Username); err != nil {
		return err
	}
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return err
	}
	if s.cache != nil && s.cache.Available() {
		if err := s.cache.Remove(ctx, profile.Username); err != nil {
			log.Warn("Profile cache invalidation failed", "username", profile.Username, "err", err)
		}
	}
	return nil
}

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ajoubeir/chat-service/internal/model"
)

// ProfileCache caches profiles for read-through lookup. A nil profile with a
// nil error means cache miss.
type ProfileCache interface {
	Available() bool
	Get(ctx context.Context, username string) (*model.Profile, error)
	Set(ctx context.Context, profile model.Profile, ttl time.Duration) error
	Remove(ctx context.Context, username string) error
}

// Loader creates a cache from config.
type Loader func(ctx context.Context) (ProfileCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered cache plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}

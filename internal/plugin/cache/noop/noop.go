package noop

import (
	"context"
	"time"

	"github.com/ajoubeir/chat-service/internal/model"
	"github.com/ajoubeir/chat-service/internal/registry/cache"
)

func init() {
	cache.Register(cache.Plugin{
		Name: "none",
		Loader: func(ctx context.Context) (cache.ProfileCache, error) {
			return &noopProfileCache{}, nil
		},
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

type noopProfileCache struct{}

func (n *noopProfileCache) Available() bool { return false }
func (n *noopProfileCache) Get(_ context.Context, _ string) (*model.Profile, error) {
	return nil, nil
}
func (n *noopProfileCache) Set(_ context.Context, _ model.Profile, _ time.Duration) error {
	return nil
}
func (n *noopProfileCache) Remove(_ context.Context, _ string) error { return nil }

var _ cache.ProfileCache = (*noopProfileCache)(nil)

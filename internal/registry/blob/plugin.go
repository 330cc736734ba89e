package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"
)

// StoreResult is the result of storing a picture.
type StoreResult struct {
	Size   int64
	SHA256 string
}

// PictureStore defines the interface for profile picture storage backends.
type PictureStore interface {
	// Store writes picture data under the given id and returns size and SHA256.
	Store(ctx context.Context, pictureID string, data io.Reader, maxSize int64, contentType string) (*StoreResult, error)
	// Retrieve returns a reader for the stored picture, or a nil reader when
	// no picture exists with that id.
	Retrieve(ctx context.Context, pictureID string) (io.ReadCloser, error)
	// Delete removes the stored picture. Deleting an absent picture is not an error.
	Delete(ctx context.Context, pictureID string) error
	// GetSignedURL returns a time-limited signed download URL, if supported.
	GetSignedURL(ctx context.Context, pictureID string, expiry time.Duration) (*url.URL, error)
}

// Loader creates a PictureStore from config.
type Loader func(ctx context.Context) (PictureStore, error)

// Plugin represents a picture store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a picture store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered picture store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named picture store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown picture store %q; valid: %v", name, Names())
}

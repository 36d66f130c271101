// Package imagecache stores preview images under content-derived keys in a
// local disk tier and a remote object store tier.
package imagecache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoDurableStorage means no tier could keep the image.
	ErrNoDurableStorage = errors.New("no durable image storage available")
	// ErrNotImage is returned when bytes cannot be decoded as an image.
	ErrNotImage = errors.New("data is not a supported image")
)

// DefaultFreshness is how long a disk tier entry counts as a hit.
const DefaultFreshness = 7 * 24 * time.Hour

// CachedImage is one tier's view of a cached key.
type CachedImage struct {
	Key       Key
	LocalPath string
	LocalURL  string
	RemoteURL string
	Age       time.Duration
}

// URL returns the address callers should use, preferring the remote tier.
func (c *CachedImage) URL() string {
	if c.RemoteURL != "" {
		return c.RemoteURL
	}
	return c.LocalURL
}

// Cache is implemented by each tier and by Layered.
type Cache interface {
	// Lookup returns nil, nil on a miss.
	Lookup(ctx context.Context, key Key) (*CachedImage, error)
	// Store writes data and returns a URL for it.
	Store(ctx context.Context, key Key, data []byte) (string, error)
}

package imagecache

import (
	"context"
	"fmt"
	"log/slog"
)

// Layered puts the disk tier in front of the remote tier. Either may be nil.
type Layered struct {
	local  *DiskTier
	remote *RemoteTier
}

// NewLayered composes the tiers that exist in this deployment.
func NewLayered(local *DiskTier, remote *RemoteTier) *Layered {
	return &Layered{local: local, remote: remote}
}

// HasLocal reports whether a disk tier is in use.
func (l *Layered) HasLocal() bool { return l.local != nil }

// HasRemote reports whether an object store tier is in use.
func (l *Layered) HasRemote() bool { return l.remote != nil }

// Durable reports whether any tier can keep an image.
func (l *Layered) Durable() bool { return l.local != nil || l.remote != nil }

// Local returns the disk tier, or nil.
func (l *Layered) Local() *DiskTier { return l.local }

// Lookup checks the disk tier, then the remote tier. A stale disk entry is a
// miss. A remote hit is copied down into the disk tier when there is one.
func (l *Layered) Lookup(ctx context.Context, key Key) (*CachedImage, error) {
	if l.local != nil {
		e, err := l.local.Stat(key)
		if err != nil {
			slog.Warn("disk tier stat failed", "key", key.String(), "error", err)
		} else if e != nil {
			if e.Age < l.local.Freshness() {
				return e, nil
			}
			slog.Debug("disk tier entry stale", "key", key.String(), "age", e.Age)
			return nil, nil
		}
	}

	if l.remote == nil {
		return nil, nil
	}
	e, err := l.remote.Lookup(ctx, key)
	if err != nil || e == nil {
		return nil, err
	}

	if l.local != nil {
		l.fillLocal(ctx, key, e)
	}
	return e, nil
}

func (l *Layered) fillLocal(ctx context.Context, key Key, e *CachedImage) {
	rc, err := l.remote.Open(ctx, key)
	if err != nil {
		slog.Warn("remote tier read failed", "key", key.String(), "error", err)
		return
	}
	defer rc.Close()

	local, err := l.local.Fill(key, rc)
	if err != nil {
		slog.Warn("disk tier fill failed", "key", key.String(), "error", err)
		return
	}
	e.LocalPath = local.LocalPath
	e.LocalURL = local.LocalURL
}

// Store writes to the disk tier (best-effort) and the remote tier
// (authoritative). It returns the remote URL when the upload succeeded, else
// the disk URL, else ErrNoDurableStorage.
func (l *Layered) Store(ctx context.Context, key Key, data []byte) (string, error) {
	var localURL string
	if l.local != nil {
		u, err := l.local.Store(ctx, key, data)
		if err != nil {
			slog.Warn("disk tier write failed", "key", key.String(), "error", err)
		} else {
			localURL = u
		}
	}

	if l.remote != nil {
		u, err := l.remote.Store(ctx, key, data)
		if err == nil {
			return u, nil
		}
		if localURL == "" {
			return "", fmt.Errorf("%w: %v", ErrNoDurableStorage, err)
		}
		slog.Warn("remote tier write failed, keeping disk copy", "key", key.String(), "error", err)
	}

	if localURL == "" {
		return "", ErrNoDurableStorage
	}
	return localURL, nil
}

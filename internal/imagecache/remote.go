package imagecache

import (
	"bytes"
	"context"
	"io"

	"github.com/bookmarkd/api/internal/objectstore"
)

const contentTypeJPEG = "image/jpeg"

// RemoteTier is the durable tier. Entries never expire.
type RemoteTier struct {
	gw objectstore.Gateway
}

// NewRemoteTier wraps gw.
func NewRemoteTier(gw objectstore.Gateway) *RemoteTier {
	return &RemoteTier{gw: gw}
}

// Lookup checks for the object with a HEAD-equivalent request.
func (r *RemoteTier) Lookup(ctx context.Context, key Key) (*CachedImage, error) {
	ok, err := r.gw.Exists(ctx, key.ObjectKey())
	if err != nil || !ok {
		return nil, err
	}
	return &CachedImage{Key: key, RemoteURL: r.gw.PublicURL(key.ObjectKey())}, nil
}

// Store uploads data and returns the public URL.
func (r *RemoteTier) Store(ctx context.Context, key Key, data []byte) (string, error) {
	if err := r.gw.Put(ctx, key.ObjectKey(), bytes.NewReader(data), int64(len(data)), contentTypeJPEG); err != nil {
		return "", err
	}
	return r.gw.PublicURL(key.ObjectKey()), nil
}

// Open streams the stored object.
func (r *RemoteTier) Open(ctx context.Context, key Key) (io.ReadCloser, error) {
	return r.gw.Get(ctx, key.ObjectKey())
}

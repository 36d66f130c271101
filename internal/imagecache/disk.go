package imagecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskTier keeps images under {dir}/{namespace}/{hash}.jpg and serves them
// from {publicPath}/{namespace}/{hash}.jpg.
type DiskTier struct {
	dir        string
	publicPath string
	freshness  time.Duration
	now        func() time.Time
}

// NewDiskTier creates dir if needed. A freshness of 0 uses DefaultFreshness.
func NewDiskTier(dir, publicPath string, freshness time.Duration) (*DiskTier, error) {
	if dir == "" {
		return nil, errors.New("disk tier directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating disk tier directory: %w", err)
	}
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &DiskTier{
		dir:        dir,
		publicPath: strings.TrimRight(publicPath, "/"),
		freshness:  freshness,
		now:        time.Now,
	}, nil
}

// Freshness is the maximum age of a hit.
func (d *DiskTier) Freshness() time.Duration {
	return d.freshness
}

func (d *DiskTier) path(key Key) string {
	return filepath.Join(d.dir, safeSegment(key.Namespace), safeSegment(key.Name()))
}

func (d *DiskTier) url(key Key) string {
	return d.publicPath + "/" + key.Namespace + "/" + key.Name()
}

// Stat returns the entry for key regardless of age, or nil if absent.
func (d *DiskTier) Stat(key Key) (*CachedImage, error) {
	p := d.path(key)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, nil
	}
	return &CachedImage{
		Key:       key,
		LocalPath: p,
		LocalURL:  d.url(key),
		Age:       d.now().Sub(info.ModTime()),
	}, nil
}

// Lookup returns a fresh entry for key, or nil if it is absent or stale.
func (d *DiskTier) Lookup(_ context.Context, key Key) (*CachedImage, error) {
	e, err := d.Stat(key)
	if err != nil || e == nil {
		return nil, err
	}
	if e.Age >= d.freshness {
		return nil, nil
	}
	return e, nil
}

// Store writes data atomically and returns its local URL.
func (d *DiskTier) Store(_ context.Context, key Key, data []byte) (string, error) {
	if err := d.write(key, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return "", err
	}
	return d.url(key), nil
}

// Fill streams r into the entry for key.
func (d *DiskTier) Fill(key Key, r io.Reader) (*CachedImage, error) {
	if err := d.write(key, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	}); err != nil {
		return nil, err
	}
	return &CachedImage{Key: key, LocalPath: d.path(key), LocalURL: d.url(key)}, nil
}

// write goes through a temp file in the target directory and renames it
// into place, so readers never see a partial image.
func (d *DiskTier) write(key Key, fill func(io.Writer) error) error {
	p := d.path(key)
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, p); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Open returns the file for a public namespace/name pair, for serving.
func (d *DiskTier) Open(namespace, name string) (*os.File, error) {
	ns, n := safeSegment(namespace), safeSegment(name)
	if ns == "" || n == "" || !strings.HasSuffix(n, Ext) {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(d.dir, ns, n))
}

// safeSegment strips anything that could escape the cache directory.
func safeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "\\", "")
	s = strings.ReplaceAll(s, "..", "")
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// Package objectstore is the durable tier behind the preview cache: an
// S3-compatible bucket reached through minio-go.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultCacheControl is sent with every PUT (30 days).
const DefaultCacheControl = "max-age=2592000"

// ErrNotConfigured is returned by New when the bucket or endpoint is missing.
var ErrNotConfigured = errors.New("object store not configured")

// Gateway is the subset of object store operations the cache needs.
type Gateway interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	PublicURL(key string) string
}

// Options configures a Store.
type Options struct {
	Endpoint        string // host[:port], e.g. cos.ap-guangzhou.myqcloud.com
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	PublicDomain    string // optional custom domain, with or without scheme
	CacheControl    string
	PathStyle       bool // path-style addressing, for MinIO
}

// Store implements Gateway on top of a minio client.
type Store struct {
	client *minio.Client
	opts   Options
}

// New creates a Store. It does not contact the endpoint.
func New(opts Options) (*Store, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, ErrNotConfigured
	}
	if opts.CacheControl == "" {
		opts.CacheControl = DefaultCacheControl
	}

	lookup := minio.BucketLookupDNS
	if opts.PathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:       opts.UseSSL,
		Region:       opts.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}

	return &Store{client: client, opts: opts}, nil
}

// Exists reports whether key is present. A missing object is not an error.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.opts.Bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}

// Put uploads r under key with the configured cache-control hint.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	info, err := s.client.PutObject(ctx, s.opts.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: s.opts.CacheControl,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	slog.Debug("object stored", "bucket", s.opts.Bucket, "key", key, "size", info.Size)
	return nil
}

// Get opens key for streaming. The caller closes the reader.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.opts.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return obj, nil
}

// PublicURL returns the address at which key is publicly readable.
func (s *Store) PublicURL(key string) string {
	return PublicURL(s.opts, key)
}

// PublicURL builds the public address of key from opts without a client.
func PublicURL(opts Options, key string) string {
	key = strings.TrimLeft(key, "/")
	if d := strings.TrimRight(opts.PublicDomain, "/"); d != "" {
		if !strings.Contains(d, "://") {
			d = "https://" + d
		}
		return d + "/" + key
	}
	if opts.PathStyle {
		return schemeFor(opts) + opts.Endpoint + "/" + opts.Bucket + "/" + key
	}
	return schemeFor(opts) + opts.Bucket + "." + opts.Endpoint + "/" + key
}

func schemeFor(opts Options) string {
	if opts.UseSSL {
		return "https://"
	}
	return "http://"
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}

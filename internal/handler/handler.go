// Package handler exposes the preview resolver over HTTP.
package handler

import (
	"context"
	"os"

	"github.com/bookmarkd/api/internal/preview"
)

// Resolver is the part of preview.Resolver the handlers call.
type Resolver interface {
	Resolve(ctx context.Context, req preview.Request) preview.Result
	UploadImage(ctx context.Context, data []byte, contentType string) (preview.UploadResult, error)
}

// MediaStore opens cached images for serving.
type MediaStore interface {
	Open(namespace, name string) (*os.File, error)
}

// Handler serves the preview API.
type Handler struct {
	resolver      Resolver
	media         MediaStore
	maxUploadSize int64
}

// Dependencies holds all dependencies for the Handler. Media is nil when
// there is no disk tier.
type Dependencies struct {
	Resolver      Resolver
	Media         MediaStore
	MaxUploadSize int64
}

// New creates a new Handler with all dependencies
func New(deps Dependencies) *Handler {
	maxUpload := deps.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = preview.DefaultMaxUploadSize
	}
	return &Handler{
		resolver:      deps.Resolver,
		media:         deps.Media,
		maxUploadSize: maxUpload,
	}
}

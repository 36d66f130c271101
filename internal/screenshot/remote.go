package screenshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const maxRemoteImageSize = 10 << 20 // 10 MB

// RemoteOptions configures the screenshot API backend.
type RemoteOptions struct {
	Endpoint      string
	APIKey        string
	Quality       int
	RatePerMinute int
	Client        *http.Client
}

// Remote posts capture requests to a screenshot API that answers with the
// image bytes.
type Remote struct {
	endpoint string
	apiKey   string
	quality  int
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *breaker
}

// NewRemote creates a Remote backend. It is unavailable without an endpoint.
func NewRemote(opts RemoteOptions) *Remote {
	client := opts.Client
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	limit := rate.Inf
	if opts.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RatePerMinute))
	}

	return &Remote{
		endpoint: strings.TrimSpace(opts.Endpoint),
		apiKey:   opts.APIKey,
		quality:  quality,
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
		breaker:  newBreaker("remote", 3, 5*time.Minute),
	}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Available() bool { return r.endpoint != "" }

type remoteRequest struct {
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FullPage bool   `json:"fullPage"`
	Format   string `json:"format"`
	Quality  int    `json:"quality"`
}

// Capture asks the API for a viewport-sized JPEG of url.
func (r *Remote) Capture(ctx context.Context, url string, width, height int) ([]byte, error) {
	if err := r.breaker.allow(); err != nil {
		return nil, err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		r.breaker.abandon()
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	data, err := r.post(ctx, remoteRequest{
		URL:      url,
		Width:    width,
		Height:   height,
		FullPage: false,
		Format:   "jpeg",
		Quality:  r.quality,
	})
	if err != nil {
		// Caller cancellation says nothing about the backend's health.
		if errors.Is(ctx.Err(), context.Canceled) {
			r.breaker.abandon()
		} else {
			r.breaker.failure(err)
		}
		return nil, err
	}
	r.breaker.success()
	return data, nil
}

func (r *Remote) post(ctx context.Context, body remoteRequest) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/jpeg,image/*")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("screenshot API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading screenshot: %w", err)
	}
	if len(data) > maxRemoteImageSize {
		return nil, fmt.Errorf("screenshot exceeds %d bytes", maxRemoteImageSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("screenshot API returned an empty body")
	}
	return data, nil
}

package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bookmarkd/api/internal/preview"
)

func TestGeneratePreview(t *testing.T) {
	res := &fakeResolver{image: "https://bucket.store.test/previews/abc.jpg"}
	router := testRouter(New(Dependencies{Resolver: res}))

	req := httptest.NewRequest("POST", "/api/preview/generate", strings.NewReader(`{"url":" example.com/post ","title":"Saved"}`))
	w := do(t, router, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	got := decode[preview.Result](t, w)
	if got.PreviewImage != res.image {
		t.Errorf("previewImage = %q, want %q", got.PreviewImage, res.image)
	}
	if got.PageTitle != "Saved" {
		t.Errorf("pageTitle = %q, want %q", got.PageTitle, "Saved")
	}
	if len(res.requests) != 1 || res.requests[0].URL != "example.com/post" {
		t.Errorf("requests = %+v", res.requests)
	}
}

func TestGeneratePreview_SwatchShape(t *testing.T) {
	router := testRouter(New(Dependencies{Resolver: &fakeResolver{}}))

	w := do(t, router, httptest.NewRequest("POST", "/api/preview/generate", strings.NewReader(`{"url":"https://example.com"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := decode[map[string]any](t, w)
	if body["previewImage"] != "" {
		t.Errorf("previewImage = %v, want empty", body["previewImage"])
	}
	cp, ok := body["colorPreview"].(map[string]any)
	if !ok {
		t.Fatalf("colorPreview missing: %v", body)
	}
	for _, k := range []string{"backgroundColor", "textColor", "accentColor", "domain"} {
		if _, ok := cp[k]; !ok {
			t.Errorf("colorPreview.%s missing", k)
		}
	}
}

func TestGeneratePreview_SchemelessURLWithEmbeddedURL(t *testing.T) {
	res := &fakeResolver{}
	router := testRouter(New(Dependencies{Resolver: res}))

	body := `{"url":"example.com/redirect?to=https://other.org"}`
	w := do(t, router, httptest.NewRequest("POST", "/api/preview/generate", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(res.requests) != 1 {
		t.Errorf("requests = %+v, want one", res.requests)
	}
}

func TestGeneratePreview_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{"url":`, ErrCodeInvalidJSON},
		{"missing url", `{"title":"x"}`, ErrCodeValidationError},
		{"blank url", `{"url":"   "}`, ErrCodeValidationError},
		{"unsupported scheme", `{"url":"ftp://example.com/file"}`, ErrCodeValidationError},
		{"no host", `{"url":"https://"}`, ErrCodeValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &fakeResolver{}
			router := testRouter(New(Dependencies{Resolver: res}))

			w := do(t, router, httptest.NewRequest("POST", "/api/preview/generate", strings.NewReader(tt.body)))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if got := decode[ErrorResponse](t, w); got.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", got.Error.Code, tt.code)
			}
			if len(res.requests) != 0 {
				t.Error("resolver should not be called for a bad request")
			}
		})
	}
}

func TestGetPreview(t *testing.T) {
	res := &fakeResolver{}
	router := testRouter(New(Dependencies{Resolver: res}))

	w := do(t, router, httptest.NewRequest("GET", "/api/preview?url=https%3A%2F%2Fexample.com%2Fa%3Fb%3D1&title=Mine", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(res.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(res.requests))
	}
	if got := res.requests[0]; got.URL != "https://example.com/a?b=1" || got.KnownTitle != "Mine" {
		t.Errorf("request = %+v", got)
	}
}

func TestGetPreview_MissingURL(t *testing.T) {
	router := testRouter(New(Dependencies{Resolver: &fakeResolver{}}))

	w := do(t, router, httptest.NewRequest("GET", "/api/preview", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

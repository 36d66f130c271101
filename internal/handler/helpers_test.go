package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bookmarkd/api/internal/preview"
	"github.com/bookmarkd/api/internal/swatch"
)

// fakeResolver records requests and answers with a swatch, or with image
// when set.
type fakeResolver struct {
	image    string
	requests []preview.Request

	upload    preview.UploadResult
	uploadErr error
	uploaded  []byte
	ctype     string
}

func (f *fakeResolver) Resolve(_ context.Context, req preview.Request) preview.Result {
	f.requests = append(f.requests, req)
	if f.image != "" {
		return preview.Result{PreviewImage: f.image, PageTitle: req.KnownTitle}
	}
	cp := swatch.Generate(req.URL, req.KnownTitle)
	return preview.Result{PageTitle: req.KnownTitle, ColorPreview: &cp}
}

func (f *fakeResolver) UploadImage(_ context.Context, data []byte, contentType string) (preview.UploadResult, error) {
	f.uploaded = data
	f.ctype = contentType
	return f.upload, f.uploadErr
}

// testRouter mounts h the way the server does.
func testRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/preview/generate", h.GeneratePreview)
	r.Get("/api/preview", h.GetPreview)
	r.Post("/api/preview/upload", h.UploadPreview)
	r.Get("/media/{namespace}/{name}", h.ServeMedia)
	return r
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not valid JSON: %v\nbody: %s", err, w.Body.String())
	}
	return v
}

// multipartRequest builds an upload request with one file part.
func multipartRequest(t *testing.T, field, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="preview.png"`)
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/preview/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

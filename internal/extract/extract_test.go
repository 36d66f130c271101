package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testExtractor() *Extractor {
	return NewWithClient(&http.Client{Timeout: 2 * time.Second}, Options{Timeout: 2 * time.Second, AllowPrivate: true})
}

func htmlServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtract_OGShortCircuit(t *testing.T) {
	srv := htmlServer(t, `<html><head>
		<meta property="og:title" content="Launch Day">
		<meta property="og:image" content="/banner.jpg">
	</head><body>
		<img src="/content/hero.jpg" width="800" height="450">
	</body></html>`)

	page, err := testExtractor().Extract(context.Background(), srv.URL+"/post")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if want := srv.URL + "/banner.jpg"; page.Image != want {
		t.Errorf("image = %q, want %q", page.Image, want)
	}
	if !page.FromMeta {
		t.Error("expected image to come from meta")
	}
	if len(page.Candidates) != 0 {
		t.Errorf("expected no <img> scan, got %d candidates", len(page.Candidates))
	}
	if page.Title != "Launch Day" {
		t.Errorf("title = %q, want %q", page.Title, "Launch Day")
	}
}

func TestExtract_LogoOGImageFallsBackToScan(t *testing.T) {
	srv := htmlServer(t, `<html><head>
		<meta property="og:image" content="/static/site-logo.png">
		<meta name="twitter:image" content="/static/brand_mark.png">
	</head><body>
		<img src="/content/hero.jpg" width="800" height="450">
	</body></html>`)

	page, err := testExtractor().Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if page.FromMeta {
		t.Error("logo meta image should not short-circuit")
	}
	if want := srv.URL + "/content/hero.jpg"; page.Image != want {
		t.Errorf("image = %q, want %q", page.Image, want)
	}
}

func TestExtract_TwitterImage(t *testing.T) {
	srv := htmlServer(t, `<html><head>
		<meta name="twitter:image" content="https://cdn.example.net/card.jpg">
	</head><body></body></html>`)

	page, err := testExtractor().Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if page.Image != "https://cdn.example.net/card.jpg" {
		t.Errorf("image = %q", page.Image)
	}
}

func TestExtract_ProtocolRelativeMeta(t *testing.T) {
	srv := htmlServer(t, `<meta property="og:image" content="//cdn.example.net/a.jpg">`)

	page, err := testExtractor().Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if page.Image != "http://cdn.example.net/a.jpg" {
		t.Errorf("image = %q, want scheme of the page", page.Image)
	}
}

func TestExtract_TitleChain(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "og wins",
			body: `<head><meta property="og:title" content="OG"><meta name="twitter:title" content="TW"><title>T</title></head>`,
			want: "OG",
		},
		{
			name: "twitter before title",
			body: `<head><meta name="twitter:title" content="TW"><title>T</title></head>`,
			want: "TW",
		},
		{
			name: "title element",
			body: `<head><title>  Plain
				Title </title></head><body><h1>Heading</h1></body>`,
			want: "Plain Title",
		},
		{
			name: "h1 fallback",
			body: `<html><body><h1>Example</h1></body></html>`,
			want: "Example",
		},
		{
			name: "application name",
			body: `<head><meta name="application-name" content="App"></head><body></body>`,
			want: "App",
		},
		{
			name: "nothing",
			body: `<html><body><p>hi</p></body></html>`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := htmlServer(t, tt.body)
			page, err := testExtractor().Extract(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if page.Title != tt.want {
				t.Errorf("title = %q, want %q", page.Title, tt.want)
			}
		})
	}
}

func TestExtract_TitleEqualToHostUsesH1(t *testing.T) {
	page := parsePage(t, "https://example.com/", `<title>example.com</title><body><h1>Real Title</h1></body>`)
	if page.Title != "Real Title" {
		t.Errorf("title = %q, want %q", page.Title, "Real Title")
	}
}

func TestExtract_BaseHref(t *testing.T) {
	page := parsePage(t, "https://example.com/a/b", `<head><base href="https://static.example.com/root/"></head>
		<body><img src="img/hero.jpg" width="800" height="450"></body>`)
	if page.Image != "https://static.example.com/root/img/hero.jpg" {
		t.Errorf("image = %q", page.Image)
	}
}

func TestExtract_Errors(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()

	jsonSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer jsonSrv.Close()

	e := testExtractor()

	if _, err := e.Extract(context.Background(), notFound.URL); !errors.Is(err, ErrStatus) {
		t.Errorf("404: err = %v, want ErrStatus", err)
	}
	if _, err := e.Extract(context.Background(), jsonSrv.URL); !errors.Is(err, ErrNotHTML) {
		t.Errorf("json: err = %v, want ErrNotHTML", err)
	}
}

func TestExtract_BlocksPrivateAddresses(t *testing.T) {
	srv := htmlServer(t, `<title>secret</title>`)

	e := New(Options{Timeout: 2 * time.Second})
	_, err := e.Extract(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected private address to be refused")
	}
	if !strings.Contains(err.Error(), "private IP") {
		t.Errorf("err = %v, want private IP refusal", err)
	}
}

func TestFetchTitle(t *testing.T) {
	srv := htmlServer(t, `<html><head><title>Cached &amp; Fresh</title></head><body><title>ignored</title></body></html>`)

	title, err := testExtractor().FetchTitle(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchTitle: %v", err)
	}
	if title != "Cached & Fresh" {
		t.Errorf("title = %q, want %q", title, "Cached & Fresh")
	}
}

func TestParseHeadTitle_PrefersOG(t *testing.T) {
	got := parseHeadTitle(strings.NewReader(`<head><title>Plain</title><meta property="og:title" content="Social"></head>`))
	if got != "Social" {
		t.Errorf("title = %q, want %q", got, "Social")
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpegdata"))
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		case "/big.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(make([]byte, 2048))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := NewWithClient(&http.Client{}, Options{AllowPrivate: true, MaxImageSize: 1024})

	data, err := e.Download(context.Background(), srv.URL+"/ok.jpg")
	if err != nil || string(data) != "jpegdata" {
		t.Errorf("Download ok = %q, %v", data, err)
	}
	if _, err := e.Download(context.Background(), srv.URL+"/page"); !errors.Is(err, ErrNotImage) {
		t.Errorf("html: err = %v, want ErrNotImage", err)
	}
	if _, err := e.Download(context.Background(), srv.URL+"/big.jpg"); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("big: err = %v, want ErrImageTooLarge", err)
	}
	if _, err := e.Download(context.Background(), srv.URL+"/missing.jpg"); !errors.Is(err, ErrStatus) {
		t.Errorf("missing: err = %v, want ErrStatus", err)
	}
}

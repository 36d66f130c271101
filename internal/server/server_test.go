package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNew_TLSModes(t *testing.T) {
	tests := []struct {
		name          string
		opts          TLSOptions
		wantMode      string
		wantACME      bool
		wantChallenge bool
	}{
		{name: "empty", opts: TLSOptions{}, wantMode: "off"},
		{name: "off", opts: TLSOptions{Mode: "off"}, wantMode: "off"},
		{
			name:     "manual",
			opts:     TLSOptions{Mode: "manual", CertFile: "/path/to/cert.pem", KeyFile: "/path/to/key.pem"},
			wantMode: "manual",
		},
		{
			name:          "auto",
			opts:          TLSOptions{Mode: "auto", Domain: "bookmarks.example.com", Email: "admin@example.com"},
			wantMode:      "auto",
			wantACME:      true,
			wantChallenge: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.opts.Mode == "auto" {
				tt.opts.CacheDir = t.TempDir()
			}
			s := New(Options{Addr: "localhost:8443", Handler: http.NewServeMux(), TLS: tt.opts})

			if got := s.TLSMode(); got != tt.wantMode {
				t.Errorf("TLSMode() = %q, want %q", got, tt.wantMode)
			}
			// Manual mode loads certificates from files when serving.
			if hasTLS := s.http.TLSConfig != nil; hasTLS != tt.wantACME {
				t.Errorf("TLSConfig set = %v, want %v", hasTLS, tt.wantACME)
			}
			if hasACME := s.acme != nil; hasACME != tt.wantACME {
				t.Errorf("acme manager set = %v, want %v", hasACME, tt.wantACME)
			}
			if hasChallenge := s.challenge != nil; hasChallenge != tt.wantChallenge {
				t.Fatalf("challenge server set = %v, want %v", hasChallenge, tt.wantChallenge)
			}
			if tt.wantChallenge && s.challenge.Addr != ":80" {
				t.Errorf("challenge server on %s, want :80", s.challenge.Addr)
			}
		})
	}
}

func TestNew_Timeouts(t *testing.T) {
	s := New(Options{Addr: "[::1]:9090", Handler: http.NewServeMux()})
	if s.Addr() != "[::1]:9090" {
		t.Errorf("Addr() = %q", s.Addr())
	}
	if s.http.WriteTimeout != 90*time.Second {
		t.Errorf("default WriteTimeout = %v, want 90s", s.http.WriteTimeout)
	}

	s = New(Options{Handler: http.NewServeMux(), WriteTimeout: 3 * time.Minute})
	if s.http.WriteTimeout != 3*time.Minute {
		t.Errorf("WriteTimeout = %v, want 3m", s.http.WriteTimeout)
	}
}

func TestServe_Shutdown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "ok") })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := New(Options{Addr: ln.Addr().String(), Handler: mux})

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Serve after shutdown = %v, want nil", err)
	}
}

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

type TLSOptions struct {
	Mode     string // "off", "auto", "manual"
	CertFile string // manual mode
	KeyFile  string // manual mode
	Domain   string // auto mode
	Email    string // auto mode
	CacheDir string // auto mode
}

// Options configures a Server.
type Options struct {
	Addr    string
	Handler http.Handler
	TLS     TLSOptions
	// WriteTimeout must cover the slowest preview resolution. Zero means 90s.
	WriteTimeout time.Duration
}

type Server struct {
	http *http.Server
	tls  TLSOptions
	acme *autocert.Manager
	// challenge answers ACME http-01 requests on :80 in auto mode.
	challenge *http.Server
}

func New(opts Options) *Server {
	if opts.TLS.Mode == "" {
		opts.TLS.Mode = "off"
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 90 * time.Second
	}

	s := &Server{
		tls: opts.TLS,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           opts.Handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
	}
	if opts.TLS.Mode == "auto" {
		s.acme = &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(opts.TLS.Domain),
			Cache:      autocert.DirCache(opts.TLS.CacheDir),
			Email:      opts.TLS.Email,
		}
		s.http.TLSConfig = &tls.Config{GetCertificate: s.acme.GetCertificate, MinVersion: tls.VersionTLS12}
		s.challenge = &http.Server{
			Addr:         ":80",
			Handler:      s.acme.HTTPHandler(nil),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}
	return s
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. A clean shutdown returns nil.
func (s *Server) Serve(ln net.Listener) error {
	slog.Info("serving", "addr", ln.Addr().String(), "tls", s.tls.Mode, "domain", s.tls.Domain)

	var err error
	switch s.tls.Mode {
	case "auto":
		go func() {
			if err := s.challenge.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("ACME challenge server failed", "addr", s.challenge.Addr, "error", err)
			}
		}()
		err = s.http.ServeTLS(ln, "", "")
	case "manual":
		err = s.http.ServeTLS(ln, s.tls.CertFile, s.tls.KeyFile)
	default:
		err = s.http.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests on both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down server")
	var errs []error
	if s.challenge != nil {
		errs = append(errs, s.challenge.Shutdown(ctx))
	}
	errs = append(errs, s.http.Shutdown(ctx))
	return errors.Join(errs...)
}

func (s *Server) Addr() string { return s.http.Addr }

func (s *Server) TLSMode() string { return s.tls.Mode }

// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api serves the claim, series and brand operations over HTTP with
// a JSON body per response. Write routes sign with the configured wallet and
// are only mounted when one is available.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/blinklabs-io/snap/chain"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8080

	// HealthServiceName is reported as serving by the gRPC health endpoint
	HealthServiceName = "snap.v1.ClaimService"
)

type Config struct {
	Logger           *slog.Logger
	Claims           ClaimService
	Series           SeriesService
	Brands           BrandService
	Objects          ObjectReader
	Wallet           *chain.Wallet
	Auth             *Authenticator
	Host             string
	SocketPath       string
	TlsCertFilePath  string
	TlsKeyFilePath   string
	Port             uint
	// MaxInFlightPerIP limits concurrent /v1 requests per client, 0 for no limit
	MaxInFlightPerIP int
	ReuseAddress     bool
}

type Server struct {
	config   Config
	server   *http.Server
	listener net.Listener
	done     chan error
	mu       sync.Mutex
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = cfg.Logger.With("component", "api")
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return &Server{
		config: cfg,
	}
}

// Handler returns the complete HTTP handler, including the gRPC health
// endpoint
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(
		grpchealth.NewHandler(
			grpchealth.NewStaticChecker(HealthServiceName),
			connect.WithCompressMinBytes(1024),
		),
	)
	mux.Handle("/", newRouter(s.config))
	return mux
}

// Start opens the listener and serves in the background. Use Stop to shut
// the server down.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("api server already started")
	}
	listener, err := s.listen(ctx)
	if err != nil {
		return err
	}
	useTLS := s.config.TlsCertFilePath != "" && s.config.TlsKeyFilePath != ""
	handler := s.Handler()
	if !useTLS {
		// Use h2c so gRPC health checks work without TLS
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	s.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.listener = listener
	s.done = make(chan error, 1)
	if s.config.Wallet == nil {
		s.config.Logger.Warn("no wallet configured, write routes are disabled")
	} else if s.config.Auth == nil {
		s.config.Logger.Warn("no JWT key configured, write routes are unauthenticated")
	}
	s.config.Logger.Info(
		"starting API listener on " + listener.Addr().String(),
		"tls", useTLS,
	)
	go func(srv *http.Server, done chan<- error) {
		var err error
		if useTLS {
			err = srv.ServeTLS(
				listener,
				s.config.TlsCertFilePath,
				s.config.TlsKeyFilePath,
			)
		} else {
			err = srv.Serve(listener)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}(s.server, s.done)
	return nil
}

func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	if s.config.SocketPath != "" {
		// On Windows the socket path names a pipe
		if runtime.GOOS == "windows" {
			listener, err := createPipeListener(s.config.SocketPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open listening pipe: %w", err)
			}
			return listener, nil
		}
		var lc net.ListenConfig
		listener, err := lc.Listen(ctx, "unix", s.config.SocketPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open listening socket: %w", err)
		}
		return listener, nil
	}
	lc := net.ListenConfig{}
	if s.config.ReuseAddress {
		lc.Control = socketControl
	}
	listener, err := lc.Listen(
		ctx,
		"tcp",
		net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open listening socket: %w", err)
	}
	return listener, nil
}

// Addr returns the listening address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// until ctx is done
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	done := s.done
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.config.Logger.Debug("shutting down API server")
	err := srv.Shutdown(ctx)
	if serveErr := <-done; serveErr != nil {
		err = errors.Join(err, serveErr)
	}
	return err
}

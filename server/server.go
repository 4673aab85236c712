package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/chazu/blowhai/cache"
	"github.com/chazu/blowhai/compiler"
	"github.com/chazu/blowhai/host"
)

var log = commonlog.GetLogger("blowhai.server")

// CompileServer serves the compiler service over HTTP/1.1 and cleartext
// HTTP/2, speaking the Connect, gRPC and gRPC-Web protocols.
type CompileServer struct {
	service *CompileService
	runtime *host.Runtime
	mux     *http.ServeMux
}

// ServerOption configures a CompileServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	cache *cache.Cache
}

// WithCache makes the server consult and fill c.
func WithCache(c *cache.Cache) ServerOption {
	return func(cfg *serverConfig) { cfg.cache = c }
}

// New creates a CompileServer.
func New(opts compiler.Options, options ...ServerOption) *CompileServer {
	cfg := &serverConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	rt := host.NewRuntime(context.Background())
	s := &CompileServer{
		service: NewCompileService(opts, cfg.cache, rt),
		runtime: rt,
		mux:     http.NewServeMux(),
	}

	s.mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, s.service.Compile))
	s.mux.Handle(RunProcedure, connect.NewUnaryHandler(RunProcedure, s.service.Run))

	return s
}

// Handler returns the HTTP handler, with cleartext HTTP/2 support for gRPC
// clients.
func (s *CompileServer) Handler() http.Handler {
	return h2c.NewHandler(s.mux, &http2.Server{})
}

// ListenAndServe serves on addr until ctx is done.
// The address should be in the form "host:port" or ":port".
func (s *CompileServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *CompileServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("blowhai compile server listening on %s", ln.Addr())
	log.Infof("  Connect (HTTP/JSON): http://%s%s", ln.Addr(), CompileProcedure)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop releases the server's runtime.
func (s *CompileServer) Stop() {
	s.runtime.Close(context.Background())
}

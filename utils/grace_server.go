package utils

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Server wraps http.Server with signal-driven graceful shutdown. Hooks run once the
// in-flight requests have drained, in registration order.
type Server struct {
	*http.Server

	hooks        []func()
	signalChan   chan os.Signal
	shutdownChan chan struct{}
}

// NewServer creates a Server. The write timeout must outlast the slowest gateway call a
// handler makes, so callers pass it explicitly.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeout,
		},
		signalChan:   make(chan os.Signal, 1),
		shutdownChan: make(chan struct{}),
	}
}

// OnShutdown registers fn to run after the HTTP server has stopped.
func (srv *Server) OnShutdown(fn func()) {
	srv.hooks = append(srv.hooks, fn)
}

// ListenAndServe serves until SIGTERM or SIGINT, then drains in-flight requests.
func (srv *Server) ListenAndServe() error {
	signal.Notify(srv.signalChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(srv.signalChan)

	go srv.handleSignals()

	err := srv.Server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-srv.shutdownChan
		return nil
	}
	return err
}

func (srv *Server) handleSignals() {
	sig, ok := <-srv.signalChan
	if !ok {
		return
	}
	Sugar.Infof("received %s, draining requests", sig)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		Sugar.Errorf("HTTP server shutdown error: %v", err)
	} else {
		Sugar.Info("HTTP server stopped")
	}
	for _, fn := range srv.hooks {
		fn()
	}
	close(srv.shutdownChan)
}

// GraceServer serves handler on addr until a shutdown signal. writeTimeout is padded so
// a handler waiting on the gateway for gatewayTimeout still gets to answer.
func GraceServer(addr string, handler http.Handler, gatewayTimeout time.Duration, hooks ...func()) error {
	srv := NewServer(addr, handler, DefaultReadTimeout, gatewayTimeout*3+10*time.Second)
	for _, fn := range hooks {
		srv.OnShutdown(fn)
	}
	return srv.ListenAndServe()
}

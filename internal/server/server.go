// Package server exposes the session log over HTTP: a JSON API for sessions
// and records, plus SSE and WebSocket streams of live record changes.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/netlog/internal/broadcast"
	"github.com/zulandar/netlog/internal/netlog"
	"github.com/zulandar/netlog/internal/stream"
)

const (
	defaultActorHeader = "X-Netlog-User"
	defaultRoleHeader  = "X-Netlog-Role"
	shutdownTimeout    = 10 * time.Second
)

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Manager *netlog.Manager
	Hub     *broadcast.Hub
	Port    int
	Out     io.Writer
	Logger  logrus.FieldLogger

	// KeepAlive is the stream keep-alive interval.
	KeepAlive time.Duration
	// ActorHeader and RoleHeader name the trusted headers the upstream auth
	// proxy sets on each request.
	ActorHeader string
	RoleHeader  string

	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
}

// server carries the handlers' shared dependencies.
type server struct {
	manager     *netlog.Manager
	hub         *broadcast.Hub
	log         logrus.FieldLogger
	keepAlive   time.Duration
	actorHeader string
	roleHeader  string
	now         func() time.Time
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// closes open streams and shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	router, err := newRouter(opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
		// Streams end when ctx does, so Shutdown is not held open by them.
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr <- srv.Shutdown(sctx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "netlog listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	if err := <-shutdownErr; err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// newRouter validates opts and builds the gin engine.
func newRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Manager == nil {
		return nil, fmt.Errorf("server: manager is required")
	}
	if opts.Hub == nil {
		return nil, fmt.Errorf("server: hub is required")
	}
	s := &server{
		manager:     opts.Manager,
		hub:         opts.Hub,
		log:         opts.Logger,
		keepAlive:   opts.KeepAlive,
		actorHeader: opts.ActorHeader,
		roleHeader:  opts.RoleHeader,
		now:         opts.Now,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.keepAlive <= 0 {
		s.keepAlive = stream.DefaultKeepAlive
	}
	if s.actorHeader == "" {
		s.actorHeader = defaultActorHeader
	}
	if s.roleHeader == "" {
		s.roleHeader = defaultRoleHeader
	}
	if s.now == nil {
		s.now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))
	registerRoutes(router, s)
	return router, nil
}

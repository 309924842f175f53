// Package server runs glided's TCP accept loop: one goroutine per
// connection, sharing a single registry and staging store, with a
// bounded-wait graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ngpal/glide/internal/logfields"
	"github.com/ngpal/glide/internal/metrics"
	"github.com/ngpal/glide/internal/registry"
	"github.com/ngpal/glide/internal/session"
	"github.com/ngpal/glide/internal/staging"
)

// Server accepts connections on a listener and runs one session per
// connection against a shared registry and staging store.
type Server struct {
	Addr            string
	StagingRoot     string
	ShutdownTimeout time.Duration
	SessionConfig   session.Config
	Logger          *slog.Logger
	Metrics         metrics.ServerMetrics

	registry *registry.Registry
	staging  *staging.Store

	wg sync.WaitGroup
}

// New returns a Server ready to Run. The registry and staging store are
// created here and passed explicitly into every session — no hidden
// singletons.
func New(addr, stagingRoot string, shutdownTimeout time.Duration, cfg session.Config, logger *slog.Logger, m metrics.ServerMetrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Addr:            addr,
		StagingRoot:     stagingRoot,
		ShutdownTimeout: shutdownTimeout,
		SessionConfig:   cfg,
		Logger:          logger,
		Metrics:         m,
		registry:        registry.New(),
		staging:         staging.New(stagingRoot),
	}
}

// Run listens on s.Addr and accepts connections until ctx is canceled,
// then waits up to ShutdownTimeout for in-flight sessions to finish.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.Addr, err)
	}
	s.Logger.Info("listening", "addr", lis.Addr().String())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return lis.Close()
	})

	g.Go(func() error {
		return s.acceptLoop(gctx, lis)
	})

	err = g.Wait()
	s.Logger.Info("accept loop stopped, waiting for in-flight sessions", "timeout", s.ShutdownTimeout)

	if s.waitWithTimeout(s.ShutdownTimeout) {
		s.Logger.Info("graceful shutdown complete")
	} else {
		s.Logger.Warn("shutdown timeout elapsed with sessions still running")
	}

	if err != nil && !errors.Is(err, context.Canceled) && !isUseOfClosedConn(err) {
		return err
	}
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, lis net.Listener) error {
	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	id := uuid.New().String()
	logger := s.Logger.With(logfields.SessionID, id, logfields.RemoteAddr, conn.RemoteAddr().String())

	sess := session.New(conn, s.registry, s.staging, s.SessionConfig, logger, s.Metrics)
	if err := sess.Run(ctx); err != nil {
		logger.Debug("session ended", logfields.Err, err)
	}
}

// waitWithTimeout waits for all in-flight sessions to finish, up to d.
// It reports whether every session finished before the deadline.
func (s *Server) waitWithTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

func isUseOfClosedConn(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

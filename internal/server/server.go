// Package server implements the TCP lease server: accept loop, bounded
// worker pool, and the one-request-one-response connection protocol.
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
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"leasegate/internal/config"
	"leasegate/internal/infrastructure"
	"leasegate/internal/license"
	"leasegate/internal/protocol"
)

// Server accepts lease requests over TCP. Each accepted connection is
// handled by a worker drawn from a bounded pool; acquiring a slot
// blocks the accept loop, which gives back-pressure instead of
// unbounded goroutine growth. The server never holds the lease table
// lock across network I/O: the table lock lives entirely inside
// TryIssue.
type Server struct {
	cfg     config.ServerConfig
	table   *license.Table
	metrics *Metrics
	logger  *slog.Logger

	listener net.Listener
	workers  *semaphore.Weighted
	limiter  *rate.Limiter

	baseCtx    context.Context
	cancel     context.CancelFunc
	inFlight   sync.WaitGroup
	acceptDone chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates a lease server. The table's reclaimer lifecycle is owned
// by the server: Shutdown stops it after in-flight workers drain.
func New(cfg config.ServerConfig, table *license.Table, metrics *Metrics, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		table:      table,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "lease_server")),
		workers:    semaphore.NewWeighted(int64(cfg.WorkerPoolSize)),
		acceptDone: make(chan struct{}),
	}
	if cfg.AcceptRateLimit.Enabled {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRateLimit.RPS), cfg.AcceptRateLimit.Burst)
	}
	return s
}

// Start binds the listen socket and launches the accept loop. A bind
// failure is returned to the caller and is fatal; everything after a
// successful bind is handled internally.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("server already started")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to bind port %d: %w", s.cfg.Port, err)
	}
	s.listener = listener
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.started = true

	s.logger.Info("lease server listening",
		slog.String("addr", listener.Addr().String()),
		slog.Int("worker_pool_size", s.cfg.WorkerPoolSize))

	go s.acceptLoop()
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting new connections, waits for in-flight
// workers up to the context deadline, then stops the table's
// reclaimer.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	listener := s.listener
	s.mu.Unlock()

	s.cancel()
	if err := listener.Close(); err != nil {
		s.logger.Warn("error closing listener", slog.String("error", err.Error()))
	}
	<-s.acceptDone

	drained := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = fmt.Errorf("shutdown grace period elapsed with workers in flight: %w", ctx.Err())
	}

	s.table.Stop()
	s.logger.Info("lease server stopped")
	return err
}

func (s *Server) acceptLoop() {
	defer close(s.acceptDone)

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(s.baseCtx); err != nil {
				return
			}
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.baseCtx.Err() != nil {
				return
			}
			// Transient accept failure: keep serving other connections.
			s.logger.Error("accept failed", slog.String("error", err.Error()))
			continue
		}

		if err := s.workers.Acquire(s.baseCtx, 1); err != nil {
			conn.Close()
			return
		}

		s.inFlight.Add(1)
		go func() {
			defer s.inFlight.Done()
			defer s.workers.Release(1)
			s.handleConn(conn)
		}()
	}
}

// handleConn runs the whole connection protocol: read one framed
// request, act on it, write one framed response, close.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	ctx := infrastructure.WithConnID(s.baseCtx, uuid.NewString())
	s.metrics.InFlight.Inc()
	defer s.metrics.InFlight.Dec()

	if s.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}

	req, err := protocol.ReadRequest(conn)
	if err != nil {
		// A malformed or truncated frame kills this connection only.
		s.metrics.Requests.WithLabelValues(outcomeDecodeError).Inc()
		s.logger.WarnContext(ctx, "failed to read request",
			slog.String("remote_addr", conn.RemoteAddr().String()),
			slog.String("error", err.Error()))
		return
	}

	if req.IsStop() {
		s.handleStop(ctx, conn, req)
		return
	}

	outcome := s.table.TryIssue(ctx, req.Holder, req.Key)
	s.countOutcome(outcome)

	if s.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if err := protocol.WriteResponse(conn, responseFor(outcome)); err != nil {
		s.logger.WarnContext(ctx, "failed to write response",
			slog.String("holder", req.Holder),
			slog.String("error", err.Error()))
	}
}

// handleStop acknowledges a client disconnect notice. The request never
// reaches the lease table, so it cannot produce an invalid-key outcome.
func (s *Server) handleStop(ctx context.Context, conn net.Conn, req protocol.Request) {
	s.metrics.Requests.WithLabelValues(outcomeStop).Inc()
	s.logger.InfoContext(ctx, "client disconnect notice",
		slog.String("holder", req.Holder),
		slog.String("remote_addr", conn.RemoteAddr().String()))

	if s.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	goodbye := protocol.Response{
		Holder: "Server",
		Valid:  false,
		Reason: protocol.ReasonGoodbye,
	}
	if err := protocol.WriteResponse(conn, goodbye); err != nil {
		s.logger.DebugContext(ctx, "failed to write goodbye",
			slog.String("error", err.Error()))
	}
}

func (s *Server) countOutcome(outcome license.Outcome) {
	switch outcome.Kind {
	case license.OutcomeIssued:
		s.metrics.Requests.WithLabelValues(outcomeIssued).Inc()
	case license.OutcomeAlreadyInUse:
		s.metrics.Requests.WithLabelValues(outcomeInUse).Inc()
	case license.OutcomeNotFound:
		s.metrics.Requests.WithLabelValues(outcomeNotFound).Inc()
	case license.OutcomeInvalidKey:
		s.metrics.Requests.WithLabelValues(outcomeInvalidKey).Inc()
	}
}

// responseFor translates a table outcome into the wire response.
func responseFor(outcome license.Outcome) protocol.Response {
	resp := protocol.Response{Holder: outcome.Holder, Valid: outcome.Valid()}
	switch outcome.Kind {
	case license.OutcomeIssued:
		resp.Reason = protocol.ReasonIssued
	case license.OutcomeAlreadyInUse:
		resp.Reason = protocol.ReasonAlreadyInUse
	case license.OutcomeNotFound:
		resp.Reason = protocol.ReasonNotFound
	case license.OutcomeInvalidKey:
		resp.Reason = protocol.ReasonInvalidKey
	}
	if !outcome.Expiry.IsZero() {
		expiry := outcome.Expiry
		resp.Expiry = &expiry
	}
	return resp
}

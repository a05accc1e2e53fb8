// Package client implements the lease client: a token cache and a
// single-flight renewal scheduler that keeps a license token fresh by
// re-requesting it shortly before expiry.
//
// The scheduler moves through Idle -> Requesting -> Scheduled ->
// Requesting -> ... with a terminal Stopped. A successful outcome
// (issued or already-in-use) arms a one-shot renewal timer against the
// reported expiry; a terminal failure (unknown holder, bad key, any
// transport fault) caches the failure token and arms nothing, so a dead
// server is never hammered in a retry loop.
package client

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	apperrors "leasegate/internal/errors"
	"leasegate/internal/protocol"
)

const (
	// DefaultDialTimeout bounds the TCP connect of one round trip.
	DefaultDialTimeout = 5 * time.Second
	// DefaultIOTimeout bounds the framed read/write of one round trip.
	DefaultIOTimeout = 10 * time.Second
	// DefaultRenewalLead is how long before expiry the renewal fires.
	DefaultRenewalLead = time.Second
	// minRenewalDelay is the slack added past expiry when less than the
	// renewal lead remains, so the timer never arms a hot loop.
	minRenewalDelay = 10 * time.Millisecond
)

// Config carries the client's connection and identity settings.
type Config struct {
	// Address is the server's host:port.
	Address string
	// Holder is the license holder identity to request for.
	Holder string
	// Key is the credential for Holder.
	Key string

	DialTimeout time.Duration
	IOTimeout   time.Duration
	RenewalLead time.Duration
}

// Client holds the token cache and renewal scheduler for one holder
// identity against one server. At most one request is in flight at any
// moment (single-flight); the renewal timer and manual RequestNow calls
// share that flight slot.
type Client struct {
	logger *slog.Logger

	dialTimeout time.Duration
	ioTimeout   time.Duration
	renewalLead time.Duration

	// now and dial are swapped out by tests.
	now  func() time.Time
	dial func(address string, timeout time.Duration) (net.Conn, error)

	mu       sync.Mutex
	address  string
	holder   string
	key      string
	token    *Token
	inFlight bool
	timer    *time.Timer
	stopped  bool
}

// New creates a client. It performs no network activity until
// RequestNow or GetToken is called.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = DefaultIOTimeout
	}
	if cfg.RenewalLead <= 0 {
		cfg.RenewalLead = DefaultRenewalLead
	}
	return &Client{
		logger:      logger.With(slog.String("component", "lease_client"), slog.String("holder", cfg.Holder)),
		dialTimeout: cfg.DialTimeout,
		ioTimeout:   cfg.IOTimeout,
		renewalLead: cfg.RenewalLead,
		now:         time.Now,
		dial: func(address string, timeout time.Duration) (net.Conn, error) {
			return net.DialTimeout("tcp", address, timeout)
		},
		address: cfg.Address,
		holder:  cfg.Holder,
		key:     cfg.Key,
	}
}

// Current returns the cached token without any network activity. Nil
// until the first request completes or after Stop.
func (c *Client) Current() *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// TokenValid reports whether the cached token grants a license window
// right now. No network round trip.
func (c *Client) TokenValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token.UsableAt(c.now())
}

// GetToken returns a token for the holder, kicking off a background
// request when the cache is stale. It returns nil once a transport
// failure has been recorded: the caller must RequestNow explicitly to
// retry, so an unreachable server is not called on every GetToken.
func (c *Client) GetToken() *Token {
	c.mu.Lock()
	token := c.token
	stale := !token.UsableAt(c.now())
	c.mu.Unlock()

	if token.transportFailure() {
		c.logger.Warn("not requesting token after transport failure",
			slog.String("reason", token.Reason))
		return nil
	}
	if stale {
		c.RequestNow()
	}
	return c.Current()
}

// RequestNow performs one full round trip off the caller's execution
// path. Completion replaces the cached token and, on a valid outcome,
// re-arms the renewal timer. Calls while a request is already in flight
// are dropped: at most one request per client instance at a time.
func (c *Client) RequestNow() {
	c.mu.Lock()
	if c.stopped || c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	address, holder, key := c.address, c.holder, c.key
	c.mu.Unlock()

	go func() {
		token := c.roundTrip(address, holder, key)
		c.complete(token)
	}()
}

// Stop cancels any armed renewal timer, best-effort notifies the server
// with the disconnect marker, and clears the cached token and identity.
// Safe to call with no timer armed, and more than once. Any round trip
// still outstanding when Stop is called completes without rearming.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	address, holder := c.address, c.holder
	c.token = nil
	c.address = ""
	c.holder = ""
	c.key = ""
	c.mu.Unlock()

	if address != "" {
		c.sendStop(address, holder)
	}
	c.logger.Info("lease client stopped")
}

// roundTrip runs one connect/send/receive cycle and always returns a
// token; every transport fault maps to a synthetic failure token, never
// an error or a panic.
func (c *Client) roundTrip(address, holder, key string) *Token {
	conn, err := c.dial(address, c.dialTimeout)
	if err != nil {
		c.logger.Warn("failed to connect to lease server",
			slog.String("address", address),
			slog.String("error", err.Error()))
		return failureToken(reasonForError(err))
	}
	defer conn.Close()
	conn.SetDeadline(c.now().Add(c.ioTimeout))

	if err := protocol.WriteRequest(conn, protocol.Request{Holder: holder, Key: key}); err != nil {
		c.logger.Warn("failed to send lease request", slog.String("error", err.Error()))
		return failureToken(reasonForError(err))
	}

	resp, err := protocol.ReadResponse(conn)
	if err != nil {
		c.logger.Warn("failed to read lease response", slog.String("error", err.Error()))
		return failureToken(reasonForError(err))
	}

	return &Token{Valid: resp.Valid, Reason: resp.Reason, Expiry: resp.Expiry}
}

// complete installs the token from a finished round trip and re-arms
// the renewal timer when the token carries a future expiry.
func (c *Client) complete(token *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false
	if c.stopped {
		return
	}
	c.token = token

	now := c.now()
	if !token.UsableAt(now) {
		c.logger.Warn("token not renewed automatically",
			slog.String("reason", token.Reason))
		return
	}

	delay := token.Expiry.Sub(now) - c.renewalLead
	if delay < minRenewalDelay {
		// Less than the lead remains, which is the steady state after an
		// early renewal came back already-in-use with the same expiry.
		// Firing again inside the window would just repeat that answer,
		// so wait until the lease has actually lapsed.
		delay = token.Expiry.Sub(now) + minRenewalDelay
	}
	c.timer = time.AfterFunc(delay, c.onRenewalTimer)
	c.logger.Info("token updated",
		slog.String("reason", token.Reason),
		slog.Time("expiry", *token.Expiry),
		slog.Duration("renewal_in", delay))
}

// onRenewalTimer fires the scheduled renewal. The single-flight check
// in RequestNow keeps it from overlapping a manual request.
func (c *Client) onRenewalTimer() {
	c.mu.Lock()
	c.timer = nil
	stopped := c.stopped
	c.mu.Unlock()

	if stopped {
		return
	}
	c.RequestNow()
}

// sendStop performs the best-effort disconnect notice.
func (c *Client) sendStop(address, holder string) {
	conn, err := c.dial(address, c.dialTimeout)
	if err != nil {
		c.logger.Debug("could not send disconnect notice", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetDeadline(c.now().Add(c.ioTimeout))

	if err := protocol.WriteRequest(conn, protocol.Request{Holder: holder, Key: protocol.StopMarker}); err != nil {
		c.logger.Debug("could not send disconnect notice", slog.String("error", err.Error()))
		return
	}
	// The goodbye acknowledgement is read and dropped.
	protocol.ReadResponse(conn)
}

// reasonForError maps a transport fault to the synthetic reason
// vocabulary the original clients expect.
func reasonForError(err error) string {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, protocol.ErrEmptyFrame):
		return protocol.ReasonEmptyResponse
	case errors.Is(err, io.EOF):
		// Orderly close before any response bytes.
		return protocol.ReasonEmptyResponse
	case errors.Is(err, syscall.ECONNREFUSED):
		return protocol.ReasonServerNotRunning
	case errors.Is(err, syscall.ECONNRESET):
		return protocol.ReasonConnectionReset
	case errors.As(err, &appErr) && appErr.Type == apperrors.ErrTypeParsing:
		return protocol.ReasonInvalidJSON
	}
	return protocol.ReasonConnectionError
}

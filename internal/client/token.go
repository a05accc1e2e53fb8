package client

import (
	"time"

	apperrors "leasegate/internal/errors"
	"leasegate/internal/protocol"
)

// Token is the client-side record of the last lease outcome. Tokens are
// immutable: every completed request replaces the cached token
// wholesale, never mutates it.
type Token struct {
	Valid  bool
	Reason string
	Expiry *time.Time
}

// UsableAt reports whether the token grants a license window covering
// the given instant. The comparison is plain wall-clock on both ends
// with no skew tolerance; deployments with drifting clocks will see a
// lease expire early or late by the drift.
func (t *Token) UsableAt(now time.Time) bool {
	return t != nil && t.Valid && t.Expiry != nil && t.Expiry.After(now)
}

// Err maps a rejected token to the error taxonomy: nil while the token
// records a grant, a not-found error for an unknown holder, a network
// error for transport failures, and a license error for the remaining
// server verdicts.
func (t *Token) Err() error {
	switch {
	case t == nil || t.Valid:
		return nil
	case t.Reason == protocol.ReasonNotFound:
		return apperrors.NewNotFoundError("holder")
	case t.transportFailure():
		return apperrors.NewNetworkError(t.Reason, nil)
	default:
		return apperrors.NewLicenseError(t.Reason, nil)
	}
}

// transportFailure reports whether the token records a connection-level
// failure rather than a server verdict. Once one is cached, the client
// stops auto-requesting until the caller explicitly retries.
func (t *Token) transportFailure() bool {
	if t == nil {
		return false
	}
	switch t.Reason {
	case protocol.ReasonServerNotRunning,
		protocol.ReasonConnectionError,
		protocol.ReasonConnectionReset,
		protocol.ReasonInvalidJSON,
		protocol.ReasonEmptyResponse:
		return true
	}
	return false
}

func failureToken(reason string) *Token {
	return &Token{Valid: false, Reason: reason}
}

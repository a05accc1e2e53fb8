// Package protocol defines the leasegate wire format: length-prefixed
// JSON frames carrying one Request or Response per connection.
//
// Each frame is a 4-byte big-endian payload length followed by a UTF-8
// JSON payload. The prefix makes partial reads and writes composable;
// readers block until the full frame arrives or the connection closes.
// Field names are pinned to the historic wire contract
// (license_user_name, license_key, license_valid, description, expired)
// so existing clients keep working.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	apperrors "leasegate/internal/errors"
)

// ErrEmptyFrame reports a zero-length payload where a message was
// expected. Clients surface it with a distinct reason from malformed
// JSON.
var ErrEmptyFrame = errors.New("empty frame")

// StopMarker in a request's key field is a client-initiated disconnect
// notice, not a lease request. The server acknowledges it without
// touching the lease table.
const StopMarker = "STOP"

// Reason strings returned by the server. These are a stable vocabulary
// consumed by clients; do not reword them.
const (
	ReasonIssued       = "License issued"
	ReasonAlreadyInUse = "License already in use"
	ReasonNotFound     = "Token not found"
	ReasonInvalidKey   = "Invalid key"
	ReasonGoodbye      = "Connection with server has been closed."
)

// Client-local synthetic reasons for transport failures. Never sent on
// the wire; they fill the token's reason when no response arrived.
const (
	ReasonServerNotRunning = "Server not running"
	ReasonConnectionError  = "Connection error"
	ReasonConnectionReset  = "Connection forcibly closed"
	ReasonInvalidJSON      = "Invalid JSON response"
	ReasonEmptyResponse    = "Empty response from server"
)

// frameHeaderLength is the fixed size of the length prefix.
const frameHeaderLength = 4

// MaxFrameLength bounds a frame payload. Lease messages are a few
// hundred bytes; anything near the limit is a broken or hostile peer.
const MaxFrameLength = 1 << 20

// Request asks the server for a lease on behalf of a holder.
type Request struct {
	Holder string `json:"license_user_name"`
	Key    string `json:"license_key"`
}

// IsStop reports whether the request is a disconnect notice.
func (r Request) IsStop() bool {
	return r.Key == StopMarker
}

// Response reports a lease outcome. Expired is nil when no lease window
// applies (rejections and the goodbye acknowledgement).
type Response struct {
	Holder string     `json:"license_user_name"`
	Valid  bool       `json:"license_valid"`
	Reason string     `json:"description"`
	Expiry *time.Time `json:"expired"`
}

// WriteFrame writes one length-prefixed payload to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLength {
		return apperrors.NewValidationError(
			fmt.Sprintf("frame payload %d bytes exceeds maximum %d", len(payload), MaxFrameLength))
	}
	var header [frameHeaderLength]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return apperrors.NewNetworkError("write frame header", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return apperrors.NewNetworkError("write frame payload", err)
		}
	}
	return nil
}

// ReadFrame reads one length-prefixed payload from r, blocking until
// the whole frame is available or the stream ends.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, apperrors.NewNetworkError("read frame header", err)
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameLength {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("frame length %d exceeds maximum %d", length, MaxFrameLength), nil)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, apperrors.NewNetworkError("read frame payload", err)
		}
	}
	return payload, nil
}

// WriteRequest encodes and frames a request.
func WriteRequest(w io.Writer, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return apperrors.NewParsingError("encode request", err)
	}
	return WriteFrame(w, payload)
}

// ReadRequest reads and decodes one framed request.
func ReadRequest(r io.Reader) (Request, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return Request{}, err
	}
	if len(payload) == 0 {
		return Request{}, apperrors.NewParsingError("empty request frame", ErrEmptyFrame)
	}
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, apperrors.NewParsingError("decode request", err)
	}
	return req, nil
}

// WriteResponse encodes and frames a response.
func WriteResponse(w io.Writer, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return apperrors.NewParsingError("encode response", err)
	}
	return WriteFrame(w, payload)
}

// ReadResponse reads and decodes one framed response. An empty frame is
// reported as a parsing error wrapping ErrEmptyFrame, distinct from
// malformed JSON, so the client can surface the historic "empty
// response" reason.
func ReadResponse(r io.Reader) (Response, error) {
	payload, err := ReadFrame(r)
	if err != nil {
		return Response{}, err
	}
	if len(payload) == 0 {
		return Response{}, apperrors.NewParsingError("empty response frame", ErrEmptyFrame)
	}
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return Response{}, apperrors.NewParsingError("decode response", err)
	}
	return resp, nil
}

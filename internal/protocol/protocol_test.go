package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "leasegate/internal/errors"
)

func TestRequest_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"lease request", Request{Holder: "alice", Key: "6384e2b2184bcbf58eccf10ca7a6563c"}},
		{"stop notice", Request{Holder: "alice", Key: StopMarker}},
		{"empty fields", Request{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteRequest(&buf, tt.req))

			got, err := ReadRequest(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.req, got)
		})
	}
}

func TestResponse_RoundTrip(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	tests := []struct {
		name string
		resp Response
	}{
		{"issued", Response{Holder: "alice", Valid: true, Reason: ReasonIssued, Expiry: &expiry}},
		{"already in use", Response{Holder: "alice", Valid: true, Reason: ReasonAlreadyInUse, Expiry: &expiry}},
		{"not found, nil expiry", Response{Holder: "bob", Valid: false, Reason: ReasonNotFound}},
		{"invalid key", Response{Holder: "alice", Valid: false, Reason: ReasonInvalidKey}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteResponse(&buf, tt.resp))

			got, err := ReadResponse(&buf)
			require.NoError(t, err)
			if tt.resp.Expiry != nil {
				require.NotNil(t, got.Expiry)
				assert.True(t, tt.resp.Expiry.Equal(*got.Expiry))
				got.Expiry, tt.resp.Expiry = nil, nil
			}
			assert.Equal(t, tt.resp, got)
		})
	}
}

func TestWireFieldNames(t *testing.T) {
	// The JSON field names are the historic wire contract.
	var buf bytes.Buffer
	require.NoError(t, WriteRequest(&buf, Request{Holder: "alice", Key: "k"}))

	payload, err := ReadFrame(&buf)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Contains(t, raw, "license_user_name")
	assert.Contains(t, raw, "license_key")

	buf.Reset()
	require.NoError(t, WriteResponse(&buf, Response{Holder: "alice", Valid: false, Reason: ReasonNotFound}))
	payload, err = ReadFrame(&buf)
	require.NoError(t, err)

	raw = nil
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Contains(t, raw, "license_valid")
	assert.Contains(t, raw, "description")
	assert.Contains(t, raw, "expired")
	assert.Nil(t, raw["expired"])
}

func TestReadFrame_PartialDelivery(t *testing.T) {
	// A frame split across many small writes must reassemble.
	var wire bytes.Buffer
	require.NoError(t, WriteResponse(&wire, Response{Holder: "alice", Valid: true, Reason: ReasonIssued}))

	client, server := net.Pipe()
	defer client.Close()

	go func() {
		defer server.Close()
		data := wire.Bytes()
		for _, b := range data {
			if _, err := server.Write([]byte{b}); err != nil {
				return
			}
		}
	}()

	resp, err := ReadResponse(client)
	require.NoError(t, err)
	assert.Equal(t, ReasonIssued, resp.Reason)
}

func TestReadFrame_Truncated(t *testing.T) {
	var wire bytes.Buffer
	require.NoError(t, WriteRequest(&wire, Request{Holder: "alice", Key: "k"}))

	truncated := wire.Bytes()[:wire.Len()-3]
	_, err := ReadRequest(bytes.NewReader(truncated))
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadFrame_OversizedLength(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], MaxFrameLength+1)

	_, err := ReadFrame(bytes.NewReader(header[:]))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeParsing, appErr.Type)
}

func TestWriteFrame_OversizedPayload(t *testing.T) {
	err := WriteFrame(io.Discard, make([]byte, MaxFrameLength+1))
	require.Error(t, err)
}

func TestReadResponse_MalformedJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("{not json")))

	_, err := ReadResponse(&buf)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeParsing, appErr.Type)
	assert.False(t, errors.Is(err, ErrEmptyFrame))
}

func TestReadResponse_EmptyFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil))

	_, err := ReadResponse(&buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyFrame)
}

func TestRequest_IsStop(t *testing.T) {
	assert.True(t, Request{Holder: "alice", Key: "STOP"}.IsStop())
	assert.False(t, Request{Holder: "alice", Key: "stop"}.IsStop())
	assert.False(t, Request{Holder: "alice", Key: ""}.IsStop())
}

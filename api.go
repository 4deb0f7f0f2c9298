// Package wulfpack moves typed protocol messages across the HTTP boundary of a
// serverless backend.
//
// A message travels either as structured text (JSON, "application/json") or as
// compact binary (Protocol Buffers wire format, "application/x-protobuf"). The
// representation is negotiated from request headers: Content-Type decides how a
// request body is read, Accept (falling back to Content-Type) decides how a
// response body is written. Binary payloads larger than CompressionThreshold are
// wrapped in a Snappy block and announced with Content-Encoding.
//
// The core (Wire, the negotiator and the compression envelopes) is a set of pure
// transforms and is safe for concurrent use. Endpoint wraps a business function
// in a processing pipeline that reads the request, calls the function and writes
// the response.
package wulfpack

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/textproto"
	"slices"
	"strings"

	"github.com/zoobzio/capitan"
)

// Header names consumed and produced by the wire layer.
const (
	HeaderContentType     = "Content-Type"
	HeaderAccept          = "Accept"
	HeaderContentEncoding = "Content-Encoding"
	HeaderRequestID       = "X-Request-Id"
)

// Sentinel errors.
var (
	// ErrUnsupportedMessage is returned when a value offers no encoding for the requested format.
	ErrUnsupportedMessage = errors.New("wulfpack: message does not support format")

	// ErrInvalidUTF8 is returned when a body declared as JSON is not valid UTF-8 text.
	ErrInvalidUTF8 = errors.New("wulfpack: invalid UTF-8 for JSON")
)

// Metadata holds message headers.
// Lookups are case-insensitive; transports deliver header names in whatever case they like.
type Metadata map[string]string

// Get returns the value stored under name, ignoring case.
func (m Metadata) Get(name string) string {
	v, _ := m.Lookup(name)
	return v
}

// Lookup returns the value stored under name and whether it was present, ignoring case.
// The canonical key wins over other spellings; among those the lowest key in
// byte order wins.
func (m Metadata) Lookup(name string) (string, bool) {
	if v, ok := m[textproto.CanonicalMIMEHeaderKey(name)]; ok {
		return v, true
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if strings.EqualFold(k, name) {
			return m[k], true
		}
	}
	return "", false
}

// Has reports whether name is present, ignoring case.
func (m Metadata) Has(name string) bool {
	_, ok := m.Lookup(name)
	return ok
}

// Set stores value under the canonical form of name, replacing any entry that differs only in case.
func (m Metadata) Set(name, value string) {
	m.Del(name)
	m[textproto.CanonicalMIMEHeaderKey(name)] = value
}

// Del removes every entry matching name, ignoring case.
func (m Metadata) Del(name string) {
	for k := range m {
		if strings.EqualFold(k, name) {
			delete(m, k)
		}
	}
}

// Clone returns a shallow copy, or a new map if m is nil.
func (m Metadata) Clone() Metadata {
	return copyMetadata(m)
}

// Request is the byte-oriented view of an inbound HTTP request.
type Request struct {
	// Body is the raw request payload. Empty for bodiless requests.
	Body []byte

	// Binary is true when the transport delivered Body as binary data
	// (base64 encoded on API Gateway) rather than as text.
	Binary bool

	// Metadata contains the request headers.
	Metadata Metadata
}

// Response is the byte-oriented view of an outbound HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Binary     bool
	Metadata   Metadata
}

// DecodeError reports a body that could not be turned into a message:
// malformed text, malformed binary framing, or a failed decompression.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wulfpack: decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a message that could not be serialized.
// For well-formed messages this indicates a programming error.
type EncodeError struct {
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("wulfpack: encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Error signals and types for observability.
// Hook into ErrorSignal to receive notifications of operational failures.
var (
	// ErrorSignal is emitted when an endpoint fails to read, handle or write a message.
	ErrorSignal = capitan.NewSignal("wulfpack.error", "Wulfpack operational error")

	// ErrorKey extracts Error from events on ErrorSignal.
	ErrorKey = capitan.NewKey[Error]("error", "wulfpack.Error")
)

// Error represents an operational error in an endpoint.
type Error struct {
	// Operation is the stage that failed: "read", "handle", "write", or
	// "cognito" for lifecycle event handling.
	Operation string `json:"operation"`

	// Endpoint is the name of the endpoint involved, or the trigger source
	// of a lifecycle event.
	Endpoint string `json:"endpoint"`

	// Err is the error message.
	Err string `json:"error"`

	// StatusCode is the HTTP status returned to the caller.
	StatusCode int `json:"status_code"`

	// RequestID correlates the failure with the response header.
	RequestID string `json:"request_id,omitempty"`
}

type metadataKey struct{}

// ContextWithMetadata attaches request metadata to the context so handlers can read headers.
func ContextWithMetadata(ctx context.Context, m Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, m)
}

// MetadataFromContext returns the metadata attached by ContextWithMetadata, or nil.
func MetadataFromContext(ctx context.Context) Metadata {
	m, _ := ctx.Value(metadataKey{}).(Metadata)
	return m
}

// copyMetadata returns a shallow copy of the metadata, or a new map if nil.
func copyMetadata(m Metadata) Metadata {
	if m == nil {
		return make(Metadata)
	}
	copied := make(Metadata, len(m))
	for k, v := range m {
		copied[k] = v
	}
	return copied
}

package wulfpack

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"unicode/utf8"

	"google.golang.org/protobuf/proto"
)

// CompressionThreshold is the binary payload size, in bytes, above which
// responses are compressed. Payloads of exactly this size stay uncompressed.
const CompressionThreshold = 256

// Wire reads and writes messages in both formats.
// A Wire is immutable after construction and safe for concurrent use.
type Wire struct {
	json       Codec
	binary     Codec
	compressor Compressor
	envelopes  map[string]Compressor
}

// WireOption configures a Wire.
type WireOption func(*Wire)

// WithJSONCodec replaces the structured text codec.
func WithJSONCodec(c Codec) WireOption {
	return func(w *Wire) {
		w.json = c
	}
}

// WithBinaryCodec replaces the compact binary codec.
func WithBinaryCodec(c Codec) WireOption {
	return func(w *Wire) {
		w.binary = c
	}
}

// WithCompressor sets the envelope applied to large binary responses.
// The envelope is also accepted on requests. Snappy is used if not specified.
func WithCompressor(c Compressor) WireOption {
	return func(w *Wire) {
		w.compressor = c
	}
}

// NewWire creates a Wire using JSONCodec, ProtobufCodec and the Snappy envelope.
// Requests may announce any of the built-in envelopes.
func NewWire(opts ...WireOption) *Wire {
	w := &Wire{
		json:       JSONCodec{},
		binary:     ProtobufCodec{},
		compressor: Snappy{},
		envelopes:  Compressors(),
	}
	for _, opt := range opts {
		opt(w)
	}

	// Guard against nil options
	if w.json == nil {
		w.json = JSONCodec{}
	}
	if w.binary == nil {
		w.binary = ProtobufCodec{}
	}
	if w.compressor == nil {
		w.compressor = Snappy{}
	}
	w.envelopes[strings.ToLower(w.compressor.Encoding())] = w.compressor

	return w
}

// Compressor returns the envelope applied to large binary payloads.
func (w *Wire) Compressor() Compressor {
	return w.compressor
}

// envelope resolves a Content-Encoding value. Tokens naming no known envelope
// mean the body was sent as is.
func (w *Wire) envelope(contentEncoding string) (Compressor, bool) {
	token := strings.ToLower(strings.TrimSpace(contentEncoding))
	if token == "" {
		return nil, false
	}
	c, ok := w.envelopes[token]
	return c, ok
}

// Read decodes body into the message pointed to by v.
//
// v is reset first, so an empty body leaves it at its zero value and a JSON
// body never merges into earlier contents. A binary body is decompressed first
// when contentEncoding names an envelope; a body that is not a valid block
// fails rather than being read as uncompressed. Every failure is a *DecodeError.
func (w *Wire) Read(body []byte, format Format, contentEncoding string, v any) error {
	reset(v)
	if len(body) == 0 {
		return nil
	}

	if format == FormatJSON {
		return asDecodeError(FormatJSON, w.json.Unmarshal(body, v))
	}

	data := body
	if c, ok := w.envelope(contentEncoding); ok {
		decompressed, err := c.Decompress(body)
		if err != nil {
			return asDecodeError(FormatProtobuf, err)
		}
		data = decompressed
	}
	return asDecodeError(FormatProtobuf, w.binary.Unmarshal(data, v))
}

// Write encodes v in the given format. It returns the body and the
// Content-Encoding token, which is empty unless the body was compressed.
// Only binary bodies longer than CompressionThreshold are compressed.
func (w *Wire) Write(v any, format Format) ([]byte, string, error) {
	if format == FormatJSON {
		data, err := w.json.Marshal(v)
		if err != nil {
			return nil, "", asEncodeError(FormatJSON, err)
		}
		return data, "", nil
	}

	data, err := w.binary.Marshal(v)
	if err != nil {
		return nil, "", asEncodeError(FormatProtobuf, err)
	}
	if len(data) <= CompressionThreshold {
		return data, "", nil
	}
	compressed, err := w.compressor.Compress(data)
	if err != nil {
		return nil, "", asEncodeError(FormatProtobuf, err)
	}
	return compressed, w.compressor.Encoding(), nil
}

// ReadRequest decodes the request body into the message pointed to by v.
//
// The declared Content-Type selects the format. Without a recognised
// Content-Type, text bodies are read as JSON and binary bodies as protobuf.
// A binary body declared as JSON is read as UTF-8 text.
func (w *Wire) ReadRequest(req *Request, v any) error {
	format, declared := DeclaredFormat(req.Metadata)
	if !declared {
		format = FormatProtobuf
		if !req.Binary && len(req.Body) > 0 {
			format = FormatJSON
		}
	}
	if format == FormatJSON && req.Binary && !utf8.Valid(req.Body) {
		return &DecodeError{Format: FormatJSON, Err: ErrInvalidUTF8}
	}
	return w.Read(req.Body, format, req.Metadata.Get(HeaderContentEncoding), v)
}

// WriteResponse encodes v in the format negotiated from the request headers
// and returns a 200 response carrying Content-Type and, when compressed,
// Content-Encoding.
func (w *Wire) WriteResponse(v any, req *Request) (*Response, error) {
	var headers Metadata
	if req != nil {
		headers = req.Metadata
	}
	format := ChooseWriteFormat(headers)

	body, contentEncoding, err := w.Write(v, format)
	if err != nil {
		return nil, err
	}

	metadata := make(Metadata, 2)
	metadata.Set(HeaderContentType, format.ContentType())
	if contentEncoding != "" {
		metadata.Set(HeaderContentEncoding, contentEncoding)
	}
	return &Response{
		StatusCode: http.StatusOK,
		Body:       body,
		Binary:     format == FormatProtobuf,
		Metadata:   metadata,
	}, nil
}

// reset zeroes the message pointed to by v.
func reset(v any) {
	if m, ok := v.(proto.Message); ok {
		proto.Reset(m)
		return
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv.Elem().SetZero()
	}
}

func asDecodeError(format Format, err error) error {
	if err == nil {
		return nil
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return err
	}
	return &DecodeError{Format: format, Err: err}
}

func asEncodeError(format Format, err error) error {
	if err == nil {
		return nil
	}
	var encodeErr *EncodeError
	if errors.As(err, &encodeErr) {
		return err
	}
	return &EncodeError{Format: format, Err: err}
}

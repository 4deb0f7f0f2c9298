package wulfpack

import (
	"encoding"
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Codec defines the serialization contract for one wire format.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Marshal serializes a value to bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into the value pointed to by v.
	Unmarshal(data []byte, v any) error

	// ContentType returns the MIME type announcing the format.
	ContentType() string
}

var (
	protojsonMarshal   = protojson.MarshalOptions{}
	protojsonUnmarshal = protojson.UnmarshalOptions{DiscardUnknown: true}
	protoMarshal       = proto.MarshalOptions{Deterministic: true}
)

// JSONCodec implements the structured text format.
// Generated protobuf messages go through protojson so field names follow the
// canonical lowerCamelCase mapping; every other value goes through encoding/json
// and its struct tags.
type JSONCodec struct{}

// Marshal serializes v to JSON bytes.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if m, ok := v.(proto.Message); ok {
		data, err = protojsonMarshal.Marshal(m)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return nil, &EncodeError{Format: FormatJSON, Err: err}
	}
	return data, nil
}

// Unmarshal deserializes JSON bytes into v. Unknown fields are ignored.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	var err error
	if m, ok := v.(proto.Message); ok {
		err = protojsonUnmarshal.Unmarshal(data, m)
	} else {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return &DecodeError{Format: FormatJSON, Err: err}
	}
	return nil
}

// ContentType returns the JSON MIME type.
func (JSONCodec) ContentType() string {
	return MediaTypeJSON
}

// ProtobufCodec implements the compact binary format.
// Generated protobuf messages are handled by the protobuf runtime; hand-written
// schemas implement encoding.BinaryMarshaler and encoding.BinaryUnmarshaler.
type ProtobufCodec struct{}

// Marshal serializes v to protobuf wire bytes.
func (ProtobufCodec) Marshal(v any) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch m := v.(type) {
	case proto.Message:
		data, err = protoMarshal.Marshal(m)
	case encoding.BinaryMarshaler:
		data, err = m.MarshalBinary()
	default:
		err = ErrUnsupportedMessage
	}
	if err != nil {
		return nil, &EncodeError{Format: FormatProtobuf, Err: err}
	}
	return data, nil
}

// Unmarshal deserializes protobuf wire bytes into v.
func (ProtobufCodec) Unmarshal(data []byte, v any) error {
	var err error
	switch m := v.(type) {
	case proto.Message:
		err = proto.Unmarshal(data, m)
	case encoding.BinaryUnmarshaler:
		err = m.UnmarshalBinary(data)
	default:
		err = ErrUnsupportedMessage
	}
	if err != nil {
		return &DecodeError{Format: FormatProtobuf, Err: err}
	}
	return nil
}

// ContentType returns the protobuf MIME type.
func (ProtobufCodec) ContentType() string {
	return MediaTypeProtobuf
}

// Ensure both codecs implement Codec.
var (
	_ Codec = JSONCodec{}
	_ Codec = ProtobufCodec{}
)

// Package protocols defines the messages exchanged between the frontend and the
// backend lambdas.
//
// Every message has a JSON form (lowerCamelCase field names) and a protobuf
// wire form. The wire form is written by hand with protowire; field numbers
// are part of the contract and must never be reused.
package protocols

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// fieldFunc consumes the value of one field and returns the number of bytes read.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walk iterates over the fields of a serialized message. Unknown fields must be
// skipped by visit through skipField.
func walk(b []byte, visit fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		m, err := visit(num, typ, b)
		if err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
	}
	return n, nil
}

func expectType(num protowire.Number, got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf("field %d: wire type %d, want %d", num, got, want)
	}
	return nil
}

func consumeVarint(num protowire.Number, typ protowire.Type, b []byte) (uint64, int, error) {
	if err := expectType(num, typ, protowire.VarintType); err != nil {
		return 0, 0, err
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeString(num protowire.Number, typ protowire.Type, b []byte) (string, int, error) {
	if err := expectType(num, typ, protowire.BytesType); err != nil {
		return "", 0, err
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return "", 0, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
	}
	if !utf8.Valid(v) {
		return "", 0, fmt.Errorf("field %d: invalid UTF-8", num)
	}
	return string(v), n, nil
}

// proto3 scalars are omitted when they hold the zero value.

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

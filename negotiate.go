package wulfpack

import (
	"fmt"
	"mime"
	"strings"
)

// Media types recognised by the negotiator.
const (
	MediaTypeJSON     = "application/json"
	MediaTypeProtobuf = "application/x-protobuf"
)

// Format is a wire representation of a message.
type Format int

const (
	// FormatProtobuf is the compact binary representation. It is the default
	// whenever the headers do not select a format.
	FormatProtobuf Format = iota

	// FormatJSON is the structured text representation.
	FormatJSON
)

// ContentType returns the media type announcing the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return MediaTypeJSON
	}
	return MediaTypeProtobuf
}

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatProtobuf:
		return "protobuf"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat maps a short name ("json", "protobuf"/"proto") or a media type to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json", MediaTypeJSON:
		return FormatJSON, nil
	case "protobuf", "proto", "binary", MediaTypeProtobuf:
		return FormatProtobuf, nil
	default:
		return 0, fmt.Errorf("unknown format: %q", name)
	}
}

// formatOf recognises a Content-Type value. Parameters such as charset are ignored.
func formatOf(contentType string) (Format, bool) {
	mediaType := strings.TrimSpace(contentType)
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	switch strings.ToLower(mediaType) {
	case MediaTypeJSON:
		return FormatJSON, true
	case MediaTypeProtobuf:
		return FormatProtobuf, true
	default:
		return 0, false
	}
}

// DeclaredFormat returns the format named by the Content-Type header and whether it was recognised.
func DeclaredFormat(headers Metadata) (Format, bool) {
	contentType, ok := headers.Lookup(HeaderContentType)
	if !ok {
		return FormatProtobuf, false
	}
	return formatOf(contentType)
}

// ChooseReadFormat picks the representation of a request body: the declared
// Content-Type when it is recognised, compact binary otherwise.
func ChooseReadFormat(headers Metadata) Format {
	f, ok := DeclaredFormat(headers)
	if !ok {
		return FormatProtobuf
	}
	return f
}

// ChooseWriteFormat picks the representation of a response body.
//
// When Accept names one or both media types, the one appearing first in the
// header string wins. Quality values are not interpreted. Otherwise the
// request's own Content-Type is mirrored, defaulting to compact binary.
func ChooseWriteFormat(headers Metadata) Format {
	if accept, ok := headers.Lookup(HeaderAccept); ok {
		posJSON := strings.Index(accept, MediaTypeJSON)
		posProtobuf := strings.Index(accept, MediaTypeProtobuf)
		switch {
		case posJSON >= 0 && posProtobuf >= 0:
			if posJSON < posProtobuf {
				return FormatJSON
			}
			return FormatProtobuf
		case posJSON >= 0:
			return FormatJSON
		case posProtobuf >= 0:
			return FormatProtobuf
		}
	}
	return ChooseReadFormat(headers)
}

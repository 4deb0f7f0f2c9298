// Package client calls wulfpack endpoints over HTTP.
//
// Requests are encoded with a wulfpack.Wire: compact binary by default,
// JSON on request. Responses are decoded according to their own
// Content-Type and Content-Encoding headers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wulf-data-engineering/wulfpack"
)

// ResponseError is returned for responses outside the 2xx range.
type ResponseError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client: status %d", e.StatusCode)
	}
	return fmt.Sprintf("client: status %d: %s", e.StatusCode, e.Message)
}

// Client sends protocol messages to one API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	wire       *wulfpack.Wire
	format     wulfpack.Format
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. If not specified, http.DefaultClient is used.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithWire sets the Wire used to encode and decode messages.
func WithWire(w *wulfpack.Wire) Option {
	return func(c *Client) {
		c.wire = w
	}
}

// WithJSON sends and accepts JSON instead of compact binary.
func WithJSON() Option {
	return func(c *Client) {
		c.format = wulfpack.FormatJSON
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		format:  wulfpack.FormatProtobuf,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.wire == nil {
		c.wire = wulfpack.NewWire()
	}
	return c
}

// Request posts req to path and decodes the response message.
func Request[Req, Resp any](ctx context.Context, c *Client, path string, req Req) (Resp, error) {
	var zero Resp
	body, err := c.do(ctx, http.MethodPost, path, req, true)
	if err != nil {
		return zero, err
	}
	return wulfpack.ReadMessage[Resp](c.wire, body)
}

// Load fetches the message served at path without sending one.
func Load[Resp any](ctx context.Context, c *Client, path string) (Resp, error) {
	var zero Resp
	body, err := c.do(ctx, http.MethodGet, path, nil, false)
	if err != nil {
		return zero, err
	}
	return wulfpack.ReadMessage[Resp](c.wire, body)
}

// Command posts req to path and ignores the response body.
func Command[Req any](ctx context.Context, c *Client, path string, req Req) error {
	_, err := c.do(ctx, http.MethodPost, path, req, true)
	return err
}

// do sends one request and returns the response as a wulfpack request so the
// Wire can read it with the usual negotiation rules.
func (c *Client) do(ctx context.Context, method, path string, msg any, hasBody bool) (*wulfpack.Request, error) {
	var reader io.Reader
	var contentEncoding string
	if hasBody {
		body, encoding, err := c.wire.Write(msg, c.format)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(body)
		contentEncoding = encoding
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	httpReq.Header.Set(wulfpack.HeaderAccept, c.format.ContentType())
	if hasBody {
		httpReq.Header.Set(wulfpack.HeaderContentType, c.format.ContentType())
	}
	if contentEncoding != "" {
		httpReq.Header.Set(wulfpack.HeaderContentEncoding, contentEncoding)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: reading response: %w", err)
	}

	metadata := make(wulfpack.Metadata, len(httpResp.Header))
	for name := range httpResp.Header {
		metadata.Set(name, httpResp.Header.Get(name))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		respErr := &ResponseError{
			StatusCode: httpResp.StatusCode,
			RequestID:  metadata.Get(wulfpack.HeaderRequestID),
		}
		var failure struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &failure) == nil {
			respErr.Message = failure.Message
		}
		return nil, respErr
	}

	format, _ := wulfpack.DeclaredFormat(metadata)
	return &wulfpack.Request{
		Body:     data,
		Binary:   format == wulfpack.FormatProtobuf,
		Metadata: metadata,
	}, nil
}

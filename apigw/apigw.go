// Package apigw adapts API Gateway Lambda proxy events to wulfpack requests
// and responses.
//
// REST APIs deliver events.APIGatewayProxyRequest, HTTP APIs deliver
// events.APIGatewayV2HTTPRequest. Binary bodies travel base64 encoded in both
// directions.
package apigw

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/wulf-data-engineering/wulfpack"
	"github.com/zoobzio/capitan"
)

// Server serves byte-oriented requests. *wulfpack.Endpoint implements it.
type Server interface {
	Name() string
	Serve(ctx context.Context, req *wulfpack.Request) *wulfpack.Response
}

// FromProxyRequest converts a REST API proxy event.
// Multi-value headers are joined with ", "; single-value headers win.
// Without an X-Request-Id header the API Gateway request id is used.
func FromProxyRequest(event events.APIGatewayProxyRequest) (*wulfpack.Request, error) {
	metadata := make(wulfpack.Metadata, len(event.Headers))
	for name, values := range event.MultiValueHeaders {
		metadata.Set(name, strings.Join(values, ", "))
	}
	for name, value := range event.Headers {
		metadata.Set(name, value)
	}
	setRequestID(metadata, event.RequestContext.RequestID)
	return newRequest(event.Body, event.IsBase64Encoded, metadata)
}

// FromHTTPRequest converts an HTTP API (payload format 2.0) event.
func FromHTTPRequest(event events.APIGatewayV2HTTPRequest) (*wulfpack.Request, error) {
	metadata := make(wulfpack.Metadata, len(event.Headers))
	for name, value := range event.Headers {
		metadata.Set(name, value)
	}
	setRequestID(metadata, event.RequestContext.RequestID)
	return newRequest(event.Body, event.IsBase64Encoded, metadata)
}

// setRequestID falls back to the API Gateway request id when the caller sent none.
func setRequestID(metadata wulfpack.Metadata, requestID string) {
	if requestID != "" && !metadata.Has(wulfpack.HeaderRequestID) {
		metadata.Set(wulfpack.HeaderRequestID, requestID)
	}
}

func newRequest(body string, isBase64 bool, metadata wulfpack.Metadata) (*wulfpack.Request, error) {
	if !isBase64 {
		return &wulfpack.Request{Body: []byte(body), Metadata: metadata}, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("apigw: invalid base64 body: %w", err)
	}
	return &wulfpack.Request{Body: decoded, Binary: true, Metadata: metadata}, nil
}

// ToProxyResponse converts a response for a REST API.
func ToProxyResponse(resp *wulfpack.Response) events.APIGatewayProxyResponse {
	body, isBase64 := encodeBody(resp)
	return events.APIGatewayProxyResponse{
		StatusCode:      resp.StatusCode,
		Headers:         headersOf(resp.Metadata),
		Body:            body,
		IsBase64Encoded: isBase64,
	}
}

// ToHTTPResponse converts a response for an HTTP API.
func ToHTTPResponse(resp *wulfpack.Response) events.APIGatewayV2HTTPResponse {
	body, isBase64 := encodeBody(resp)
	return events.APIGatewayV2HTTPResponse{
		StatusCode:      resp.StatusCode,
		Headers:         headersOf(resp.Metadata),
		Body:            body,
		IsBase64Encoded: isBase64,
	}
}

func encodeBody(resp *wulfpack.Response) (string, bool) {
	if resp.Binary {
		return base64.StdEncoding.EncodeToString(resp.Body), true
	}
	return string(resp.Body), false
}

func headersOf(m wulfpack.Metadata) map[string]string {
	headers := make(map[string]string, len(m))
	for name, value := range m {
		headers[http.CanonicalHeaderKey(name)] = value
	}
	return headers
}

// Handler adapts a Server to both API Gateway event shapes.
type Handler struct {
	server  Server
	capitan *capitan.Capitan
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCapitan sets a custom Capitan instance for error signals.
func WithCapitan(c *capitan.Capitan) HandlerOption {
	return func(h *Handler) {
		h.capitan = c
	}
}

// NewHandler creates a Handler serving requests with server.
func NewHandler(server Server, opts ...HandlerOption) *Handler {
	h := &Handler{server: server}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleProxy serves a REST API event. Transport failures answer 400; the
// returned error is always nil so API Gateway relays the response.
func (h *Handler) HandleProxy(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := FromProxyRequest(event)
	if err != nil {
		return ToProxyResponse(h.badRequest(ctx, requestIDOf(event.Headers, event.RequestContext.RequestID), err)), nil
	}
	return ToProxyResponse(h.server.Serve(ctx, req)), nil
}

// HandleHTTP serves an HTTP API event.
func (h *Handler) HandleHTTP(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	req, err := FromHTTPRequest(event)
	if err != nil {
		return ToHTTPResponse(h.badRequest(ctx, requestIDOf(event.Headers, event.RequestContext.RequestID), err)), nil
	}
	return ToHTTPResponse(h.server.Serve(ctx, req)), nil
}

func requestIDOf(headers map[string]string, fallback string) string {
	if id := wulfpack.Metadata(headers).Get(wulfpack.HeaderRequestID); id != "" {
		return id
	}
	return fallback
}

func (h *Handler) badRequest(ctx context.Context, requestID string, err error) *wulfpack.Response {
	failure := wulfpack.Error{
		Operation:  "read",
		Endpoint:   h.server.Name(),
		Err:        err.Error(),
		StatusCode: http.StatusBadRequest,
		RequestID:  requestID,
	}
	if h.capitan != nil {
		h.capitan.Emit(ctx, wulfpack.ErrorSignal, wulfpack.ErrorKey.Field(failure))
	} else {
		capitan.Emit(ctx, wulfpack.ErrorSignal, wulfpack.ErrorKey.Field(failure))
	}

	body, _ := json.Marshal(map[string]string{"message": err.Error()})
	metadata := wulfpack.Metadata{}
	metadata.Set(wulfpack.HeaderContentType, wulfpack.MediaTypeJSON)
	if requestID != "" {
		metadata.Set(wulfpack.HeaderRequestID, requestID)
	}
	return &wulfpack.Response{
		StatusCode: http.StatusBadRequest,
		Body:       body,
		Metadata:   metadata,
	}
}

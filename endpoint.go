package wulfpack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

var errNoExchange = errors.New("wulfpack: pipeline returned no exchange")

// Internal identities for endpoints.
var (
	handleID           = pipz.NewIdentity("wulfpack:handle", "Invokes the endpoint handler")
	endpointPipelineID = pipz.NewIdentity("wulfpack:endpoint", "Endpoint pipeline")
)

// Exchange carries one request/response pair through an endpoint pipeline.
type Exchange[Req, Resp any] struct {
	// Request is the decoded request message.
	Request Req

	// Response is the handler's result, written back to the caller.
	Response Resp

	// Metadata contains the request headers.
	Metadata Metadata
}

// Handler is the business function behind an endpoint.
type Handler[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// StatusError lets a handler choose the HTTP status of a failure.
type StatusError struct {
	Code int
	Err  error
}

// NewStatusError creates a StatusError.
func NewStatusError(code int, err error) *StatusError {
	return &StatusError{Code: code, Err: err}
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return http.StatusText(e.Code)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

// errorBody is the JSON body of failed responses.
type errorBody struct {
	Message string `json:"message"`
}

// Endpoint reads a request message, runs it through a pipeline ending in the
// handler and writes the response message.
// Req and Resp are the message contracts of the endpoint.
type Endpoint[Req, Resp any] struct {
	name     string
	wire     *Wire
	capitan  *capitan.Capitan
	pipeline *pipz.Pipeline[*Exchange[Req, Resp]]
}

// EndpointOption configures an Endpoint.
type EndpointOption[Req, Resp any] func(*Endpoint[Req, Resp])

// WithEndpointWire sets the Wire used to read and write messages.
// If not specified, NewWire() is used.
func WithEndpointWire[Req, Resp any](w *Wire) EndpointOption[Req, Resp] {
	return func(e *Endpoint[Req, Resp]) {
		e.wire = w
	}
}

// WithEndpointCapitan sets a custom Capitan instance for error signals.
func WithEndpointCapitan[Req, Resp any](c *capitan.Capitan) EndpointOption[Req, Resp] {
	return func(e *Endpoint[Req, Resp]) {
		e.capitan = c
	}
}

// NewEndpoint creates an Endpoint named name around handler.
//
// Parameters:
//   - name: identifies the endpoint in error signals
//   - handler: business function turning a request message into a response message
//   - pipelineOpts: reliability and processing middleware; nil for none
//   - opts: endpoint configuration (custom wire, custom capitan instance)
func NewEndpoint[Req, Resp any](name string, handler Handler[Req, Resp], pipelineOpts []Option[Req, Resp], opts ...EndpointOption[Req, Resp]) *Endpoint[Req, Resp] {
	e := &Endpoint[Req, Resp]{
		name: name,
	}
	for _, opt := range opts {
		opt(e)
	}

	// Guard against nil wire
	if e.wire == nil {
		e.wire = NewWire()
	}

	// Build pipeline: start with terminal, wrap with options
	chain := newHandleTerminal(handler)
	for _, opt := range pipelineOpts {
		chain = opt(chain)
	}
	e.pipeline = pipz.NewPipeline(endpointPipelineID, chain)

	return e
}

// newHandleTerminal creates the terminal operation that invokes the handler.
// The incoming exchange is never written: a handler outliving a timeout must
// not touch what Serve still holds.
func newHandleTerminal[Req, Resp any](handler Handler[Req, Resp]) pipz.Chainable[*Exchange[Req, Resp]] {
	return pipz.Apply(handleID, func(ctx context.Context, ex *Exchange[Req, Resp]) (*Exchange[Req, Resp], error) {
		resp, err := handler(ctx, ex.Request)
		if err != nil {
			return ex, err
		}
		out := *ex
		out.Response = resp
		return &out, nil
	})
}

// Name returns the endpoint name.
func (e *Endpoint[Req, Resp]) Name() string {
	return e.name
}

// Serve handles one request. Failures never escape as errors: they become
// responses with a JSON {"message": ...} body. Decode failures answer 400,
// StatusError answers its own code, everything else answers 500.
// Every response carries X-Request-Id, echoed from the request when present.
func (e *Endpoint[Req, Resp]) Serve(ctx context.Context, req *Request) *Response {
	if req == nil {
		req = &Request{}
	}
	requestID := req.Metadata.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	value, err := ReadMessage[Req](e.wire, req)
	if err != nil {
		return e.fail(ctx, "read", requestID, http.StatusBadRequest, err)
	}

	ex := &Exchange[Req, Resp]{
		Request:  value,
		Metadata: req.Metadata,
	}
	ctx = ContextWithMetadata(ctx, req.Metadata)

	result, err := e.pipeline.Process(ctx, ex)
	if err != nil {
		cause := causeOf[*Exchange[Req, Resp]](err)
		return e.fail(ctx, "handle", requestID, statusOf(cause), cause)
	}
	if result == nil {
		return e.fail(ctx, "handle", requestID, http.StatusInternalServerError, errNoExchange)
	}

	resp, err := e.wire.WriteResponse(result.Response, req)
	if err != nil {
		return e.fail(ctx, "write", requestID, http.StatusInternalServerError, err)
	}
	resp.Metadata.Set(HeaderRequestID, requestID)
	return resp
}

// causeOf strips the pipeline's error wrappers down to the error that started the failure.
func causeOf[T any](err error) error {
	for {
		var pipeErr *pipz.Error[T]
		if !errors.As(err, &pipeErr) || pipeErr.Err == nil {
			return err
		}
		err = pipeErr.Err
	}
}

// statusOf maps a failure to an HTTP status.
func statusOf(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail builds an error response and emits the failure to ErrorSignal.
func (e *Endpoint[Req, Resp]) fail(ctx context.Context, operation, requestID string, status int, err error) *Response {
	e.emitError(ctx, Error{
		Operation:  operation,
		Endpoint:   e.name,
		Err:        err.Error(),
		StatusCode: status,
		RequestID:  requestID,
	})

	body, marshalErr := JSONCodec{}.Marshal(errorBody{Message: err.Error()})
	if marshalErr != nil {
		body = []byte(fmt.Sprintf(`{"message":%q}`, http.StatusText(status)))
	}
	metadata := make(Metadata, 2)
	metadata.Set(HeaderContentType, MediaTypeJSON)
	metadata.Set(HeaderRequestID, requestID)
	return &Response{
		StatusCode: status,
		Body:       body,
		Metadata:   metadata,
	}
}

// emitError emits an error event to ErrorSignal.
func (e *Endpoint[Req, Resp]) emitError(ctx context.Context, failure Error) {
	if e.capitan != nil {
		e.capitan.Emit(ctx, ErrorSignal, ErrorKey.Field(failure))
	} else {
		capitan.Emit(ctx, ErrorSignal, ErrorKey.Field(failure))
	}
}

// Close releases pipeline resources.
func (e *Endpoint[Req, Resp]) Close() error {
	if e.pipeline != nil {
		return e.pipeline.Close()
	}
	return nil
}

// ReadMessage decodes the request body into a new T.
// T may be a struct type or a pointer to one, as generated protobuf messages are.
func ReadMessage[T any](w *Wire, req *Request) (T, error) {
	var v T
	var target any = &v
	if rt := reflect.TypeOf(v); rt != nil && rt.Kind() == reflect.Pointer {
		v = reflect.New(rt.Elem()).Interface().(T)
		target = v
	}
	if err := w.ReadRequest(req, target); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

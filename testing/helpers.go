// Package testing provides test utilities and helpers for wulfpack users.
// These utilities help users test their own wulfpack-based lambdas.
package testing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/wulf-data-engineering/wulfpack"
	"github.com/zoobzio/capitan"
)

// AWSCall is one request received by an AWSServer.
type AWSCall struct {
	// Operation is the API name taken from X-Amz-Target, e.g. "PutItem".
	Operation string

	// Target is the full X-Amz-Target header.
	Target string

	// Body is the JSON request body.
	Body []byte
}

// Decode unmarshals the request body into v.
func (c AWSCall) Decode(v any) error {
	return json.Unmarshal(c.Body, v)
}

// AWSHandler answers one call with a status code and a JSON body.
type AWSHandler func(call AWSCall) (status int, body any)

// AWSServer is an HTTP server speaking the AWS JSON protocol used by
// DynamoDB and Cognito. Operations answer with canned responses; unknown
// operations fail with UnknownOperationException.
// Thread-safe for concurrent use in tests.
type AWSServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	calls    []AWSCall
	handlers map[string]AWSHandler
}

// NewAWSServer starts an AWSServer. Close it when done.
func NewAWSServer() *AWSServer {
	s := &AWSServer{
		handlers: make(map[string]AWSHandler),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// Handle answers operation with status and body.
func (s *AWSServer) Handle(operation string, status int, body any) *AWSServer {
	return s.HandleFunc(operation, func(AWSCall) (int, any) {
		return status, body
	})
}

// HandleFunc answers operation with fn.
func (s *AWSServer) HandleFunc(operation string, fn AWSHandler) *AWSServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[operation] = fn
	return s
}

func (s *AWSServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	target := r.Header.Get("X-Amz-Target")
	call := AWSCall{
		Operation: target[strings.LastIndex(target, ".")+1:],
		Target:    target,
		Body:      body,
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	handler := s.handlers[call.Operation]
	s.mu.Unlock()

	status, payload := http.StatusBadRequest, any(AWSError("UnknownOperationException", "no handler for "+call.Operation))
	if handler != nil {
		status, payload = handler(call)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/x-amz-json-1.0"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Amzn-Requestid", "test-request")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// URL returns the endpoint of the server.
func (s *AWSServer) URL() string {
	return s.server.URL
}

// Config returns an AWS configuration pointing every client at the server,
// with static credentials and retries disabled.
func (s *AWSServer) Config() aws.Config {
	return aws.Config{
		Region:           "eu-central-1",
		Credentials:      credentials.NewStaticCredentialsProvider("local", "local", ""),
		BaseEndpoint:     aws.String(s.server.URL),
		HTTPClient:       s.server.Client(),
		RetryMaxAttempts: 1,
	}
}

// Calls returns a copy of all received calls.
func (s *AWSServer) Calls() []AWSCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]AWSCall, len(s.calls))
	copy(result, s.calls)
	return result
}

// CallCount returns how often operation was called.
func (s *AWSServer) CallCount(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Operation == operation {
			n++
		}
	}
	return n
}

// Close shuts the server down.
func (s *AWSServer) Close() {
	s.server.Close()
}

// AWSError builds the body of an AWS JSON protocol error response.
func AWSError(errorType, message string) map[string]string {
	return map[string]string{
		"__type":  errorType,
		"message": message,
	}
}

// NewRequest builds a wulfpack request. headers alternate names and values.
func NewRequest(body []byte, binary bool, headers ...string) *wulfpack.Request {
	metadata := make(wulfpack.Metadata, len(headers)/2)
	for i := 0; i+1 < len(headers); i += 2 {
		metadata.Set(headers[i], headers[i+1])
	}
	return &wulfpack.Request{
		Body:     body,
		Binary:   binary,
		Metadata: metadata,
	}
}

// JSONRequest builds a text request declaring application/json.
func JSONRequest(body string, headers ...string) *wulfpack.Request {
	return NewRequest([]byte(body), false, append([]string{wulfpack.HeaderContentType, wulfpack.MediaTypeJSON}, headers...)...)
}

// BinaryRequest builds a binary request declaring application/x-protobuf.
func BinaryRequest(body []byte, headers ...string) *wulfpack.Request {
	return NewRequest(body, true, append([]string{wulfpack.HeaderContentType, wulfpack.MediaTypeProtobuf}, headers...)...)
}

// ErrorCapture captures wulfpack errors for testing.
type ErrorCapture struct {
	errors []wulfpack.Error
	mu     sync.Mutex
}

// NewErrorCapture creates a new ErrorCapture instance.
func NewErrorCapture() *ErrorCapture {
	return &ErrorCapture{
		errors: make([]wulfpack.Error, 0),
	}
}

// Hook registers the capture on c's ErrorSignal.
func (ec *ErrorCapture) Hook(c *capitan.Capitan) *ErrorCapture {
	c.Hook(wulfpack.ErrorSignal, func(_ context.Context, e *capitan.Event) {
		if err, ok := wulfpack.ErrorKey.From(e); ok {
			ec.Capture(err)
		}
	})
	return ec
}

// Capture adds an error to the capture.
func (ec *ErrorCapture) Capture(err wulfpack.Error) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.errors = append(ec.errors, err)
}

// Errors returns a copy of all captured errors.
func (ec *ErrorCapture) Errors() []wulfpack.Error {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	result := make([]wulfpack.Error, len(ec.errors))
	copy(result, ec.errors)
	return result
}

// Count returns the number of captured errors.
func (ec *ErrorCapture) Count() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.errors)
}

// Reset clears all captured errors.
func (ec *ErrorCapture) Reset() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.errors = ec.errors[:0]
}

// WaitForCount blocks until the capture has at least n errors or timeout occurs.
func (ec *ErrorCapture) WaitForCount(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ec.Count() >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

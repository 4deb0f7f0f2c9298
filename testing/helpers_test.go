package testing

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wulf-data-engineering/wulfpack"
	"github.com/zoobzio/capitan"
)

func postTarget(t *testing.T, s *AWSServer, target, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.URL(), strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("X-Amz-Target", target)
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return resp, decoded
}

func TestAWSServer_Handle(t *testing.T) {
	s := NewAWSServer().Handle("DescribeUserPool", http.StatusOK, map[string]any{"UserPool": map[string]any{"Id": "pool"}})
	defer s.Close()

	resp, body := postTarget(t, s, "AWSCognitoIdentityProviderService.DescribeUserPool", `{"UserPoolId":"pool"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/x-amz-json-1.1" {
		t.Errorf("expected protocol content type echoed, got %q", got)
	}
	pool, _ := body["UserPool"].(map[string]any)
	if pool["Id"] != "pool" {
		t.Errorf("unexpected body %v", body)
	}

	calls := s.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Operation != "DescribeUserPool" {
		t.Errorf("expected operation DescribeUserPool, got %q", calls[0].Operation)
	}

	var input struct{ UserPoolId string }
	if err := calls[0].Decode(&input); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if input.UserPoolId != "pool" {
		t.Errorf("expected recorded input, got %+v", input)
	}
}

func TestAWSServer_UnknownOperation(t *testing.T) {
	s := NewAWSServer()
	defer s.Close()

	resp, body := postTarget(t, s, "DynamoDB_20120810.Scan", `{}`)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if body["__type"] != "UnknownOperationException" {
		t.Errorf("unexpected error type %v", body["__type"])
	}
	if s.CallCount("Scan") != 1 {
		t.Errorf("expected call to be recorded, got %d", s.CallCount("Scan"))
	}
}

func TestAWSServer_HandleFunc(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	s := NewAWSServer().HandleFunc("GetItem", func(call AWSCall) (int, any) {
		mu.Lock()
		seen = append(seen, call.Target)
		mu.Unlock()
		return http.StatusOK, map[string]any{}
	})
	defer s.Close()

	postTarget(t, s, "DynamoDB_20120810.GetItem", `{}`)
	postTarget(t, s, "DynamoDB_20120810.GetItem", `{}`)

	if s.CallCount("GetItem") != 2 {
		t.Errorf("expected 2 calls, got %d", s.CallCount("GetItem"))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "DynamoDB_20120810.GetItem" {
		t.Errorf("unexpected targets %v", seen)
	}
}

func TestAWSServer_Config(t *testing.T) {
	s := NewAWSServer()
	defer s.Close()

	cfg := s.Config()
	if cfg.BaseEndpoint == nil || *cfg.BaseEndpoint != s.URL() {
		t.Errorf("expected base endpoint %q, got %v", s.URL(), cfg.BaseEndpoint)
	}

	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if creds.AccessKeyID != "local" {
		t.Errorf("expected local credentials, got %q", creds.AccessKeyID)
	}
}

func TestRequestBuilders(t *testing.T) {
	req := JSONRequest(`{"a":1}`, "Accept", wulfpack.MediaTypeProtobuf)
	if req.Binary {
		t.Error("expected text request")
	}
	if req.Metadata.Get("content-type") != wulfpack.MediaTypeJSON {
		t.Errorf("unexpected content type %q", req.Metadata.Get("content-type"))
	}
	if req.Metadata.Get("accept") != wulfpack.MediaTypeProtobuf {
		t.Errorf("unexpected accept %q", req.Metadata.Get("accept"))
	}

	req = BinaryRequest([]byte{0x08, 0x01})
	if !req.Binary {
		t.Error("expected binary request")
	}
	if req.Metadata.Get(wulfpack.HeaderContentType) != wulfpack.MediaTypeProtobuf {
		t.Errorf("unexpected content type %q", req.Metadata.Get(wulfpack.HeaderContentType))
	}
}

func TestErrorCapture(t *testing.T) {
	capture := NewErrorCapture()

	if capture.Count() != 0 {
		t.Errorf("expected 0 errors initially, got %d", capture.Count())
	}

	capture.Capture(wulfpack.Error{Operation: "read", Endpoint: "test", Err: "error1"})
	capture.Capture(wulfpack.Error{Operation: "handle", Endpoint: "test", Err: "error2"})

	if capture.Count() != 2 {
		t.Errorf("expected 2 errors, got %d", capture.Count())
	}

	errs := capture.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}

	if errs[0].Operation != "read" {
		t.Errorf("unexpected first error: %s", errs[0].Operation)
	}

	capture.Reset()
	if capture.Count() != 0 {
		t.Errorf("expected 0 errors after reset, got %d", capture.Count())
	}
}

func TestErrorCapture_Hook(t *testing.T) {
	c := capitan.New(capitan.WithSyncMode())
	defer c.Shutdown()

	capture := NewErrorCapture().Hook(c)

	c.Emit(context.Background(), wulfpack.ErrorSignal, wulfpack.ErrorKey.Field(wulfpack.Error{Operation: "write", Err: "boom"}))

	if capture.Count() != 1 {
		t.Fatalf("expected 1 error, got %d", capture.Count())
	}
	if capture.Errors()[0].Operation != "write" {
		t.Errorf("unexpected error %+v", capture.Errors()[0])
	}
}

func TestErrorCapture_WaitForCount(t *testing.T) {
	capture := NewErrorCapture()

	// Should timeout
	if capture.WaitForCount(1, 10*time.Millisecond) {
		t.Error("expected timeout")
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		capture.Capture(wulfpack.Error{Operation: "handle", Err: "delayed"})
	}()

	if !capture.WaitForCount(1, 100*time.Millisecond) {
		t.Error("expected success")
	}
}

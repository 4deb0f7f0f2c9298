package wulfpack

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wulf-data-engineering/wulfpack/protocols"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

type policyOption = Option[protocols.Empty, protocols.PasswordPolicy]

type policyExchange = Exchange[protocols.Empty, protocols.PasswordPolicy]

func flakyPolicyHandler(failures int32, attempts *atomic.Int32) Handler[protocols.Empty, protocols.PasswordPolicy] {
	return func(_ context.Context, _ protocols.Empty) (protocols.PasswordPolicy, error) {
		if attempts.Add(1) <= failures {
			return protocols.PasswordPolicy{}, errors.New("throttled")
		}
		return samplePolicy(), nil
	}
}

func TestEndpoint_WithRetry(t *testing.T) {
	var attempts atomic.Int32
	opts := []policyOption{
		WithRetry[protocols.Empty, protocols.PasswordPolicy](3),
	}

	ep := NewEndpoint("password-policy", flakyPolicyHandler(2, &attempts), opts)
	defer ep.Close()

	resp := ep.Serve(context.Background(), &Request{})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after retries, got %d: %s", resp.StatusCode, resp.Body)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestEndpoint_WithBackoff(t *testing.T) {
	var attempts atomic.Int32
	opts := []policyOption{
		WithBackoff[protocols.Empty, protocols.PasswordPolicy](3, 10*time.Millisecond),
	}

	ep := NewEndpoint("password-policy", flakyPolicyHandler(2, &attempts), opts)
	defer ep.Close()

	resp := ep.Serve(context.Background(), &Request{})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after backoff, got %d: %s", resp.StatusCode, resp.Body)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestEndpoint_RetryExhausted(t *testing.T) {
	c := capitan.New(capitan.WithSyncMode())
	defer c.Shutdown()

	var collector errorCollector
	collector.hook(c)

	var attempts atomic.Int32
	opts := []policyOption{
		WithRetry[protocols.Empty, protocols.PasswordPolicy](2),
	}

	ep := NewEndpoint("password-policy", flakyPolicyHandler(10, &attempts), opts,
		WithEndpointCapitan[protocols.Empty, protocols.PasswordPolicy](c))
	defer ep.Close()

	resp := ep.Serve(context.Background(), &Request{})

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
	if len(collector.all()) != 1 {
		t.Errorf("expected a single error event, got %d", len(collector.all()))
	}
}

func TestEndpoint_WithTimeout(t *testing.T) {
	handler := func(ctx context.Context, _ protocols.Empty) (protocols.PasswordPolicy, error) {
		select {
		case <-ctx.Done():
			return protocols.PasswordPolicy{}, ctx.Err()
		case <-time.After(time.Second):
			return samplePolicy(), nil
		}
	}

	opts := []policyOption{
		WithTimeout[protocols.Empty, protocols.PasswordPolicy](20 * time.Millisecond),
	}

	ep := NewEndpoint("password-policy", handler, opts)
	defer ep.Close()

	start := time.Now()
	resp := ep.Serve(context.Background(), &Request{})
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500 on timeout, got %d", resp.StatusCode)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("expected timeout to cut the call short, took %v", elapsed)
	}
}

func TestEndpoint_WithTimeout_LateHandler(t *testing.T) {
	done := make(chan struct{})
	handler := func(_ context.Context, _ protocols.Empty) (protocols.PasswordPolicy, error) {
		defer close(done)
		time.Sleep(30 * time.Millisecond)
		return samplePolicy(), nil
	}

	c := capitan.New(capitan.WithSyncMode())
	defer c.Shutdown()
	collector := &errorCollector{}
	collector.hook(c)

	opts := []policyOption{
		WithTimeout[protocols.Empty, protocols.PasswordPolicy](10 * time.Millisecond),
	}
	ep := NewEndpoint("password-policy", handler, opts, WithEndpointCapitan[protocols.Empty, protocols.PasswordPolicy](c))
	defer ep.Close()

	resp := ep.Serve(context.Background(), &Request{})
	<-done

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500 on timeout, got %d", resp.StatusCode)
	}
	errs := collector.all()
	if len(errs) != 1 || errs[0].Operation != "handle" {
		t.Fatalf("expected one handle error, got %+v", errs)
	}
}

func TestEndpoint_StatusErrorSurvivesRetry(t *testing.T) {
	handler := func(_ context.Context, _ protocols.Empty) (protocols.PasswordPolicy, error) {
		return protocols.PasswordPolicy{}, NewStatusError(http.StatusTooManyRequests, errors.New("slow down"))
	}
	opts := []policyOption{
		WithRetry[protocols.Empty, protocols.PasswordPolicy](2),
		WithTimeout[protocols.Empty, protocols.PasswordPolicy](time.Second),
	}
	ep := NewEndpoint("password-policy", handler, opts)
	defer ep.Close()

	resp := ep.Serve(context.Background(), &Request{})

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429 through the pipeline wrappers, got %d", resp.StatusCode)
	}
	if got := decodeErrorBody(t, resp); got != "slow down" {
		t.Errorf("expected handler message, got %q", got)
	}
}

func TestEndpoint_WithRateLimit(t *testing.T) {
	var attempts atomic.Int32
	opts := []policyOption{
		WithRateLimit[protocols.Empty, protocols.PasswordPolicy](1000, 10),
	}

	ep := NewEndpoint("password-policy", flakyPolicyHandler(0, &attempts), opts)
	defer ep.Close()

	for i := 0; i < 3; i++ {
		if resp := ep.Serve(context.Background(), &Request{}); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.StatusCode)
		}
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", attempts.Load())
	}
}

func TestEndpoint_WithCircuitBreaker(t *testing.T) {
	var attempts atomic.Int32
	opts := []policyOption{
		WithCircuitBreaker[protocols.Empty, protocols.PasswordPolicy](2, time.Minute),
	}

	ep := NewEndpoint("password-policy", flakyPolicyHandler(100, &attempts), opts)
	defer ep.Close()

	for i := 0; i < 5; i++ {
		if resp := ep.Serve(context.Background(), &Request{}); resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("request %d: expected 500, got %d", i, resp.StatusCode)
		}
	}

	// Only 2 calls reach the handler, the circuit rejects the rest.
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts before circuit opened, got %d", attempts.Load())
	}
}

func TestEndpoint_WithErrorHandler(t *testing.T) {
	var handled atomic.Int32
	errorHandler := pipz.Effect(
		pipz.NewIdentity("count-errors", "Counts failures"),
		func(_ context.Context, _ *pipz.Error[*policyExchange]) error {
			handled.Add(1)
			return nil
		},
	)

	var attempts atomic.Int32
	opts := []policyOption{
		WithErrorHandler[protocols.Empty, protocols.PasswordPolicy](errorHandler),
	}

	ep := NewEndpoint("password-policy", flakyPolicyHandler(100, &attempts), opts)
	defer ep.Close()

	ep.Serve(context.Background(), &Request{})

	if handled.Load() != 1 {
		t.Errorf("expected 1 handled error, got %d", handled.Load())
	}
}

func TestEndpoint_WithFallback(t *testing.T) {
	fallback := pipz.Apply(
		pipz.NewIdentity("default-policy", "Answers with the default policy"),
		func(_ context.Context, ex *policyExchange) (*policyExchange, error) {
			ex.Response = protocols.PasswordPolicy{MinimumLength: 6}
			return ex, nil
		},
	)

	var attempts atomic.Int32
	opts := []policyOption{
		WithFallback[protocols.Empty, protocols.PasswordPolicy](fallback),
	}

	ep := NewEndpoint("password-policy", flakyPolicyHandler(100, &attempts), opts)
	defer ep.Close()

	resp := ep.Serve(context.Background(), &Request{})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected fallback to answer 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	var decoded protocols.PasswordPolicy
	if err := decoded.UnmarshalBinary(resp.Body); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if decoded.MinimumLength != 6 {
		t.Errorf("expected fallback policy, got %+v", decoded)
	}
}

func TestEndpoint_WithPipeline(t *testing.T) {
	var custom atomic.Bool
	pipeline := pipz.Transform(
		pipz.NewIdentity("static", "Static answer"),
		func(_ context.Context, ex *policyExchange) *policyExchange {
			custom.Store(true)
			ex.Response = protocols.PasswordPolicy{RequireSymbols: true}
			return ex
		},
	)

	var attempts atomic.Int32
	opts := []policyOption{
		WithPipeline[protocols.Empty, protocols.PasswordPolicy](pipeline),
	}

	ep := NewEndpoint("password-policy", flakyPolicyHandler(0, &attempts), opts)
	defer ep.Close()

	resp := ep.Serve(context.Background(), &Request{})

	if !custom.Load() {
		t.Error("expected custom pipeline to be invoked")
	}
	if attempts.Load() != 0 {
		t.Errorf("expected handler to be replaced, got %d calls", attempts.Load())
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

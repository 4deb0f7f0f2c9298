package wulfpack

import (
	"time"

	"github.com/zoobzio/pipz"
)

// Internal identities for reliability options.
var (
	retryID          = pipz.NewIdentity("wulfpack:retry", "Retries failed handler calls")
	backoffID        = pipz.NewIdentity("wulfpack:backoff", "Retries with exponential backoff")
	timeoutID        = pipz.NewIdentity("wulfpack:timeout", "Enforces handler timeout")
	circuitBreakerID = pipz.NewIdentity("wulfpack:circuit-breaker", "Circuit breaker protection")
	rateLimitID      = pipz.NewIdentity("wulfpack:rate-limit", "Rate limiting")
	errorHandlerID   = pipz.NewIdentity("wulfpack:error-handler", "Error handling")
	fallbackID       = pipz.NewIdentity("wulfpack:fallback", "Fallback alternatives")
)

// Option wraps the handler stage of an endpoint pipeline.
// Reading the request and writing the response happen outside the pipeline, so
// a retried or timed out call never decodes the body twice. Options listed
// later wrap the earlier ones.
type Option[Req, Resp any] func(pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]]

// WithRetry calls the handler up to maxAttempts times, without delay, until it
// succeeds. A StatusError from the last attempt still decides the response code,
// so only use it for handlers safe to repeat.
func WithRetry[Req, Resp any](maxAttempts int) Option[Req, Resp] {
	return func(pipeline pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]] {
		return pipz.NewRetry(retryID, pipeline, maxAttempts)
	}
}

// WithBackoff retries failed handler calls with exponential backoff.
// The delay starts at baseDelay and doubles after each failure.
// Useful when the handler calls a throttled AWS API such as DescribeUserPool.
func WithBackoff[Req, Resp any](maxAttempts int, baseDelay time.Duration) Option[Req, Resp] {
	return func(pipeline pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]] {
		return pipz.NewBackoff(backoffID, pipeline, maxAttempts, baseDelay)
	}
}

// WithTimeout answers 500 once the handler runs longer than duration. The
// handler's context is cancelled, and a result arriving after the deadline is
// dropped. Keep duration below the Lambda timeout so the caller gets a response.
func WithTimeout[Req, Resp any](duration time.Duration) Option[Req, Resp] {
	return func(pipeline pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]] {
		return pipz.NewTimeout(timeoutID, pipeline, duration)
	}
}

// WithCircuitBreaker stops calling the handler after failures consecutive
// failures and answers 500 until recovery has passed. The breaker lives as long
// as the endpoint, which in a Lambda means one warm container.
func WithCircuitBreaker[Req, Resp any](failures int, recovery time.Duration) Option[Req, Resp] {
	return func(pipeline pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]] {
		return pipz.NewCircuitBreaker(circuitBreakerID, pipeline, failures, recovery)
	}
}

// WithRateLimit limits handler calls to rate per second with the given burst.
// Use it to stay under an AWS API quota shared by concurrent invocations.
func WithRateLimit[Req, Resp any](rate float64, burst int) Option[Req, Resp] {
	return func(pipeline pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]] {
		return pipz.NewRateLimiter(rateLimitID, rate, burst, pipeline)
	}
}

// WithErrorHandler passes handler failures to handler before the endpoint
// answers. The failure still reaches the caller and ErrorSignal.
func WithErrorHandler[Req, Resp any](handler pipz.Chainable[*pipz.Error[*Exchange[Req, Resp]]]) Option[Req, Resp] {
	return func(pipeline pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]] {
		return pipz.NewHandle(errorHandlerID, pipeline, handler)
	}
}

// WithFallback tries each fallback in order when the handler fails, e.g. to
// answer a cached policy when Cognito is unreachable. Fallbacks must set the
// exchange's Response.
func WithFallback[Req, Resp any](fallbacks ...pipz.Chainable[*Exchange[Req, Resp]]) Option[Req, Resp] {
	return func(pipeline pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]] {
		all := append([]pipz.Chainable[*Exchange[Req, Resp]]{pipeline}, fallbacks...)
		return pipz.NewFallback(fallbackID, all...)
	}
}

// WithPipeline replaces the handler stage and every option before it.
// custom must set the exchange's Response itself.
func WithPipeline[Req, Resp any](custom pipz.Chainable[*Exchange[Req, Resp]]) Option[Req, Resp] {
	return func(_ pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]] {
		return custom
	}
}

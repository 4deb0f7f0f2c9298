package wulfpack

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/zoobzio/capitan"
)

// Reporter observes ErrorSignal and writes every failure to a structured log.
// Client errors (4xx) are logged as warnings, everything else as errors.
type Reporter struct {
	logger   *slog.Logger
	capitan  *capitan.Capitan
	observer *capitan.Observer
	inflight sync.WaitGroup
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithReporterCapitan sets a custom Capitan instance to observe.
func WithReporterCapitan(c *capitan.Capitan) ReporterOption {
	return func(r *Reporter) {
		r.capitan = c
	}
}

// NewReporter creates a Reporter writing to logger.
// If logger is nil, slog.Default() is used.
func NewReporter(logger *slog.Logger, opts ...ReporterOption) *Reporter {
	r := &Reporter{logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Start begins observing ErrorSignal.
func (r *Reporter) Start() {
	callback := func(ctx context.Context, e *capitan.Event) {
		r.inflight.Add(1)
		defer r.inflight.Done()

		failure, ok := ErrorKey.From(e)
		if !ok {
			return
		}
		r.report(ctx, failure)
	}

	if r.capitan != nil {
		r.observer = r.capitan.Observe(callback, ErrorSignal)
	} else {
		r.observer = capitan.Observe(callback, ErrorSignal)
	}
}

func (r *Reporter) report(ctx context.Context, failure Error) {
	level := slog.LevelError
	if failure.StatusCode >= http.StatusBadRequest && failure.StatusCode < http.StatusInternalServerError {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("operation", failure.Operation),
		slog.String("endpoint", failure.Endpoint),
		slog.String("error", failure.Err),
	}
	if failure.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status", failure.StatusCode))
	}
	if failure.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", failure.RequestID))
	}
	r.logger.LogAttrs(ctx, level, failure.Operation+" failed", attrs...)
}

// Close stops observing and waits for in-flight reports.
func (r *Reporter) Close() error {
	if r.observer != nil {
		r.observer.Close()
	}
	r.inflight.Wait()
	return nil
}

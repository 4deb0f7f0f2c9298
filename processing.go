package wulfpack

import (
	"context"

	"github.com/zoobzio/pipz"
)

// WithApply runs fn before the handler. fn may replace the exchange;
// returning an error aborts processing. Use for validation or enrichment.
func WithApply[Req, Resp any](name string, fn func(context.Context, *Exchange[Req, Resp]) (*Exchange[Req, Resp], error)) Option[Req, Resp] {
	return func(pipeline pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]] {
		id := pipz.NewIdentity(name, "Applies "+name)
		return pipz.NewSequence(id, pipz.Apply(id, fn), pipeline)
	}
}

// WithEffect runs fn before the handler for its side effects only.
// Returning an error aborts processing.
func WithEffect[Req, Resp any](name string, fn func(context.Context, *Exchange[Req, Resp]) error) Option[Req, Resp] {
	return func(pipeline pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]] {
		id := pipz.NewIdentity(name, "Effect "+name)
		return pipz.NewSequence(id, pipz.Effect(id, fn), pipeline)
	}
}

// WithTransform runs a pure transformation before the handler.
func WithTransform[Req, Resp any](name string, fn func(context.Context, *Exchange[Req, Resp]) *Exchange[Req, Resp]) Option[Req, Resp] {
	return func(pipeline pipz.Chainable[*Exchange[Req, Resp]]) pipz.Chainable[*Exchange[Req, Resp]] {
		id := pipz.NewIdentity(name, "Transforms "+name)
		return pipz.NewSequence(id, pipz.Transform(id, fn), pipeline)
	}
}

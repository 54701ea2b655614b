// Package matcher ranks backend candidates against a query item.
//
// A Matcher returns an ordered subset of its candidates. The router treats an
// empty subset as "not found" and a Matcher error like a backend failure.
package matcher

import (
	"context"
	"slices"

	"github.com/Gondolav/inventory-connector/message"
)

// Matcher filters and orders candidates by relevance to query. It must be
// deterministic for a fixed input and must not modify its arguments.
type Matcher interface {
	Match(ctx context.Context, query message.Item, candidates []message.Item) ([]message.Item, error)
}

// Func adapts a function to the Matcher interface.
type Func func(ctx context.Context, query message.Item, candidates []message.Item) ([]message.Item, error)

// Match calls f.
func (f Func) Match(ctx context.Context, query message.Item, candidates []message.Item) ([]message.Item, error) {
	return f(ctx, query, candidates)
}

// Passthrough returns every candidate in backend order.
type Passthrough struct{}

// Match returns a copy of candidates.
func (Passthrough) Match(_ context.Context, _ message.Item, candidates []message.Item) ([]message.Item, error) {
	return slices.Clone(candidates), nil
}

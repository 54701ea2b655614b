package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/Gondolav/inventory-connector/message"
)

// StaticQuerier is an in-memory querier returning fixed candidates.
// Thread-safe for concurrent use.
type StaticQuerier struct {
	mu sync.Mutex

	// Items are returned by every Query
	Items []message.Item
	// QueryErr, when set, is returned by Query
	QueryErr error
	// ConnectErr, when set, is returned by Connect
	ConnectErr error

	// QueryFunc overrides Items and QueryErr
	QueryFunc func(ctx context.Context, item message.Item) ([]message.Item, error)

	Connected      bool
	ConnectCalls   int
	QueryCalls     int
	DisconnectCall int
	Queried        []message.Item
}

// NewStaticQuerier creates a querier answering every query with items.
func NewStaticQuerier(items ...message.Item) *StaticQuerier {
	return &StaticQuerier{Items: items}
}

// Connect marks the querier connected unless ConnectErr is set.
func (q *StaticQuerier) Connect(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ConnectCalls++
	if q.ConnectErr != nil {
		return q.ConnectErr
	}
	q.Connected = true
	return nil
}

// Disconnect marks the querier disconnected.
func (q *StaticQuerier) Disconnect() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.DisconnectCall++
	q.Connected = false
	return nil
}

// Query records item and returns a copy of Items.
func (q *StaticQuerier) Query(ctx context.Context, item message.Item) ([]message.Item, error) {
	q.mu.Lock()
	q.QueryCalls++
	q.Queried = append(q.Queried, item)
	fn := q.QueryFunc
	items, err := slices.Clone(q.Items), q.QueryErr
	q.mu.Unlock()

	if fn != nil {
		return fn(ctx, item)
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Calls returns the number of Query calls.
func (q *StaticQuerier) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.QueryCalls
}

// RecordingReplier stores the replies it is given.
type RecordingReplier struct {
	mu        sync.Mutex
	responses []message.Response

	// Err is returned by every Reply
	Err error
}

// Reply records resp.
func (r *RecordingReplier) Reply(resp message.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.responses = append(r.responses, resp)
	return r.Err
}

// Responses returns a copy of the recorded replies.
func (r *RecordingReplier) Responses() []message.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.responses)
}

// MockMatcher records its input and returns Result, or the candidates when
// Result is nil.
type MockMatcher struct {
	mu sync.Mutex

	Result []message.Item
	Err    error

	Calls      int
	Candidates [][]message.Item
}

// Match implements matcher.Matcher.
func (m *MockMatcher) Match(_ context.Context, _ message.Item, candidates []message.Item) ([]message.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	m.Candidates = append(m.Candidates, slices.Clone(candidates))
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return slices.Clone(m.Result), nil
	}
	return slices.Clone(candidates), nil
}

// CallCount returns the number of Match calls.
func (m *MockMatcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

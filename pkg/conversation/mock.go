package conversation

import (
	"context"
	"sync"
)

// Mock implements Exchanger for testing.
type Mock struct {
	// ExchangeFunc is called by Exchange. If nil, the mock appends the user
	// text and an empty reply to the history.
	ExchangeFunc func(ctx context.Context, req Request) (*Response, error)

	mu       sync.Mutex
	requests []Request
}

// NewMock creates a mock exchanger.
func NewMock() *Mock {
	return &Mock{}
}

// Replying returns a mock whose backend answers every turn with reply.
func Replying(reply string) *Mock {
	return &Mock{
		ExchangeFunc: func(ctx context.Context, req Request) (*Response, error) {
			return AppendTurn(req, reply), nil
		},
	}
}

// Failing returns a mock whose every exchange fails with err.
func Failing(err error) *Mock {
	return &Mock{
		ExchangeFunc: func(ctx context.Context, req Request) (*Response, error) {
			return nil, err
		},
	}
}

// Exchange implements Exchanger.
func (m *Mock) Exchange(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, NewRequest(req.Text, req.ConversationHistory))
	fn := m.ExchangeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return AppendTurn(req, ""), nil
}

// Requests returns every request received.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns how many exchanges were attempted.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

var _ Exchanger = (*Mock)(nil)

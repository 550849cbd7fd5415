package irrecoverable

import (
	"context"
	"testing"
)

// MockSignalerContext is a SignalerContext for tests. Any thrown error
// fails the running test.
type MockSignalerContext struct {
	context.Context
	t *testing.T
}

var _ SignalerContext = (*MockSignalerContext)(nil)

func (m *MockSignalerContext) sealed() {}

func (m *MockSignalerContext) Throw(err error) {
	m.t.Fatalf("unexpected irrecoverable error: %v", err)
}

// NewMockSignalerContextWithCancel derives a cancellable mock context from parent.
func NewMockSignalerContextWithCancel(t *testing.T, parent context.Context) (*MockSignalerContext, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	return &MockSignalerContext{Context: ctx, t: t}, cancel
}

package remote

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockExecutor 是 Executor 的 mock 实现
type MockExecutor struct {
	mock.Mock
}

// NewMockExecutor 创建新的 MockExecutor
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

// Execute 实现 Executor 接口
func (m *MockExecutor) Execute(ctx context.Context, command string) (*Result, error) {
	args := m.Called(ctx, command)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Result), args.Error(1)
}

var _ Executor = (*MockExecutor)(nil)

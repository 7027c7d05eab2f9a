package rbd

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient 是 ImageClient 的 mock 实现
type MockClient struct {
	mock.Mock
}

// NewMockClient 创建新的 MockClient
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) opResult(args mock.Arguments) (*OpResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*OpResult), args.Error(1)
}

// List 实现 ImageClient 接口
func (m *MockClient) List(ctx context.Context, pool string) ([]string, error) {
	args := m.Called(ctx, pool)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// Exists 实现 ImageClient 接口
func (m *MockClient) Exists(ctx context.Context, pool, image string) (*OpResult, error) {
	return m.opResult(m.Called(ctx, pool, image))
}

// Info 实现 ImageClient 接口
func (m *MockClient) Info(ctx context.Context, pool, image string) (*ImageInfo, *OpResult, error) {
	args := m.Called(ctx, pool, image)
	var info *ImageInfo
	if args.Get(0) != nil {
		info = args.Get(0).(*ImageInfo)
	}
	var res *OpResult
	if args.Get(1) != nil {
		res = args.Get(1).(*OpResult)
	}
	return info, res, args.Error(2)
}

// Delete 实现 ImageClient 接口
func (m *MockClient) Delete(ctx context.Context, pool, image string) (*OpResult, error) {
	return m.opResult(m.Called(ctx, pool, image))
}

// Flatten 实现 ImageClient 接口
func (m *MockClient) Flatten(ctx context.Context, pool, image string) (*OpResult, error) {
	return m.opResult(m.Called(ctx, pool, image))
}

// Clone 实现 ImageClient 接口
func (m *MockClient) Clone(ctx context.Context, srcPool, srcImage, snapshot, dstPool, dstImage string) (*OpResult, error) {
	return m.opResult(m.Called(ctx, srcPool, srcImage, snapshot, dstPool, dstImage))
}

// Copy 实现 ImageClient 接口
func (m *MockClient) Copy(ctx context.Context, srcPool, srcImage, dstPool, dstImage string) (*OpResult, error) {
	return m.opResult(m.Called(ctx, srcPool, srcImage, dstPool, dstImage))
}

// SnapshotExists 实现 ImageClient 接口
func (m *MockClient) SnapshotExists(ctx context.Context, pool, image, snapshot string) (*OpResult, error) {
	return m.opResult(m.Called(ctx, pool, image, snapshot))
}

// SnapshotCreate 实现 ImageClient 接口
func (m *MockClient) SnapshotCreate(ctx context.Context, pool, image, snapshot string) (*OpResult, error) {
	return m.opResult(m.Called(ctx, pool, image, snapshot))
}

// SnapshotDelete 实现 ImageClient 接口
func (m *MockClient) SnapshotDelete(ctx context.Context, pool, image, snapshot string) (*OpResult, error) {
	return m.opResult(m.Called(ctx, pool, image, snapshot))
}

var _ ImageClient = (*MockClient)(nil)

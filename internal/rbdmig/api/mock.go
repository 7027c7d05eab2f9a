package api

import (
	"context"

	"github.com/jimyag/rbdmig/internal/rbdmig/entity"
	"github.com/stretchr/testify/mock"
)

// MockJournalService 是 JournalServiceInterface 的 mock 实现
type MockJournalService struct {
	mock.Mock
}

func (m *MockJournalService) ListRuns(ctx context.Context, req *entity.ListRunsRequest) (*entity.ListRunsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ListRunsResponse), args.Error(1)
}

func (m *MockJournalService) GetRun(ctx context.Context, req *entity.GetRunRequest) (*entity.GetRunResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.GetRunResponse), args.Error(1)
}

func (m *MockJournalService) ListCheckpoints(ctx context.Context, req *entity.GetRunRequest) (*entity.ListCheckpointsResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ListCheckpointsResponse), args.Error(1)
}

var _ JournalServiceInterface = (*MockJournalService)(nil)

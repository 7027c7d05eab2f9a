package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jimyag/rbdmig/internal/rbdmig/entity"
	"github.com/jimyag/rbdmig/internal/rbdmig/repository"
	"github.com/jimyag/rbdmig/internal/rbdmig/repository/model"
	"github.com/jimyag/rbdmig/pkg/ginx"
	"github.com/jimyag/rbdmig/pkg/idgen"
	"github.com/jimyag/rbdmig/pkg/steperr"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrRunNotFound 迁移任务不存在
var ErrRunNotFound = ginx.NotFound("RunNotFound", "migration run does not exist")

// Journal 把迁移任务和检查点写入本地数据库
// 实现 Observer，检查点通过 context 中的 run id 归属到任务
type Journal struct {
	idGen          *idgen.Generator
	runRepo        repository.RunRepository
	checkpointRepo repository.CheckpointRepository

	mu  sync.Mutex
	seq map[string]int
}

// NewJournal 创建 Journal
func NewJournal(repo *repository.Repository) *Journal {
	return &Journal{
		idGen:          idgen.New(),
		runRepo:        repository.NewRunRepository(repo.DB()),
		checkpointRepo: repository.NewCheckpointRepository(repo.DB()),
		seq:            make(map[string]int),
	}
}

// Begin 记录一次迁移开始
func (j *Journal) Begin(ctx context.Context, runID string, mappingCount int) error {
	now := time.Now()
	run := &model.Run{
		ID:           runID,
		State:        entity.RunStateRunning,
		MappingCount: mappingCount,
		StartedAt:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := j.runRepo.Create(ctx, run); err != nil {
		return fmt.Errorf("create run %s: %w", runID, err)
	}
	zerolog.Ctx(ctx).Debug().Str("run_id", runID).Msg("Migration run recorded")
	return nil
}

// Checkpoint 实现 Observer 接口
// 写入失败只记录日志，不影响迁移
func (j *Journal) Checkpoint(ctx context.Context, result CheckpointResult) {
	runID := RunID(ctx)
	if runID == "" {
		return
	}
	logger := zerolog.Ctx(ctx)

	j.mu.Lock()
	j.seq[runID]++
	seq := j.seq[runID]
	j.mu.Unlock()

	m, err := checkpointResultToModel(runID, seq, result)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to convert checkpoint")
		return
	}
	if m.ID, err = j.idGen.GenerateCheckpointID(); err != nil {
		logger.Warn().Err(err).Msg("Failed to generate checkpoint ID")
		return
	}
	if err := j.checkpointRepo.Create(ctx, m); err != nil {
		logger.Warn().Err(err).Str("step", result.Step).Msg("Failed to record checkpoint")
	}
}

// Finish 记录迁移结束，runErr 为 nil 表示成功
func (j *Journal) Finish(ctx context.Context, runID string, runErr error) error {
	run, err := j.runRepo.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run %s: %w", runID, err)
	}

	now := time.Now()
	run.FinishedAt = &now
	run.UpdatedAt = now
	run.State = entity.RunStateSucceeded
	if runErr != nil {
		run.State = entity.RunStateFailed
		run.Error = runErr.Error()
		if stepErr, ok := steperr.From(runErr); ok {
			run.FailedStep = stepErr.Code
			run.FailedKind = string(stepErr.Kind)
		}
	}
	if err := j.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}

	j.mu.Lock()
	delete(j.seq, runID)
	j.mu.Unlock()
	return nil
}

// ListRuns 列出迁移任务
func (j *Journal) ListRuns(ctx context.Context, req *entity.ListRunsRequest) (*entity.ListRunsResponse, error) {
	filters := map[string]interface{}{}
	if req != nil {
		if req.State != "" {
			filters["state"] = req.State
		}
		if req.Limit > 0 {
			filters["limit"] = req.Limit
		}
	}

	models, err := j.runRepo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]entity.Run, 0, len(models))
	for _, m := range models {
		run, err := runModelToEntity(m)
		if err != nil {
			return nil, fmt.Errorf("convert run %s: %w", m.ID, err)
		}
		runs = append(runs, *run)
	}
	return &entity.ListRunsResponse{Runs: runs}, nil
}

// GetRun 查询单个迁移任务
func (j *Journal) GetRun(ctx context.Context, req *entity.GetRunRequest) (*entity.GetRunResponse, error) {
	m, err := j.runRepo.GetByID(ctx, req.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", req.ID, err)
	}
	run, err := runModelToEntity(m)
	if err != nil {
		return nil, fmt.Errorf("convert run %s: %w", m.ID, err)
	}
	return &entity.GetRunResponse{Run: run}, nil
}

// ListCheckpoints 按顺序列出迁移任务的检查点
func (j *Journal) ListCheckpoints(ctx context.Context, req *entity.GetRunRequest) (*entity.ListCheckpointsResponse, error) {
	if _, err := j.GetRun(ctx, req); err != nil {
		return nil, err
	}

	models, err := j.checkpointRepo.ListByRunID(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints of %s: %w", req.ID, err)
	}

	checkpoints := make([]entity.Checkpoint, 0, len(models))
	for _, m := range models {
		cp, err := checkpointModelToEntity(m)
		if err != nil {
			return nil, fmt.Errorf("convert checkpoint %s: %w", m.ID, err)
		}
		checkpoints = append(checkpoints, *cp)
	}
	return &entity.ListCheckpointsResponse{Checkpoints: checkpoints}, nil
}

var _ Observer = (*Journal)(nil)

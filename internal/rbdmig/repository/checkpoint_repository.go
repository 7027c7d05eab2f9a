package repository

import (
	"context"

	"github.com/jimyag/rbdmig/internal/rbdmig/repository/model"
	"gorm.io/gorm"
)

// CheckpointRepository 检查点仓库接口
type CheckpointRepository interface {
	Create(ctx context.Context, checkpoint *model.Checkpoint) error
	ListByRunID(ctx context.Context, runID string) ([]*model.Checkpoint, error)
	CountByRunID(ctx context.Context, runID string) (int64, error)
}

type checkpointRepository struct {
	db *gorm.DB
}

// NewCheckpointRepository 创建检查点仓库
func NewCheckpointRepository(db *gorm.DB) CheckpointRepository {
	return &checkpointRepository{db: db}
}

// Create 追加检查点
func (r *checkpointRepository) Create(ctx context.Context, checkpoint *model.Checkpoint) error {
	return r.db.WithContext(ctx).Create(checkpoint).Error
}

// ListByRunID 按序号列出某次迁移的检查点
func (r *checkpointRepository) ListByRunID(ctx context.Context, runID string) ([]*model.Checkpoint, error) {
	var checkpoints []*model.Checkpoint
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("seq ASC").
		Find(&checkpoints).Error; err != nil {
		return nil, err
	}
	return checkpoints, nil
}

// CountByRunID 某次迁移的检查点数量
func (r *checkpointRepository) CountByRunID(ctx context.Context, runID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Checkpoint{}).Where("run_id = ?", runID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

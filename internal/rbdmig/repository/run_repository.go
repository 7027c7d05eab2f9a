package repository

import (
	"context"

	"github.com/jimyag/rbdmig/internal/rbdmig/repository/model"
	"gorm.io/gorm"
)

// RunRepository 迁移任务仓库接口
type RunRepository interface {
	Create(ctx context.Context, run *model.Run) error
	GetByID(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, filters map[string]interface{}) ([]*model.Run, error)
	Update(ctx context.Context, run *model.Run) error
}

type runRepository struct {
	db *gorm.DB
}

// NewRunRepository 创建迁移任务仓库
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

// Create 创建迁移任务
func (r *runRepository) Create(ctx context.Context, run *model.Run) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByID 根据 ID 获取迁移任务
func (r *runRepository) GetByID(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// List 按开始时间倒序列出迁移任务
// 支持的过滤条件：state、limit
func (r *runRepository) List(ctx context.Context, filters map[string]interface{}) ([]*model.Run, error) {
	var runs []*model.Run
	query := r.db.WithContext(ctx).Model(&model.Run{}).Order("started_at DESC")

	if state, ok := filters["state"]; ok {
		query = query.Where("state = ?", state)
	}
	if limit, ok := filters["limit"].(int); ok && limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Update 更新迁移任务
func (r *runRepository) Update(ctx context.Context, run *model.Run) error {
	return r.db.WithContext(ctx).Save(run).Error
}

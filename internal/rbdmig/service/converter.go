package service

import (
	"time"

	"github.com/jimyag/rbdmig/internal/rbdmig/entity"
	"github.com/jimyag/rbdmig/internal/rbdmig/repository/model"
	"github.com/jinzhu/copier"
)

// runModelToEntity 将 model.Run 转换为 entity.Run
func runModelToEntity(m *model.Run) (*entity.Run, error) {
	e := &entity.Run{}
	if err := copier.Copy(e, m); err != nil {
		return nil, err
	}

	// 处理时间字段
	e.StartedAt = m.StartedAt.Format(time.RFC3339)
	if m.FinishedAt != nil {
		e.FinishedAt = m.FinishedAt.Format(time.RFC3339)
	} else {
		e.FinishedAt = ""
	}
	return e, nil
}

// checkpointModelToEntity 将 model.Checkpoint 转换为 entity.Checkpoint
func checkpointModelToEntity(m *model.Checkpoint) (*entity.Checkpoint, error) {
	e := &entity.Checkpoint{}
	if err := copier.Copy(e, m); err != nil {
		return nil, err
	}
	e.CreatedAt = m.CreatedAt.Format(time.RFC3339)
	return e, nil
}

// checkpointResultToModel 将检查点结果转换为 model.Checkpoint
func checkpointResultToModel(runID string, seq int, r CheckpointResult) (*model.Checkpoint, error) {
	m := &model.Checkpoint{}
	if err := copier.Copy(m, &r); err != nil {
		return nil, err
	}
	m.RunID = runID
	m.Seq = seq
	m.Kind = string(r.Kind)
	m.CreatedAt = time.Now()
	return m, nil
}

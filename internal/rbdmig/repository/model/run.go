package model

import "time"

// Run 迁移任务表
type Run struct {
	ID           string     `gorm:"primaryKey;type:text;column:id" json:"id"` // run-{sonyflake}
	State        string     `gorm:"type:text;not null;index:idx_runs_state;column:state" json:"state"`
	MappingCount int        `gorm:"not null;default:0;column:mapping_count" json:"mapping_count"`
	FailedStep   string     `gorm:"type:text;column:failed_step" json:"failed_step"`
	FailedKind   string     `gorm:"type:text;column:failed_kind" json:"failed_kind"`
	Error        string     `gorm:"type:text;column:error" json:"error"`
	StartedAt    time.Time  `gorm:"type:datetime;not null;index:idx_runs_started_at;column:started_at" json:"started_at"`
	FinishedAt   *time.Time `gorm:"type:datetime;column:finished_at" json:"finished_at,omitempty"`
	CreatedAt    time.Time  `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"type:datetime;not null;column:updated_at" json:"updated_at"`
}

// TableName 指定表名
func (Run) TableName() string {
	return "runs"
}

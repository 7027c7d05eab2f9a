package model

import "time"

// Checkpoint 检查点表，只追加
type Checkpoint struct {
	ID         string    `gorm:"primaryKey;type:text;column:id" json:"id"` // ckpt-{sonyflake}
	RunID      string    `gorm:"type:text;not null;index:idx_checkpoints_run_id;column:run_id" json:"run_id"`
	Seq        int       `gorm:"not null;column:seq" json:"seq"`
	Step       string    `gorm:"type:text;not null;index:idx_checkpoints_step;column:step" json:"step"`
	Kind       string    `gorm:"type:text;column:kind" json:"kind"`
	Message    string    `gorm:"type:text;not null;column:message" json:"message"`
	Pool       string    `gorm:"type:text;column:pool" json:"pool"`
	Image      string    `gorm:"type:text;column:image" json:"image"`
	Snapshot   string    `gorm:"type:text;column:snapshot" json:"snapshot"`
	Passed     bool      `gorm:"not null;column:passed" json:"passed"`
	ExitStatus int       `gorm:"not null;default:0;column:exit_status" json:"exit_status"`
	CreatedAt  time.Time `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
}

// TableName 指定表名
func (Checkpoint) TableName() string {
	return "checkpoints"
}

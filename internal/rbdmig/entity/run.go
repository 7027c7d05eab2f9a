package entity

// 迁移任务状态
const (
	RunStateRunning   = "running"
	RunStateSucceeded = "succeeded"
	RunStateFailed    = "failed"
)

// Run 一次迁移任务
type Run struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	MappingCount int    `json:"mapping_count"`
	FailedStep   string `json:"failed_step,omitempty"`
	FailedKind   string `json:"failed_kind,omitempty"`
	Error        string `json:"error,omitempty"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
}

// Checkpoint 一次检查点的结果
type Checkpoint struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	Seq       int    `json:"seq"`
	Step      string `json:"step"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message"`
	Pool      string `json:"pool,omitempty"`
	Image     string `json:"image,omitempty"`
	Snapshot  string `json:"snapshot,omitempty"`
	Passed    bool   `json:"passed"`
	CreatedAt string `json:"created_at"`
}

// ListRunsRequest 查询迁移任务
type ListRunsRequest struct {
	State string `form:"state"`
	Limit int    `form:"limit"`
}

// ListRunsResponse 迁移任务列表
type ListRunsResponse struct {
	Runs []Run `json:"runs"`
}

// GetRunRequest 按 ID 查询
type GetRunRequest struct {
	ID string `uri:"id" binding:"required"`
}

// GetRunResponse 迁移任务详情
type GetRunResponse struct {
	Run *Run `json:"run"`
}

// ListCheckpointsResponse 某次迁移的检查点
type ListCheckpointsResponse struct {
	Checkpoints []Checkpoint `json:"checkpoints"`
}

// Package idgen 提供递增 ID 生成器
//
// 使用 Sonyflake 算法生成全局唯一且递增的 ID，用于标识一次迁移运行。
// 同一次运行的日志、journal 记录以及故障转储文件都带有该 ID。
//
// 生成的 ID 格式：
//   - 运行 ID: run-{递增数字}
//   - 检查点 ID: ckpt-{递增数字}
//
// 使用方式：
//
//	// 使用默认生成器
//	runID, err := idgen.GenerateRunID()
//	// runID: "run-1234567890"
//
//	// 创建独立生成器
//	gen := idgen.New()
//	runID, err := gen.GenerateRunID()
package idgen

// Package steperr 提供迁移流水线使用的带步骤编码的错误类型
//
// 每一个检查点都有稳定的步骤编码（如 "G.03"），失败时返回 *Error，
// 其中包含错误分类（Kind）、可读消息以及结构化上下文，便于写入故障转储文件。
//
// 错误分类：
//   - PreconditionViolation: 变更操作之前的存在性检查失败（如快照已存在）
//   - OperationFailure: 远程变更命令返回非零退出码
//   - PostconditionViolation: 变更命令报告成功，但确认检查与预期不一致
//   - ParseError: 结构化输出无法解析
//   - TransportFailure: 远程命令根本没有执行（连接、认证、会话错误）
//
// 使用示例：
//
//	err := steperr.New("G.03", steperr.KindPrecondition, "snapshot already exists").
//		With("pool", "prod-ephemeral-vms").
//		With("snapshot", "g1-g2-migration-disk-1")
//
//	// 按分类判断
//	if errors.Is(err, steperr.ErrPreconditionViolation) {
//		// ...
//	}
//
//	// 获取步骤编码
//	var stepErr *steperr.Error
//	if errors.As(err, &stepErr) {
//		fmt.Println(stepErr.Code)
//	}
package steperr

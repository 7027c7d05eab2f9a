// Package remote 在迁移管理主机上执行命令
//
// 迁移使用的 ceph 脚本都部署在一台具备 ceph 访问权限的管理主机上，
// 本包通过 SSH 在这台主机上运行命令，并返回标准输出、标准错误和退出码。
//
// 非零退出码不是错误：它作为 Result.ExitStatus 返回，由调用方解释
// （例如 exists 脚本用退出码 1 表示"不存在"）。只有命令根本无法执行时
// （连接、认证、会话失败）才返回 error。
//
// 示例：
//
//	executor, err := remote.NewSSHExecutor(remote.SSHConfig{
//		Host:    "controller-ostack.stage.cloud.muni.cz",
//		User:    "root",
//		KeyFile: "/root/.ssh/id_rsa.g1-g2-ostack-cloud-migration",
//	})
//	if err != nil {
//		return err
//	}
//	defer executor.Close()
//
//	result, err := executor.Execute(ctx, "uname -a")
package remote

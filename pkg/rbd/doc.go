// Package rbd 封装迁移管理主机上的 ceph RBD 脚本
//
// 每个操作对应管理主机上的一个脚本（位于 BaseDir 下），通过 remote.Executor 执行：
//   - 列出存储池中的镜像（List）
//   - 查询镜像是否存在（Exists）
//   - 获取镜像信息（Info，解析 rbd info 的 JSON 输出）
//   - 删除、扁平化镜像（Delete、Flatten）
//   - 从快照克隆镜像（Clone）
//   - 跨存储池复制镜像（Copy，MigrateVolumeSnapshots 为 true 时使用深拷贝脚本）
//   - 查询、创建、删除快照（SnapshotExists、SnapshotCreate、SnapshotDelete）
//
// 命令格式为 "CEPH_USER=<identity> <script> <args...>"，所有参数都经过 shell 转义。
// 使用的 ceph 身份由 IdentityResolver 根据存储池决定：源端存储池使用特权身份
// （client.cinder），其他存储池使用迁移身份（client.migrator）。
//
// 本层不做重试，也不判断退出码：调用方根据 OpResult.ExitStatus 决定成功与否。
//
// 示例：
//
//	resolver := rbd.NewIdentityResolver(
//		[]string{"prod-cinder-volumes", "prod-ephemeral-vms"},
//		"client.cinder", "client.migrator")
//	client := rbd.New(executor, resolver, rbd.Options{BaseDir: "/root/migrator"})
//
//	res, err := client.Exists(ctx, "prod-ephemeral-vms", "disk-1")
//	if err != nil {
//		return err
//	}
//	if res.OK() {
//		// 镜像存在
//	}
package rbd

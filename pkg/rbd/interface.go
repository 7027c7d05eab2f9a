package rbd

import "context"

// ImageClient 定义 RBD 镜像操作接口
type ImageClient interface {
	// List 列出存储池中的所有镜像，结果为空或退出码非零都视为失败
	List(ctx context.Context, pool string) ([]string, error)
	// Exists 查询镜像，ExitStatus 为 0 表示存在
	Exists(ctx context.Context, pool, image string) (*OpResult, error)
	// Info 获取镜像信息
	Info(ctx context.Context, pool, image string) (*ImageInfo, *OpResult, error)
	// Delete 删除镜像
	Delete(ctx context.Context, pool, image string) (*OpResult, error)
	// Flatten 扁平化镜像，解除与父快照的依赖
	Flatten(ctx context.Context, pool, image string) (*OpResult, error)
	// Clone 从 srcPool/srcImage@snapshot 克隆出 dstPool/dstImage
	Clone(ctx context.Context, srcPool, srcImage, snapshot, dstPool, dstImage string) (*OpResult, error)
	// Copy 将 srcPool/srcImage 完整复制为 dstPool/dstImage
	Copy(ctx context.Context, srcPool, srcImage, dstPool, dstImage string) (*OpResult, error)
	// SnapshotExists 查询快照，ExitStatus 为 0 表示存在
	SnapshotExists(ctx context.Context, pool, image, snapshot string) (*OpResult, error)
	// SnapshotCreate 创建快照
	SnapshotCreate(ctx context.Context, pool, image, snapshot string) (*OpResult, error)
	// SnapshotDelete 删除快照
	SnapshotDelete(ctx context.Context, pool, image, snapshot string) (*OpResult, error)
}

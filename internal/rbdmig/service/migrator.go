package service

import (
	"context"
	"fmt"

	"github.com/jimyag/rbdmig/internal/rbdmig/entity"
	"github.com/jimyag/rbdmig/pkg/rbd"
	"github.com/jimyag/rbdmig/pkg/steperr"
	"github.com/rs/zerolog"
)

// SyncFunc 两个阶段之间的同步回调，例如关闭源虚拟机
type SyncFunc func(ctx context.Context) error

// Migrator 把 RBD 镜像从源存储池迁移到目标存储池
//
// 每个镜像依次经过：定位 -> 快照 -> 清空目标 -> 克隆 -> 扁平化 -> 复制 -> 删除克隆 -> 删除快照，
// 每个修改操作前后都有存在性检查，任一检查失败立即终止，不重试也不回滚。
// Migrator 不是并发安全的，同一时间只应运行一个批次。
type Migrator struct {
	images   rbd.ImageClient
	observer Observer
}

// Option Migrator 可选配置
type Option func(*Migrator)

// WithObserver 设置检查点观察者
func WithObserver(o Observer) Option {
	return func(m *Migrator) {
		if o != nil {
			m.observer = o
		}
	}
}

// NewMigrator 创建 Migrator
func NewMigrator(images rbd.ImageClient, opts ...Option) *Migrator {
	m := &Migrator{
		images:   images,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MigrateImages 两阶段迁移一批镜像
//
// 第一阶段为所有映射定位镜像并创建快照；之后调用一次 sync（可以为 nil）；
// 第二阶段按输入顺序逐个执行破坏性步骤。所有快照都创建完成之前不会清空任何目标镜像。
func (m *Migrator) MigrateImages(ctx context.Context, mappings []entity.BlockDeviceMapping, sync SyncFunc) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Int("mappings", len(mappings)).Msg("Migrating RBD images")

	records, err := m.Prepare(ctx, mappings)
	if err != nil {
		return err
	}

	if sync != nil {
		logger.Info().Int("snapshots", len(records)).Msg("All snapshots taken, running phase boundary callback")
		if err := sync(ctx); err != nil {
			return fmt.Errorf("phase boundary callback: %w", err)
		}
	}

	if err := m.Execute(ctx, records); err != nil {
		return err
	}

	logger.Info().Int("mappings", len(mappings)).Msg("RBD images migrated")
	return nil
}

// MigrateImage 迁移单个镜像，等价于没有回调的单元素批次
func (m *Migrator) MigrateImage(ctx context.Context, mapping entity.BlockDeviceMapping) error {
	return m.MigrateImages(ctx, []entity.BlockDeviceMapping{mapping}, nil)
}

// Prepare 第一阶段：定位并创建快照，不修改目标端数据
func (m *Migrator) Prepare(ctx context.Context, mappings []entity.BlockDeviceMapping) ([]entity.MigrationRecord, error) {
	if err := validate(mappings); err != nil {
		return nil, err
	}

	records := make([]entity.MigrationRecord, 0, len(mappings))
	for _, mapping := range mappings {
		record, err := m.locate(ctx, mapping)
		if err != nil {
			return nil, err
		}
		if err := m.snapshot(ctx, record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Execute 第二阶段：按顺序对每条记录执行破坏性步骤
func (m *Migrator) Execute(ctx context.Context, records []entity.MigrationRecord) error {
	for _, record := range records {
		logger := zerolog.Ctx(ctx).With().Str("mapping", record.Mapping.String()).Logger()
		logger.Info().Msg("Migrating RBD image")

		if err := m.migrate(ctx, record); err != nil {
			return err
		}

		logger.Info().Msg("RBD image migrated")
	}
	return nil
}

// Plan 只读地检查每个映射：定位源和目标镜像，确认快照名没有冲突
func (m *Migrator) Plan(ctx context.Context, mappings []entity.BlockDeviceMapping) ([]entity.MigrationRecord, error) {
	if err := validate(mappings); err != nil {
		return nil, err
	}

	records := make([]entity.MigrationRecord, 0, len(mappings))
	for _, mapping := range mappings {
		record, err := m.locate(ctx, mapping)
		if err != nil {
			return nil, err
		}
		if err := m.snapshotNotExists(ctx, record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// validate G.00：整批映射在任何远程调用之前检查
func validate(mappings []entity.BlockDeviceMapping) error {
	for _, mapping := range mappings {
		if err := mapping.Validate(); err != nil {
			return steperr.NewWithRaw("G.00", steperr.KindPrecondition, "block device mapping is incomplete", err).
				With("mapping", mapping.String())
		}
	}
	return nil
}

func (m *Migrator) migrate(ctx context.Context, record entity.MigrationRecord) error {
	steps := []func(context.Context, entity.MigrationRecord) error{
		m.clearDestination,
		m.clone,
		m.flatten,
		m.copyToDestination,
		m.deleteClone,
		m.deleteSnapshot,
	}
	for _, fn := range steps {
		if err := fn(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// locate G.01 / G.02：源镜像和目标镜像都必须恰好存在一个
func (m *Migrator) locate(ctx context.Context, mapping entity.BlockDeviceMapping) (entity.MigrationRecord, error) {
	source, err := m.findImage(ctx, "G.01", "Source", mapping.Source.Pool, mapping.Source.ImageName)
	if err != nil {
		return entity.MigrationRecord{}, err
	}
	destination, err := m.findImage(ctx, "G.02", "Destination", mapping.Destination.Pool, mapping.Destination.VolumeID)
	if err != nil {
		return entity.MigrationRecord{}, err
	}
	return entity.MigrationRecord{
		Mapping:          mapping,
		SourceImage:      source,
		DestinationImage: destination,
		SnapshotName:     entity.SnapshotName(source),
	}, nil
}

func (m *Migrator) findImage(ctx context.Context, code, side, pool, image string) (string, error) {
	s := step{
		code:    code,
		kind:    steperr.KindPrecondition,
		message: side + " RBD image exists - query succeeded",
		pool:    pool,
		image:   image,
	}
	res, err := m.check(ctx, s, func() (*rbd.OpResult, error) {
		return m.images.Exists(ctx, pool, image)
	}, succeeded)
	if err != nil {
		return "", err
	}

	s.message = side + " RBD image exists - single image returned"
	if err := m.verify(ctx, s, res, single); err != nil {
		return "", err
	}
	return res.Lines[0], nil
}

// snapshot G.03 - G.05
func (m *Migrator) snapshot(ctx context.Context, r entity.MigrationRecord) error {
	if err := m.snapshotNotExists(ctx, r); err != nil {
		return err
	}

	pool := r.Mapping.Source.Pool
	if _, err := m.check(ctx, step{
		code: "G.04", kind: steperr.KindOperation,
		message: "Source RBD image snapshot created",
		pool:    pool, image: r.SourceImage, snapshot: r.SnapshotName,
	}, func() (*rbd.OpResult, error) {
		return m.images.SnapshotCreate(ctx, pool, r.SourceImage, r.SnapshotName)
	}, succeeded); err != nil {
		return err
	}

	_, err := m.check(ctx, step{
		code: "G.05", kind: steperr.KindPostcondition,
		message: "Source RBD image snapshot exists",
		pool:    pool, image: r.SourceImage, snapshot: r.SnapshotName,
	}, func() (*rbd.OpResult, error) {
		return m.images.SnapshotExists(ctx, pool, r.SourceImage, r.SnapshotName)
	}, succeeded)
	return err
}

// snapshotNotExists G.03：快照名不能与已有快照冲突，重复迁移需要先人工清理
func (m *Migrator) snapshotNotExists(ctx context.Context, r entity.MigrationRecord) error {
	pool := r.Mapping.Source.Pool
	_, err := m.check(ctx, step{
		code: "G.03", kind: steperr.KindPrecondition,
		message: "Source RBD image has non-colliding snapshot",
		pool:    pool, image: r.SourceImage, snapshot: r.SnapshotName,
	}, func() (*rbd.OpResult, error) {
		return m.images.SnapshotExists(ctx, pool, r.SourceImage, r.SnapshotName)
	}, absent)
	return err
}

// clearDestination G.06 / G.07：目标端占位镜像没有需要保留的数据
func (m *Migrator) clearDestination(ctx context.Context, r entity.MigrationRecord) error {
	pool := r.Mapping.Destination.Pool
	if _, err := m.check(ctx, step{
		code: "G.06", kind: steperr.KindOperation,
		message: "Destination RBD image deletion succeeded",
		pool:    pool, image: r.DestinationImage,
	}, func() (*rbd.OpResult, error) {
		return m.images.Delete(ctx, pool, r.DestinationImage)
	}, succeeded); err != nil {
		return err
	}

	_, err := m.check(ctx, step{
		code: "G.07", kind: steperr.KindPostcondition,
		message: "Destination RBD image does not exist",
		pool:    pool, image: r.DestinationImage,
	}, func() (*rbd.OpResult, error) {
		return m.images.Exists(ctx, pool, r.DestinationImage)
	}, absent)
	return err
}

// clone G.08 / G.09：克隆到源存储池，名称与快照名相同
func (m *Migrator) clone(ctx context.Context, r entity.MigrationRecord) error {
	pool := r.Mapping.Source.Pool
	if _, err := m.check(ctx, step{
		code: "G.08", kind: steperr.KindOperation,
		message: "Source RBD image cloned successfully",
		pool:    pool, image: r.CloneName(), snapshot: r.SnapshotName,
	}, func() (*rbd.OpResult, error) {
		return m.images.Clone(ctx, pool, r.SourceImage, r.SnapshotName, pool, r.CloneName())
	}, succeeded); err != nil {
		return err
	}

	_, err := m.check(ctx, step{
		code: "G.09", kind: steperr.KindPostcondition,
		message: "Source cloned RBD image exists",
		pool:    pool, image: r.CloneName(),
	}, func() (*rbd.OpResult, error) {
		return m.images.Exists(ctx, pool, r.CloneName())
	}, succeeded)
	return err
}

// flatten G.10：只检查退出码，依赖关系由后面删除快照的步骤确认
func (m *Migrator) flatten(ctx context.Context, r entity.MigrationRecord) error {
	pool := r.Mapping.Source.Pool
	_, err := m.check(ctx, step{
		code: "G.10", kind: steperr.KindOperation,
		message: "Source cloned RBD image flattened successfully",
		pool:    pool, image: r.CloneName(),
	}, func() (*rbd.OpResult, error) {
		return m.images.Flatten(ctx, pool, r.CloneName())
	}, succeeded)
	return err
}

// copyToDestination G.11 / G.12
func (m *Migrator) copyToDestination(ctx context.Context, r entity.MigrationRecord) error {
	srcPool, dstPool := r.Mapping.Source.Pool, r.Mapping.Destination.Pool
	if _, err := m.check(ctx, step{
		code: "G.11", kind: steperr.KindOperation,
		message: "Source RBD image copied to destination pool successfully",
		pool:    dstPool, image: r.DestinationImage,
	}, func() (*rbd.OpResult, error) {
		return m.images.Copy(ctx, srcPool, r.CloneName(), dstPool, r.DestinationImage)
	}, succeeded); err != nil {
		return err
	}

	_, err := m.check(ctx, step{
		code: "G.12", kind: steperr.KindPostcondition,
		message: "Destination RBD image exists",
		pool:    dstPool, image: r.DestinationImage,
	}, func() (*rbd.OpResult, error) {
		return m.images.Exists(ctx, dstPool, r.DestinationImage)
	}, succeeded)
	return err
}

// deleteClone G.13 / G.14
func (m *Migrator) deleteClone(ctx context.Context, r entity.MigrationRecord) error {
	pool := r.Mapping.Source.Pool
	if _, err := m.check(ctx, step{
		code: "G.13", kind: steperr.KindOperation,
		message: "Source cloned RBD image deletion succeeded",
		pool:    pool, image: r.CloneName(),
	}, func() (*rbd.OpResult, error) {
		return m.images.Delete(ctx, pool, r.CloneName())
	}, succeeded); err != nil {
		return err
	}

	_, err := m.check(ctx, step{
		code: "G.14", kind: steperr.KindPostcondition,
		message: "Source cloned RBD image does not exist anymore",
		pool:    pool, image: r.CloneName(),
	}, func() (*rbd.OpResult, error) {
		return m.images.Exists(ctx, pool, r.CloneName())
	}, absent)
	return err
}

// deleteSnapshot G.15 - G.17
func (m *Migrator) deleteSnapshot(ctx context.Context, r entity.MigrationRecord) error {
	pool := r.Mapping.Source.Pool
	s := step{pool: pool, image: r.SourceImage, snapshot: r.SnapshotName}

	s.code, s.kind, s.message = "G.15", steperr.KindPrecondition, "Source RBD image snapshot still exists"
	if _, err := m.check(ctx, s, func() (*rbd.OpResult, error) {
		return m.images.SnapshotExists(ctx, pool, r.SourceImage, r.SnapshotName)
	}, succeeded); err != nil {
		return err
	}

	s.code, s.kind, s.message = "G.16", steperr.KindOperation, "Source RBD image snapshot deletion succeeded"
	if _, err := m.check(ctx, s, func() (*rbd.OpResult, error) {
		return m.images.SnapshotDelete(ctx, pool, r.SourceImage, r.SnapshotName)
	}, succeeded); err != nil {
		return err
	}

	s.code, s.kind, s.message = "G.17", steperr.KindPostcondition, "Source RBD image snapshot does not exist anymore"
	_, err := m.check(ctx, s, func() (*rbd.OpResult, error) {
		return m.images.SnapshotExists(ctx, pool, r.SourceImage, r.SnapshotName)
	}, absent)
	return err
}

package service

import (
	"context"
	"path"
	"slices"

	"github.com/jimyag/rbdmig/internal/rbdmig/config"
	"github.com/jimyag/rbdmig/internal/rbdmig/entity"
	"github.com/jimyag/rbdmig/pkg/rbd"
	"github.com/jimyag/rbdmig/pkg/steperr"
	"github.com/rs/zerolog"
)

// DefaultRootDevice 找不到根设备名时使用
const DefaultRootDevice = "/dev/vda"

// VolumeAttachment 源端虚拟机挂载的 cinder 卷
type VolumeAttachment struct {
	AttachmentID string
	VolumeID     string
	VolumeName   string
	Description  string
	SizeGiB      uint64
	// Device 挂载点，例如 /dev/vdb
	Device string
}

// Discovery 根据源端虚拟机信息构造 BlockDeviceMapping
// 目标卷 ID 由调用方在目标端创建卷之后填写
type Discovery struct {
	images rbd.ImageClient
	cfg    *config.Config
}

// NewDiscovery 创建 Discovery
func NewDiscovery(images rbd.ImageClient, cfg *config.Config) *Discovery {
	return &Discovery{images: images, cfg: cfg}
}

// EphemeralDiskImage 虚拟机根盘在临时盘存储池中的镜像名
func EphemeralDiskImage(serverID string) string {
	return serverID + "_disk"
}

// EphemeralDiskMapping 查找虚拟机的临时根盘
// poolImages 是预先列出的源端临时盘存储池镜像；根盘不存在时返回 false
func (d *Discovery) EphemeralDiskMapping(ctx context.Context, serverID, rootDevice string, poolImages []string) (*entity.BlockDeviceMapping, bool, error) {
	pool := d.cfg.Ceph.SourceEphemeralPool
	image := EphemeralDiskImage(serverID)
	logger := zerolog.Ctx(ctx).With().Str("pool", pool).Str("image", image).Logger()

	if !slices.Contains(poolImages, image) {
		logger.Info().Msg("Ephemeral root disk not found")
		return nil, false, nil
	}

	info, res, err := d.images.Info(ctx, pool, image)
	if err != nil {
		if stepErr, ok := steperr.From(err); ok {
			stepErr.Code = "F.24"
			return nil, false, stepErr
		}
		return nil, false, steperr.NewWithRaw("F.24", steperr.KindTransport, "read RBD image info", err).
			With("pool", pool).
			With("image", image)
	}
	logger.Info().Str("step", "F.24").Uint64("size", info.Size).Int("exit_status", res.ExitStatus).
		Msg("Source RBD image information received")

	size := info.SizeGiB()
	if size == 0 {
		return nil, false, steperr.New("F.25", steperr.KindPrecondition, "source RBD image size is zero").
			With("pool", pool).
			With("image", image).
			With("size", info.Size)
	}
	logger.Info().Str("step", "F.25").Uint64("size_gib", size).Msg("Source RBD image size calculated")

	if rootDevice == "" {
		rootDevice = DefaultRootDevice
	}
	return &entity.BlockDeviceMapping{
		Source: entity.BlockDeviceSource{
			StorageType: entity.StorageTypeRBDImage,
			Pool:        pool,
			ImageName:   image,
			VolumeID:    image,
			SizeGiB:     size,
		},
		Destination: entity.BlockDeviceDestination{
			Pool:        d.cfg.Ceph.DestinationCinderPool,
			DeviceName:  path.Base(rootDevice),
			Bootable:    true,
			Name:        d.cfg.DestinationNamePrefix + image,
			Description: "RBD " + pool + "/" + image,
			SizeGiB:     size,
		},
	}, true, nil
}

// VolumeMapping cinder 卷的 BlockDeviceMapping，挂载在根设备上的卷可启动
func (d *Discovery) VolumeMapping(attachment VolumeAttachment, rootDevice string) entity.BlockDeviceMapping {
	return entity.BlockDeviceMapping{
		Source: entity.BlockDeviceSource{
			StorageType:        entity.StorageTypeVolume,
			Pool:               d.cfg.Ceph.SourceCinderPool,
			ImageName:          attachment.VolumeID,
			VolumeID:           attachment.VolumeID,
			VolumeAttachmentID: attachment.AttachmentID,
			SizeGiB:            attachment.SizeGiB,
		},
		Destination: entity.BlockDeviceDestination{
			Pool:        d.cfg.Ceph.DestinationCinderPool,
			DeviceName:  path.Base(attachment.Device),
			Bootable:    rootDevice != "" && attachment.Device == rootDevice,
			Name:        d.cfg.DestinationNamePrefix + attachment.VolumeName,
			Description: attachment.Description,
			SizeGiB:     attachment.SizeGiB,
		},
	}
}

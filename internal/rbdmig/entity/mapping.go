// Package entity 定义迁移过程中的业务实体
package entity

import "fmt"

// 源端块存储类型
const (
	StorageTypeVolume   = "openstack-volume-ceph-rbd-image" // cinder 卷
	StorageTypeRBDImage = "ceph-rbd-image"                  // 临时盘（ephemeral）
)

// SnapshotPrefix 迁移快照以及克隆镜像的名称前缀
const SnapshotPrefix = "g1-g2-migration-"

// BlockDeviceSource 源端块设备
type BlockDeviceSource struct {
	StorageType        string `json:"block_storage_type,omitempty"   yaml:"block_storage_type,omitempty"`
	Pool               string `json:"ceph_pool_name"                 yaml:"ceph_pool_name"`
	ImageName          string `json:"ceph_rbd_image_name"            yaml:"ceph_rbd_image_name"`
	VolumeID           string `json:"volume_id,omitempty"            yaml:"volume_id,omitempty"`
	VolumeAttachmentID string `json:"volume_attachment_id,omitempty" yaml:"volume_attachment_id,omitempty"`
	SizeGiB            uint64 `json:"ceph_rbd_image_size,omitempty"  yaml:"ceph_rbd_image_size,omitempty"`
}

// BlockDeviceDestination 目标端块设备
// VolumeID 是目标端已经创建好的占位卷，同时也是目标存储池中的镜像名
type BlockDeviceDestination struct {
	Pool        string `json:"ceph_pool_name"               yaml:"ceph_pool_name"`
	VolumeID    string `json:"volume_id"                    yaml:"volume_id"`
	DeviceName  string `json:"device_name,omitempty"        yaml:"device_name,omitempty"`
	Bootable    bool   `json:"volume_bootable"              yaml:"volume_bootable"`
	Name        string `json:"volume_name,omitempty"        yaml:"volume_name,omitempty"`
	Description string `json:"volume_description,omitempty" yaml:"volume_description,omitempty"`
	SizeGiB     uint64 `json:"volume_size,omitempty"        yaml:"volume_size,omitempty"`
}

// BlockDeviceMapping 一个迁移单元：源端镜像 -> 目标端卷
type BlockDeviceMapping struct {
	Source      BlockDeviceSource      `json:"source"      yaml:"source"`
	Destination BlockDeviceDestination `json:"destination" yaml:"destination"`
}

// String 返回 src-pool/image -> dst-pool/volume
func (m BlockDeviceMapping) String() string {
	return fmt.Sprintf("%s/%s -> %s/%s",
		m.Source.Pool, m.Source.ImageName, m.Destination.Pool, m.Destination.VolumeID)
}

// Validate 检查迁移所需字段
func (m BlockDeviceMapping) Validate() error {
	switch {
	case m.Source.Pool == "":
		return fmt.Errorf("mapping %s: source pool is empty", m)
	case m.Source.ImageName == "":
		return fmt.Errorf("mapping %s: source image is empty", m)
	case m.Destination.Pool == "":
		return fmt.Errorf("mapping %s: destination pool is empty", m)
	case m.Destination.VolumeID == "":
		return fmt.Errorf("mapping %s: destination volume id is empty", m)
	}
	return nil
}

// MigrationRecord 第一阶段的产物，第二阶段按顺序消费
type MigrationRecord struct {
	Mapping          BlockDeviceMapping `json:"mapping"           yaml:"mapping"`
	SourceImage      string             `json:"source_image"      yaml:"source_image"`
	DestinationImage string             `json:"destination_image" yaml:"destination_image"`
	SnapshotName     string             `json:"snapshot_name"     yaml:"snapshot_name"`
}

// CloneName 临时克隆镜像名
// 与快照同名：快照挂在源镜像上，克隆是源存储池里独立的镜像
func (r MigrationRecord) CloneName() string {
	return r.SnapshotName
}

// SnapshotName 返回源镜像对应的迁移快照名
func SnapshotName(sourceImage string) string {
	return SnapshotPrefix + sourceImage
}

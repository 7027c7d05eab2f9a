package rbd

import (
	"encoding/json"

	"github.com/jimyag/rbdmig/pkg/steperr"
)

// 管理主机上的脚本名
const (
	ScriptImagesList     = "ceph-rbd-images-list.sh"
	ScriptImageInfo      = "ceph-rbd-image-info.sh"
	ScriptImageExists    = "ceph-rbd-image-exists.sh"
	ScriptImageDelete    = "ceph-rbd-image-delete.sh"
	ScriptImageFlatten   = "ceph-rbd-image-flatten.sh"
	ScriptImageClone     = "ceph-rbd-image-clone.sh"
	ScriptImageCopy      = "ceph-rbd-image-copy.sh"
	ScriptImageDeepCopy  = "ceph-rbd-image-deepcopy.sh"
	ScriptSnapshotExists = "ceph-rbd-image-snapshot-exists.sh"
	ScriptSnapshotCreate = "ceph-rbd-image-snapshot-create.sh"
	ScriptSnapshotDelete = "ceph-rbd-image-snapshot-delete.sh"
	ScriptCephAccessible = "ceph-accessible.sh"
)

const gib = 1024 * 1024 * 1024

// OpResult 单次脚本调用的结果
type OpResult struct {
	Command    string
	Lines      []string
	Stderr     string
	ExitStatus int
}

// OK 退出码是否为 0
func (r *OpResult) OK() bool {
	return r != nil && r.ExitStatus == 0
}

// ImageInfo rbd info --format json 的输出
type ImageInfo struct {
	Name            string       `json:"name"`
	ID              string       `json:"id,omitempty"`
	Size            uint64       `json:"size"`
	Objects         uint64       `json:"objects,omitempty"`
	Order           int          `json:"order,omitempty"`
	ObjectSize      uint64       `json:"object_size,omitempty"`
	BlockNamePrefix string       `json:"block_name_prefix,omitempty"`
	Format          int          `json:"format,omitempty"`
	Features        []string     `json:"features,omitempty"`
	Flags           []string     `json:"flags,omitempty"`
	CreateTimestamp string       `json:"create_timestamp,omitempty"`
	Parent          *ImageParent `json:"parent,omitempty"`
}

// ImageParent 克隆镜像的父快照
type ImageParent struct {
	Pool     string `json:"pool"`
	Image    string `json:"image"`
	Snapshot string `json:"snapshot"`
}

// SizeGiB 返回向上取整的 GiB 大小
func (i *ImageInfo) SizeGiB() uint64 {
	return (i.Size + gib - 1) / gib
}

// ParseImageInfo 解析 rbd info 的 JSON 输出
// 输出为空、不是合法 JSON 或缺少 size 字段时返回 ParseError
func ParseImageInfo(output string) (*ImageInfo, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(output), &raw); err != nil {
		return nil, steperr.NewWithRaw("", steperr.KindParse, "image info is not valid JSON", err)
	}
	if _, ok := raw["size"]; !ok {
		return nil, steperr.New("", steperr.KindParse, "image info has no size field")
	}

	var info ImageInfo
	if err := json.Unmarshal([]byte(output), &info); err != nil {
		return nil, steperr.NewWithRaw("", steperr.KindParse, "decode image info", err)
	}
	return &info, nil
}

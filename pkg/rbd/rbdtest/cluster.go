// Package rbdtest 提供内存中的 ceph 集群模拟，实现 remote.Executor
//
// Cluster 解析 rbd 包生成的命令，按脚本语义修改内存状态，
// 用于在没有管理主机的情况下测试完整的迁移流程。
package rbdtest

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/jimyag/rbdmig/pkg/rbd"
	"github.com/jimyag/rbdmig/pkg/remote"
	"github.com/kballard/go-shellquote"
)

// Call 一次脚本调用记录
type Call struct {
	Identity string
	Script   string
	Args     []string
}

type image struct {
	size      uint64
	snapshots map[string]struct{}
	parent    *rbd.ImageParent
}

type faultKey struct {
	script string
	target string
}

// Cluster 内存中的 ceph 集群
type Cluster struct {
	mu     sync.Mutex
	pools  map[string]map[string]*image
	calls  []Call
	faults map[faultKey]int
	// sticky 中的镜像删除时返回成功但实际不删除
	sticky map[string]struct{}
	hooks  map[string]func(Call)
}

// NewCluster 创建空集群
func NewCluster() *Cluster {
	return &Cluster{
		pools:  make(map[string]map[string]*image),
		faults: make(map[faultKey]int),
		sticky: make(map[string]struct{}),
		hooks:  make(map[string]func(Call)),
	}
}

func key(pool, name string) string {
	return pool + "/" + name
}

// AddImage 添加镜像
func (c *Cluster) AddImage(pool, name string, size uint64) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addImageLocked(pool, name, size)
	return c
}

func (c *Cluster) addImageLocked(pool, name string, size uint64) *image {
	if c.pools[pool] == nil {
		c.pools[pool] = make(map[string]*image)
	}
	img := &image{size: size, snapshots: make(map[string]struct{})}
	c.pools[pool][name] = img
	return img
}

// AddSnapshot 给已有镜像添加快照
func (c *Cluster) AddSnapshot(pool, name, snapshot string) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img := c.lookup(pool, name); img != nil {
		img.snapshots[snapshot] = struct{}{}
	}
	return c
}

// FailScript 让 script 对 pool/name 的调用返回 status 退出码
// name 为空时匹配该存储池上的任意调用，pool 和 name 都为空时匹配无参数的调用
func (c *Cluster) FailScript(script, pool, name string, status int) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults[faultKey{script: script, target: key(pool, name)}] = status
	return c
}

// StickyImage 删除 pool/name 时报告成功但镜像仍然存在
func (c *Cluster) StickyImage(pool, name string) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sticky[key(pool, name)] = struct{}{}
	return c
}

// OnScript 在 script 执行前调用 hook
func (c *Cluster) OnScript(script string, hook func(Call)) *Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks[script] = hook
	return c
}

// HasImage 镜像是否存在
func (c *Cluster) HasImage(pool, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(pool, name) != nil
}

// HasSnapshot 快照是否存在
func (c *Cluster) HasSnapshot(pool, name, snapshot string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	img := c.lookup(pool, name)
	if img == nil {
		return false
	}
	_, ok := img.snapshots[snapshot]
	return ok
}

// Parent 返回克隆镜像的父快照，已扁平化或非克隆镜像返回 nil
func (c *Cluster) Parent(pool, name string) *rbd.ImageParent {
	c.mu.Lock()
	defer c.mu.Unlock()
	img := c.lookup(pool, name)
	if img == nil || img.parent == nil {
		return nil
	}
	p := *img.parent
	return &p
}

// Calls 返回所有调用记录
func (c *Cluster) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// Scripts 返回按顺序调用的脚本名
func (c *Cluster) Scripts() []string {
	calls := c.Calls()
	out := make([]string, len(calls))
	for i, call := range calls {
		out[i] = call.Script
	}
	return out
}

func (c *Cluster) lookup(pool, name string) *image {
	if c.pools[pool] == nil {
		return nil
	}
	return c.pools[pool][name]
}

// Execute 实现 remote.Executor 接口
func (c *Cluster) Execute(_ context.Context, command string) (*remote.Result, error) {
	words, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("split command %q: %w", command, err)
	}

	call := Call{}
	if len(words) > 0 && strings.HasPrefix(words[0], "CEPH_USER=") {
		call.Identity = strings.TrimPrefix(words[0], "CEPH_USER=")
		words = words[1:]
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command %q", command)
	}
	call.Script = path.Base(words[0])
	call.Args = words[1:]

	c.mu.Lock()
	hook := c.hooks[call.Script]
	c.calls = append(c.calls, call)
	c.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if status, ok := c.fault(call); ok {
		return &remote.Result{Stderr: "injected failure", ExitStatus: status}, nil
	}
	return c.dispatch(call), nil
}

func (c *Cluster) fault(call Call) (int, bool) {
	if len(call.Args) == 0 {
		status, ok := c.faults[faultKey{script: call.Script, target: key("", "")}]
		return status, ok
	}
	pool := call.Args[0]
	if len(call.Args) > 1 {
		if status, ok := c.faults[faultKey{script: call.Script, target: key(pool, call.Args[1])}]; ok {
			return status, true
		}
	}
	status, ok := c.faults[faultKey{script: call.Script, target: key(pool, "")}]
	return status, ok
}

func fail(format string, args ...any) *remote.Result {
	return &remote.Result{Stderr: fmt.Sprintf(format, args...) + "\n", ExitStatus: 1}
}

func ok(stdout string) *remote.Result {
	return &remote.Result{Stdout: stdout}
}

func (c *Cluster) dispatch(call Call) *remote.Result {
	args := call.Args
	need := func(n int) bool { return len(args) == n }

	switch call.Script {
	case "uname":
		return ok("Linux migrator 5.15.0 x86_64 GNU/Linux\n")

	case rbd.ScriptCephAccessible:
		return ok("ceph ok\n")

	case rbd.ScriptImagesList:
		if !need(1) {
			return fail("usage: %s <pool>", call.Script)
		}
		names := make([]string, 0, len(c.pools[args[0]]))
		for name := range c.pools[args[0]] {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			return ok("")
		}
		return ok(strings.Join(names, "\n") + "\n")

	case rbd.ScriptImageExists:
		if !need(2) {
			return fail("usage: %s <pool> <image>", call.Script)
		}
		if c.lookup(args[0], args[1]) == nil {
			return fail("rbd: error opening image %s", args[1])
		}
		return ok(args[1] + "\n")

	case rbd.ScriptImageInfo:
		if !need(2) {
			return fail("usage: %s <pool> <image>", call.Script)
		}
		img := c.lookup(args[0], args[1])
		if img == nil {
			return fail("rbd: error opening image %s: (2) No such file or directory", args[1])
		}
		data, _ := json.Marshal(rbd.ImageInfo{Name: args[1], Size: img.size, Format: 2, Parent: img.parent})
		return ok(string(data) + "\n")

	case rbd.ScriptImageDelete:
		if !need(2) {
			return fail("usage: %s <pool> <image>", call.Script)
		}
		img := c.lookup(args[0], args[1])
		if img == nil {
			return fail("rbd: delete error: image %s does not exist", args[1])
		}
		if len(img.snapshots) > 0 {
			return fail("rbd: image has snapshots - not removing")
		}
		if c.hasChildren(args[0], args[1]) {
			return fail("rbd: image has dependent clones")
		}
		if _, sticky := c.sticky[key(args[0], args[1])]; !sticky {
			delete(c.pools[args[0]], args[1])
		}
		return ok("")

	case rbd.ScriptImageFlatten:
		if !need(2) {
			return fail("usage: %s <pool> <image>", call.Script)
		}
		img := c.lookup(args[0], args[1])
		if img == nil {
			return fail("rbd: error opening image %s", args[1])
		}
		img.parent = nil
		return ok("Image flatten: 100% complete...done.\n")

	case rbd.ScriptImageClone:
		if !need(5) {
			return fail("usage: %s <src-pool> <src-image> <snap> <dst-pool> <dst-image>", call.Script)
		}
		parent := c.lookup(args[0], args[1])
		if parent == nil {
			return fail("rbd: error opening parent image %s", args[1])
		}
		if _, ok := parent.snapshots[args[2]]; !ok {
			return fail("rbd: snapshot %s does not exist", args[2])
		}
		if c.lookup(args[3], args[4]) != nil {
			return fail("rbd: image %s already exists", args[4])
		}
		clone := c.addImageLocked(args[3], args[4], parent.size)
		clone.parent = &rbd.ImageParent{Pool: args[0], Image: args[1], Snapshot: args[2]}
		return ok("")

	case rbd.ScriptImageCopy, rbd.ScriptImageDeepCopy:
		if !need(4) {
			return fail("usage: %s <src-pool> <src-image> <dst-pool> <dst-image>", call.Script)
		}
		src := c.lookup(args[0], args[1])
		if src == nil {
			return fail("rbd: error opening image %s", args[1])
		}
		if c.lookup(args[2], args[3]) != nil {
			return fail("rbd: image %s already exists", args[3])
		}
		dst := c.addImageLocked(args[2], args[3], src.size)
		if call.Script == rbd.ScriptImageDeepCopy {
			for snap := range src.snapshots {
				dst.snapshots[snap] = struct{}{}
			}
		}
		return ok("Image copy: 100% complete...done.\n")

	case rbd.ScriptSnapshotExists:
		if !need(3) {
			return fail("usage: %s <pool> <image> <snap>", call.Script)
		}
		img := c.lookup(args[0], args[1])
		if img == nil {
			return fail("rbd: error opening image %s", args[1])
		}
		if _, ok := img.snapshots[args[2]]; !ok {
			return fail("snapshot %s not found", args[2])
		}
		return ok(args[2] + "\n")

	case rbd.ScriptSnapshotCreate:
		if !need(3) {
			return fail("usage: %s <pool> <image> <snap>", call.Script)
		}
		img := c.lookup(args[0], args[1])
		if img == nil {
			return fail("rbd: error opening image %s", args[1])
		}
		if _, ok := img.snapshots[args[2]]; ok {
			return fail("rbd: failed to create snapshot: (17) File exists")
		}
		img.snapshots[args[2]] = struct{}{}
		return ok("")

	case rbd.ScriptSnapshotDelete:
		if !need(3) {
			return fail("usage: %s <pool> <image> <snap>", call.Script)
		}
		img := c.lookup(args[0], args[1])
		if img == nil {
			return fail("rbd: error opening image %s", args[1])
		}
		if _, ok := img.snapshots[args[2]]; !ok {
			return fail("rbd: snapshot %s does not exist", args[2])
		}
		if c.snapshotHasChildren(args[0], args[1], args[2]) {
			return fail("rbd: snapshot %s has dependent clones", args[2])
		}
		delete(img.snapshots, args[2])
		return ok("")
	}

	return &remote.Result{Stderr: "command not found\n", ExitStatus: 127}
}

func (c *Cluster) hasChildren(pool, name string) bool {
	for _, images := range c.pools {
		for _, img := range images {
			if img.parent != nil && img.parent.Pool == pool && img.parent.Image == name {
				return true
			}
		}
	}
	return false
}

func (c *Cluster) snapshotHasChildren(pool, name, snapshot string) bool {
	for _, images := range c.pools {
		for _, img := range images {
			if img.parent != nil && *img.parent == (rbd.ImageParent{Pool: pool, Image: name, Snapshot: snapshot}) {
				return true
			}
		}
	}
	return false
}

var _ remote.Executor = (*Cluster)(nil)

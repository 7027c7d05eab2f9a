package rbd

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/jimyag/rbdmig/pkg/remote"
	"github.com/jimyag/rbdmig/pkg/steperr"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
)

// Options Client 配置
type Options struct {
	// BaseDir 管理主机上脚本所在目录
	BaseDir string
	// MigrateVolumeSnapshots 为 true 时 Copy 使用深拷贝脚本，同时复制镜像快照
	MigrateVolumeSnapshots bool
}

// Client 通过管理主机脚本操作 RBD 镜像
type Client struct {
	executor   remote.Executor
	identities *IdentityResolver
	baseDir    string
	deepCopy   bool
}

// New 创建新的 rbd client
func New(executor remote.Executor, identities *IdentityResolver, opts Options) *Client {
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = "/root/migrator"
	}
	return &Client{
		executor:   executor,
		identities: identities,
		baseDir:    baseDir,
		deepCopy:   opts.MigrateVolumeSnapshots,
	}
}

// ScriptPath 返回脚本在管理主机上的完整路径
func (c *Client) ScriptPath(script string) string {
	return path.Join(c.baseDir, script)
}

// CopyScript 返回 Copy 使用的脚本名
func (c *Client) CopyScript() string {
	if c.deepCopy {
		return ScriptImageDeepCopy
	}
	return ScriptImageCopy
}

// Command 拼接命令
// identity 为空时不加 CEPH_USER 前缀
func (c *Client) Command(identity, script string, args ...string) string {
	var b strings.Builder
	if identity != "" {
		b.WriteString("CEPH_USER=")
		b.WriteString(shellquote.Join(identity))
		b.WriteString(" ")
	}
	b.WriteString(shellquote.Join(c.ScriptPath(script)))
	if len(args) > 0 {
		b.WriteString(" ")
		b.WriteString(shellquote.Join(args...))
	}
	return b.String()
}

// run 执行一次脚本调用
func (c *Client) run(ctx context.Context, identity, script string, args ...string) (*OpResult, error) {
	command := c.Command(identity, script, args...)
	result, err := c.executor.Execute(ctx, command)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", script, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("script", script).
		Str("identity", identity).
		Strs("args", args).
		Int("exit_status", result.ExitStatus).
		Msg("RBD script finished")

	return &OpResult{
		Command:    command,
		Lines:      result.Lines(),
		Stderr:     strings.TrimSpace(result.Stderr),
		ExitStatus: result.ExitStatus,
	}, nil
}

// List 列出存储池中的镜像
func (c *Client) List(ctx context.Context, pool string) ([]string, error) {
	res, err := c.run(ctx, "", ScriptImagesList, pool)
	if err != nil {
		return nil, err
	}
	if res.ExitStatus != 0 {
		return nil, steperr.New("", steperr.KindOperation, "list RBD pool images").
			With("pool", pool).
			With("exit_status", res.ExitStatus).
			With("stderr", res.Stderr)
	}
	if len(res.Lines) == 0 {
		return nil, steperr.New("", steperr.KindOperation, "RBD pool image list is empty").
			With("pool", pool)
	}
	return res.Lines, nil
}

// Exists 查询镜像是否存在
func (c *Client) Exists(ctx context.Context, pool, image string) (*OpResult, error) {
	return c.run(ctx, c.identities.Resolve(pool, ""), ScriptImageExists, pool, image)
}

// Info 获取镜像信息
func (c *Client) Info(ctx context.Context, pool, image string) (*ImageInfo, *OpResult, error) {
	res, err := c.run(ctx, c.identities.Resolve(pool, ""), ScriptImageInfo, pool, image)
	if err != nil {
		return nil, nil, err
	}
	info, err := ParseImageInfo(strings.Join(res.Lines, "\n"))
	if err != nil {
		if stepErr, ok := steperr.From(err); ok {
			stepErr.WithContext(map[string]any{
				"pool":        pool,
				"image":       image,
				"exit_status": res.ExitStatus,
				"stderr":      res.Stderr,
			})
		}
		return nil, res, err
	}
	return info, res, nil
}

// Delete 删除镜像
func (c *Client) Delete(ctx context.Context, pool, image string) (*OpResult, error) {
	return c.run(ctx, c.identities.Resolve(pool, ""), ScriptImageDelete, pool, image)
}

// Flatten 扁平化镜像
func (c *Client) Flatten(ctx context.Context, pool, image string) (*OpResult, error) {
	return c.run(ctx, c.identities.Resolve(pool, ""), ScriptImageFlatten, pool, image)
}

// Clone 从快照克隆镜像
func (c *Client) Clone(ctx context.Context, srcPool, srcImage, snapshot, dstPool, dstImage string) (*OpResult, error) {
	return c.run(ctx, c.identities.Resolve(srcPool, dstPool), ScriptImageClone,
		srcPool, srcImage, snapshot, dstPool, dstImage)
}

// Copy 跨存储池复制镜像
func (c *Client) Copy(ctx context.Context, srcPool, srcImage, dstPool, dstImage string) (*OpResult, error) {
	return c.run(ctx, c.identities.Resolve(srcPool, dstPool), c.CopyScript(),
		srcPool, srcImage, dstPool, dstImage)
}

// SnapshotExists 查询快照是否存在
func (c *Client) SnapshotExists(ctx context.Context, pool, image, snapshot string) (*OpResult, error) {
	return c.run(ctx, c.identities.Resolve(pool, ""), ScriptSnapshotExists, pool, image, snapshot)
}

// SnapshotCreate 创建快照
func (c *Client) SnapshotCreate(ctx context.Context, pool, image, snapshot string) (*OpResult, error) {
	return c.run(ctx, c.identities.Resolve(pool, ""), ScriptSnapshotCreate, pool, image, snapshot)
}

// SnapshotDelete 删除快照
func (c *Client) SnapshotDelete(ctx context.Context, pool, image, snapshot string) (*OpResult, error) {
	return c.run(ctx, c.identities.Resolve(pool, ""), ScriptSnapshotDelete, pool, image, snapshot)
}

var _ ImageClient = (*Client)(nil)

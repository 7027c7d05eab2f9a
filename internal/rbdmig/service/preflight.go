package service

import (
	"context"

	"github.com/jimyag/rbdmig/pkg/rbd"
	"github.com/jimyag/rbdmig/pkg/remote"
	"github.com/jimyag/rbdmig/pkg/steperr"
	"github.com/rs/zerolog"
)

// Preflight 迁移前检查管理主机和 ceph 集群
type Preflight struct {
	executor remote.Executor
	client   *rbd.Client
	pools    []string
}

// NewPreflight 创建 Preflight，pools 是需要列出镜像的源端存储池
func NewPreflight(executor remote.Executor, client *rbd.Client, pools ...string) *Preflight {
	return &Preflight{
		executor: executor,
		client:   client,
		pools:    pools,
	}
}

// Run 依次检查：
//   - D.01 管理主机可以执行命令
//   - D.02 管理主机可以访问 ceph
//   - D.03 每个源端存储池都能列出镜像
//
// 返回 存储池 -> 镜像名 列表
func (p *Preflight) Run(ctx context.Context) (map[string][]string, error) {
	logger := zerolog.Ctx(ctx)

	if err := p.remoteCommand(ctx, "D.01", "Migrator host is reachable", "uname -a"); err != nil {
		return nil, err
	}
	if err := p.remoteCommand(ctx, "D.02", "Ceph is accessible from migrator host",
		p.client.Command("", rbd.ScriptCephAccessible)); err != nil {
		return nil, err
	}

	images := make(map[string][]string, len(p.pools))
	for _, pool := range p.pools {
		names, err := p.client.List(ctx, pool)
		if err != nil {
			if stepErr, ok := steperr.From(err); ok {
				stepErr.Code = "D.03"
				logger.Error().Err(stepErr).Str("step", "D.03").Str("pool", pool).Msg("Source pool listing failed")
				return nil, stepErr
			}
			return nil, steperr.NewWithRaw("D.03", steperr.KindTransport, "list source pool images", err).
				With("pool", pool)
		}
		logger.Info().Str("step", "D.03").Str("pool", pool).Int("images", len(names)).Msg("Source pool images listed")
		images[pool] = names
	}
	return images, nil
}

func (p *Preflight) remoteCommand(ctx context.Context, code, message, command string) error {
	logger := zerolog.Ctx(ctx).With().Str("step", code).Logger()
	logger.Debug().Str("command", command).Msg(message)

	res, err := p.executor.Execute(ctx, command)
	if err != nil {
		logger.Error().Err(err).Msg("Checkpoint could not be evaluated")
		return steperr.NewWithRaw(code, steperr.KindTransport, message, err).With("command", command)
	}
	if !res.OK() {
		logger.Error().Int("exit_status", res.ExitStatus).Str("stderr", res.Stderr).Msg("Checkpoint violated: " + message)
		return steperr.New(code, steperr.KindPrecondition, message).
			With("command", command).
			With("exit_status", res.ExitStatus).
			With("stderr", res.Stderr)
	}
	logger.Info().Str("output", firstLine(res)).Msg(message)
	return nil
}

func firstLine(res *remote.Result) string {
	if lines := res.Lines(); len(lines) > 0 {
		return lines[0]
	}
	return ""
}

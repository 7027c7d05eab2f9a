// Package service 实现 RBD 镜像迁移流程
package service

import (
	"context"
	"strings"

	"github.com/jimyag/rbdmig/pkg/rbd"
	"github.com/jimyag/rbdmig/pkg/steperr"
	"github.com/rs/zerolog"
)

// CheckpointResult 单个检查点的结果
type CheckpointResult struct {
	Step       string
	Kind       steperr.Kind
	Message    string
	Pool       string
	Image      string
	Snapshot   string
	Passed     bool
	ExitStatus int
}

// Observer 接收检查点结果，例如迁移记录
type Observer interface {
	Checkpoint(ctx context.Context, result CheckpointResult)
}

type nopObserver struct{}

func (nopObserver) Checkpoint(context.Context, CheckpointResult) {}

// Observers 把检查点结果依次交给多个 Observer
type Observers []Observer

// Checkpoint 实现 Observer 接口
func (o Observers) Checkpoint(ctx context.Context, result CheckpointResult) {
	for _, observer := range o {
		observer.Checkpoint(ctx, result)
	}
}

// step 描述一个检查点
// kind 是检查不通过时返回的错误分类
type step struct {
	code     string
	kind     steperr.Kind
	message  string
	pool     string
	image    string
	snapshot string
}

// 判断脚本结果是否满足检查点
type predicate func(res *rbd.OpResult) bool

func succeeded(res *rbd.OpResult) bool { return res.ExitStatus == 0 }

// absent 查询脚本约定：退出码非 0 表示不存在
func absent(res *rbd.OpResult) bool { return res.ExitStatus != 0 }

func single(res *rbd.OpResult) bool { return len(res.Lines) == 1 }

func (s step) logger(ctx context.Context) *zerolog.Logger {
	c := zerolog.Ctx(ctx).With().Str("step", s.code)
	if s.pool != "" {
		c = c.Str("pool", s.pool)
	}
	if s.image != "" {
		c = c.Str("image", s.image)
	}
	if s.snapshot != "" {
		c = c.Str("snapshot", s.snapshot)
	}
	logger := c.Logger()
	return &logger
}

func (s step) context(e *steperr.Error) *steperr.Error {
	if s.pool != "" {
		e.With("pool", s.pool)
	}
	if s.image != "" {
		e.With("image", s.image)
	}
	if s.snapshot != "" {
		e.With("snapshot", s.snapshot)
	}
	return e
}

func (s step) error(res *rbd.OpResult) *steperr.Error {
	e := s.context(steperr.New(s.code, s.kind, s.message)).
		With("command", res.Command).
		With("exit_status", res.ExitStatus)
	if res.Stderr != "" {
		e.With("stderr", res.Stderr)
	}
	if len(res.Lines) > 0 {
		e.With("output", strings.Join(res.Lines, "\n"))
	}
	return e
}

// check 执行 call 并用 ok 判断结果
func (m *Migrator) check(ctx context.Context, s step, call func() (*rbd.OpResult, error), ok predicate) (*rbd.OpResult, error) {
	s.logger(ctx).Debug().Msg(s.message)

	res, err := call()
	if err != nil {
		m.observe(ctx, s, steperr.KindTransport, false, -1)
		s.logger(ctx).Error().Err(err).Msg("Checkpoint could not be evaluated")
		return nil, s.context(steperr.NewWithRaw(s.code, steperr.KindTransport, s.message, err))
	}
	return res, m.verify(ctx, s, res, ok)
}

// verify 判断已有的脚本结果
// 通过记录 info 日志，不通过记录 error 日志并返回 *steperr.Error
func (m *Migrator) verify(ctx context.Context, s step, res *rbd.OpResult, ok predicate) error {
	logger := s.logger(ctx)
	if ok(res) {
		m.observe(ctx, s, "", true, res.ExitStatus)
		logger.Info().Int("exit_status", res.ExitStatus).Msg(s.message)
		return nil
	}

	m.observe(ctx, s, s.kind, false, res.ExitStatus)
	logger.Error().
		Int("exit_status", res.ExitStatus).
		Str("stderr", res.Stderr).
		Str("kind", string(s.kind)).
		Msg("Checkpoint violated: " + s.message)
	return s.error(res)
}

func (m *Migrator) observe(ctx context.Context, s step, kind steperr.Kind, passed bool, exitStatus int) {
	m.observer.Checkpoint(ctx, CheckpointResult{
		Step:       s.code,
		Kind:       kind,
		Message:    s.message,
		Pool:       s.pool,
		Image:      s.image,
		Snapshot:   s.snapshot,
		Passed:     passed,
		ExitStatus: exitStatus,
	})
}

// Package rbdmig 组装迁移工具的各个组件：日志、管理主机连接、镜像操作、迁移记录和记录查询服务
package rbdmig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jimmicro/grace"
	"github.com/jimyag/rbdmig/internal/rbdmig/api"
	"github.com/jimyag/rbdmig/internal/rbdmig/config"
	"github.com/jimyag/rbdmig/internal/rbdmig/repository"
	"github.com/jimyag/rbdmig/internal/rbdmig/service"
	"github.com/jimyag/rbdmig/pkg/rbd"
	"github.com/jimyag/rbdmig/pkg/remote"
	"github.com/rs/zerolog"
)

// NewLogger 按配置创建日志，并设置为 zerolog 的默认 context logger
func NewLogger(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	return logger, nil
}

// Dial 根据配置连接管理主机
func Dial(cfg *config.Config) (*remote.SSHExecutor, error) {
	return remote.NewSSHExecutor(remote.SSHConfig{
		Host:           cfg.Migrator.Host,
		Port:           cfg.Migrator.Port,
		User:           cfg.Migrator.User,
		KeyFile:        cfg.Migrator.SSHKeyFile,
		KnownHostsFile: cfg.Migrator.KnownHostsFile,
		DialTimeout:    cfg.Migrator.DialTimeout,
	})
}

// App 一次命令执行所需的组件
type App struct {
	cfg      *config.Config
	executor remote.Executor
	client   *rbd.Client

	// repo 和 journal 仅在配置了 journal.path 时存在
	repo    *repository.Repository
	journal *service.Journal
}

// New 创建 App，executor 通常来自 Dial
func New(cfg *config.Config, executor remote.Executor) (*App, error) {
	identities := rbd.NewIdentityResolver(cfg.SourcePools(), cfg.Ceph.PrivilegedClient, cfg.Ceph.MigratorClient)
	app := &App{
		cfg:      cfg,
		executor: executor,
		client: rbd.New(executor, identities, rbd.Options{
			BaseDir:                cfg.Migrator.BaseDir,
			MigrateVolumeSnapshots: cfg.MigrateVolumeSnapshots,
		}),
	}

	if cfg.JournalEnabled() {
		repo, err := repository.New(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		app.repo = repo
		app.journal = service.NewJournal(repo)
	}
	return app, nil
}

// Config 返回配置
func (a *App) Config() *config.Config {
	return a.cfg
}

// Client 返回镜像操作客户端
func (a *App) Client() *rbd.Client {
	return a.client
}

// Executor 返回管理主机执行器
func (a *App) Executor() remote.Executor {
	return a.executor
}

// Journal 未启用迁移记录时返回 nil
func (a *App) Journal() *service.Journal {
	return a.journal
}

// Migrator 创建迁移器，启用迁移记录时检查点同时写入数据库
func (a *App) Migrator(observers ...service.Observer) *service.Migrator {
	if a.journal != nil {
		observers = append(observers, a.journal)
	}
	var opts []service.Option
	if len(observers) > 0 {
		opts = append(opts, service.WithObserver(service.Observers(observers)))
	}
	return service.NewMigrator(a.client, opts...)
}

// Preflight 创建迁移前检查
func (a *App) Preflight() *service.Preflight {
	return service.NewPreflight(a.executor, a.client, a.cfg.SourcePools()...)
}

// Discovery 创建 BlockDeviceMapping 构造器
func (a *App) Discovery() *service.Discovery {
	return service.NewDiscovery(a.client, a.cfg)
}

// Close 关闭迁移记录数据库；管理主机连接由创建者关闭
func (a *App) Close() error {
	if a.repo == nil {
		return nil
	}
	return a.repo.Close()
}

// Server 迁移记录查询服务
type Server struct {
	addr    string
	journal *journalService
}

// NewServer 创建查询服务，需要启用迁移记录
func NewServer(app *App) (*Server, error) {
	if app.journal == nil {
		return nil, fmt.Errorf("journal is not enabled, set journal.path")
	}
	apiInstance, err := api.New(app.journal, app.cfg.Journal.Listen)
	if err != nil {
		return nil, err
	}
	return &Server{
		addr:    app.cfg.Journal.Listen,
		journal: &journalService{api: apiInstance},
	}, nil
}

// Run 阻塞直到收到退出信号、ctx 取消或监听失败。
// ctx 取消返回 nil，监听失败返回对应错误，不会调用 os.Exit
func (s *Server) Run(ctx context.Context) error {
	shepherd := grace.NewShepherd(
		[]grace.Grace{s.journal},
		grace.WithTimeout(30*time.Second),
		grace.WithLogger(&graceLogger{logger: zerolog.Ctx(ctx)}),
	)

	startErr := shepherd.StartErr(ctx)
	if err := s.journal.runErr(); err != nil && !isCanceled(err) {
		return fmt.Errorf("serve journal API on %s: %w", s.addr, err)
	}
	if isCanceled(startErr) {
		return nil
	}
	return startErr
}

// Shutdown 关闭查询服务
func (s *Server) Shutdown(ctx context.Context) error {
	return s.journal.Shutdown(ctx)
}

// Name 实现 grace.Grace 接口
func (s *Server) Name() string {
	return "rbdmig journal server"
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// journalService 记录 API 的退出原因。
// grace 只在服务返回错误时结束等待，所以 ctx 取消也以 ctx.Err() 返回
type journalService struct {
	api *api.API

	mu  sync.Mutex
	err error
}

func (j *journalService) Run(ctx context.Context) error {
	err := j.api.Run(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
	return err
}

func (j *journalService) runErr() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *journalService) Shutdown(ctx context.Context) error {
	return j.api.Shutdown(ctx)
}

func (j *journalService) Name() string {
	return j.api.Name()
}

// graceLogger 把 grace 的生命周期日志写入 ctx 上的 zerolog
type graceLogger struct {
	logger *zerolog.Logger
}

func (l *graceLogger) Info(msg string, args ...interface{}) {
	l.logger.Info().Str("component", "grace").Msgf(msg, args...)
}

func (l *graceLogger) Error(msg string, args ...interface{}) {
	l.logger.Error().Str("component", "grace").Msgf(msg, args...)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jimyag/rbdmig/internal/rbdmig"
	"github.com/jimyag/rbdmig/internal/rbdmig/config"
	"github.com/jimyag/rbdmig/internal/rbdmig/service"
	"github.com/jimyag/rbdmig/pkg/idgen"
	"github.com/jimyag/rbdmig/pkg/remote"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	configFile string
	cfg        *config.Config
)

// newExecutor 连接管理主机，测试中替换为内存实现
var newExecutor = func(cfg *config.Config) (remote.Executor, func() error, error) {
	executor, err := rbdmig.Dial(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect migrator host: %w", err)
	}
	return executor, executor.Close, nil
}

// 命令行参数 -> 配置项
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"migrator-host": "migrator.host",
	"ssh-key":       "migrator.ssh_key_file",
	"journal":       "journal.path",
}

var rootCmd = &cobra.Command{
	Use:   "rbdmig",
	Short: "Ceph RBD image migration tool",
	Long: `Migrate Ceph RBD images from the source cloud pools into pre-created
destination volumes using the scripts installed on the migrator host.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute 执行命令，收到 SIGINT/SIGTERM 时取消 context
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "json", "log format: json or console")
	flags.String("migrator-host", "", "migrator host running the ceph scripts")
	flags.String("ssh-key", "", "private key for the migrator host")
	flags.String("journal", "", "journal database path, empty disables the journal")
}

// setup 加载配置、初始化日志，并给本次执行分配 run id
func setup(cmd *cobra.Command, _ []string) error {
	bound := make(map[string]*pflag.Flag, len(flagKeys))
	for name, key := range flagKeys {
		bound[key] = cmd.Flags().Lookup(name)
	}

	loaded, err := config.Load(configFile, bound)
	if err != nil {
		return err
	}
	logger, err := rbdmig.NewLogger(loaded.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	runID, err := idgen.GenerateRunID()
	if err != nil {
		return err
	}
	logger = logger.With().Str("run_id", runID).Logger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = service.WithRunID(logger.WithContext(ctx), runID)
	cmd.SetContext(ctx)
	cfg = loaded
	return nil
}

// openApp 组装 App；dial 为 false 时不连接管理主机
func openApp(dial bool) (*rbdmig.App, func(), error) {
	var (
		executor remote.Executor
		closer   = func() error { return nil }
	)
	if dial {
		e, c, err := newExecutor(cfg)
		if err != nil {
			return nil, nil, err
		}
		executor, closer = e, c
	}

	app, err := rbdmig.New(cfg, executor)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return app, func() {
		_ = app.Close()
		_ = closer()
	}, nil
}

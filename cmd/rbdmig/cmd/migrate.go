package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jimyag/rbdmig/internal/rbdmig"
	"github.com/jimyag/rbdmig/internal/rbdmig/entity"
	"github.com/jimyag/rbdmig/internal/rbdmig/service"
	"github.com/jimyag/rbdmig/pkg/remote"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// mappingsFile migrate 读取、mapping 输出的文件格式
type mappingsFile struct {
	Mappings []entity.BlockDeviceMapping `yaml:"mappings"`
}

var migrateOpts struct {
	file        string
	pause       bool
	syncCommand string
	dryRun      bool
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the RBD images listed in a mappings file",
	Long: `Migrate every block device mapping of the file in two phases.

The first phase locates all images and creates the migration snapshots.
Between the phases the sync command runs on the migrator host and/or the
tool waits for confirmation (--pause), e.g. while the source servers are
shut down. The second phase copies each image into its destination volume.

Examples:
  # Check the plan without changing anything
  rbdmig migrate -f mappings.yaml --dry-run

  # Migrate, waiting for Enter between the phases
  rbdmig migrate -f mappings.yaml --pause`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mappings, err := loadMappings(migrateOpts.file)
		if err != nil {
			return err
		}

		app, closeApp, err := openApp(true)
		if err != nil {
			return err
		}
		defer closeApp()

		ctx := cmd.Context()
		if migrateOpts.dryRun {
			return service.DumpOnFailure(ctx, cfg.ExceptionTraceFile, printPlan(cmd, app, mappings))
		}

		callback := syncFunc(cmd, app.Executor(), migrateOpts.syncCommand, migrateOpts.pause)
		if err := runMigration(ctx, app, mappings, callback); err != nil {
			return service.DumpOnFailure(ctx, cfg.ExceptionTraceFile, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d images (run %s)\n", len(mappings), service.RunID(ctx))
		return nil
	},
}

func init() {
	flags := migrateCmd.Flags()
	flags.StringVarP(&migrateOpts.file, "file", "f", "", "mappings file (yaml)")
	flags.BoolVar(&migrateOpts.pause, "pause", false, "wait for Enter between the snapshot and the copy phase")
	flags.StringVar(&migrateOpts.syncCommand, "sync-command", "", "command run on the migrator host between the phases")
	flags.BoolVar(&migrateOpts.dryRun, "dry-run", false, "only locate the images and print the plan")
	_ = migrateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(migrateCmd)
}

func loadMappings(path string) ([]entity.BlockDeviceMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings file: %w", err)
	}
	var file mappingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse mappings file %s: %w", path, err)
	}
	if len(file.Mappings) == 0 {
		return nil, fmt.Errorf("mappings file %s has no mappings", path)
	}
	return file.Mappings, nil
}

// runMigration 执行迁移，启用迁移记录时记录开始和结束；记录失败只告警
func runMigration(ctx context.Context, app *rbdmig.App, mappings []entity.BlockDeviceMapping, callback service.SyncFunc) (err error) {
	if journal := app.Journal(); journal != nil {
		runID := service.RunID(ctx)
		if beginErr := journal.Begin(ctx, runID, len(mappings)); beginErr != nil {
			// 没有开始记录就不写结束记录，迁移照常进行
			zerolog.Ctx(ctx).Warn().Err(beginErr).Str("run_id", runID).Msg("Failed to record migration start")
		} else {
			defer func() {
				if finishErr := journal.Finish(ctx, runID, err); finishErr != nil {
					zerolog.Ctx(ctx).Warn().Err(finishErr).Msg("Failed to record migration result")
				}
			}()
		}
	}
	return app.Migrator().MigrateImages(ctx, mappings, callback)
}

// syncFunc 构造两个阶段之间的回调，不需要同步时返回 nil
func syncFunc(cmd *cobra.Command, executor remote.Executor, command string, pause bool) service.SyncFunc {
	if command == "" && !pause {
		return nil
	}
	return func(ctx context.Context) error {
		if command != "" {
			res, err := executor.Execute(ctx, command)
			if err != nil {
				return fmt.Errorf("run sync command: %w", err)
			}
			if !res.OK() {
				return fmt.Errorf("sync command %q exited with status %d: %s",
					command, res.ExitStatus, strings.TrimSpace(res.Stderr))
			}
			zerolog.Ctx(ctx).Info().Str("command", command).Msg("Sync command finished")
		}
		if pause {
			fmt.Fprint(cmd.OutOrStdout(), "Snapshots created. Press Enter to start copying...")
			if _, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n'); err != nil {
				return fmt.Errorf("wait for confirmation: %w", err)
			}
		}
		return nil
	}
}

func printPlan(cmd *cobra.Command, app *rbdmig.App, mappings []entity.BlockDeviceMapping) error {
	records, err := app.Migrator().Plan(cmd.Context(), mappings)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("nothing to migrate")
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tDESTINATION\tSNAPSHOT\tCLONE\tCOPY")
	for _, r := range records {
		fmt.Fprintf(w, "%s/%s\t%s/%s\t%s\t%s/%s\t%s\n",
			r.Mapping.Source.Pool, r.SourceImage,
			r.Mapping.Destination.Pool, r.DestinationImage,
			r.SnapshotName,
			r.Mapping.Source.Pool, r.CloneName(),
			app.Client().CopyScript())
	}
	return w.Flush()
}

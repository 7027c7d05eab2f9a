package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/jimyag/rbdmig/internal/rbdmig"
	"github.com/jimyag/rbdmig/internal/rbdmig/entity"
	"github.com/spf13/cobra"
)

var journalOpts struct {
	state string
	limit int
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect recorded migration runs",
	Long: `Inspect the migration runs and checkpoints recorded in the journal
database. The journal is written only when journal.path (--journal) is set.`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List migration runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, closeApp, err := openJournal()
		if err != nil {
			return err
		}
		defer closeApp()

		resp, err := app.Journal().ListRuns(cmd.Context(), &entity.ListRunsRequest{
			State: journalOpts.state,
			Limit: journalOpts.limit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tMAPPINGS\tFAILED STEP\tSTARTED\tFINISHED")
		for _, run := range resp.Runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				run.ID, run.State, run.MappingCount, dash(run.FailedStep), run.StartedAt, dash(run.FinishedAt))
		}
		return w.Flush()
	},
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a migration run and its checkpoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, closeApp, err := openJournal()
		if err != nil {
			return err
		}
		defer closeApp()

		ctx := cmd.Context()
		req := &entity.GetRunRequest{ID: args[0]}
		run, err := app.Journal().GetRun(ctx, req)
		if err != nil {
			return err
		}
		checkpoints, err := app.Journal().ListCheckpoints(ctx, req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run %s: %s (%d mappings)\n", run.Run.ID, run.Run.State, run.Run.MappingCount)
		if run.Run.Error != "" {
			fmt.Fprintf(out, "Error: %s\n", run.Run.Error)
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tSTEP\tRESULT\tTARGET\tMESSAGE")
		for _, cp := range checkpoints.Checkpoints {
			result := "ok"
			if !cp.Passed {
				result = cp.Kind
			}
			target := cp.Pool + "/" + cp.Image
			if cp.Snapshot != "" {
				target += "@" + cp.Snapshot
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", cp.Seq, cp.Step, result, target, cp.Message)
		}
		return w.Flush()
	},
}

var journalServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the journal over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, closeApp, err := openJournal()
		if err != nil {
			return err
		}
		defer closeApp()

		server, err := rbdmig.NewServer(app)
		if err != nil {
			return err
		}
		return server.Run(cmd.Context())
	},
}

func init() {
	journalRunsCmd.Flags().StringVar(&journalOpts.state, "state", "", "filter by state: running, succeeded, failed")
	journalRunsCmd.Flags().IntVar(&journalOpts.limit, "limit", 20, "maximum number of runs")

	journalCmd.AddCommand(journalRunsCmd, journalShowCmd, journalServeCmd)
	rootCmd.AddCommand(journalCmd)
}

func openJournal() (*rbdmig.App, func(), error) {
	if !cfg.JournalEnabled() {
		return nil, nil, fmt.Errorf("journal is not enabled, set journal.path or --journal")
	}
	return openApp(false)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

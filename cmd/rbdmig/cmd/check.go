package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the migrator host and the source pools",
	Long: `Run the preflight checks: the migrator host accepts commands, ceph is
accessible from it and every source pool can be listed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, closeApp, err := openApp(true)
		if err != nil {
			return err
		}
		defer closeApp()

		images, err := app.Preflight().Run(cmd.Context())
		if err != nil {
			return err
		}

		pools := make([]string, 0, len(images))
		for pool := range images {
			pools = append(pools, pool)
		}
		sort.Strings(pools)
		for _, pool := range pools {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d images\n", pool, len(images[pool]))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

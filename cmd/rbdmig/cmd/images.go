package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Inspect RBD images through the migrator host",
}

var imagesListCmd = &cobra.Command{
	Use:   "list <pool>",
	Short: "List images of a pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, closeApp, err := openApp(true)
		if err != nil {
			return err
		}
		defer closeApp()

		names, err := app.Client().List(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var imagesInfoCmd = &cobra.Command{
	Use:   "info <pool> <image>",
	Short: "Show image size and parent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, closeApp, err := openApp(true)
		if err != nil {
			return err
		}
		defer closeApp()

		info, _, err := app.Client().Info(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "NAME\t%s\n", info.Name)
		fmt.Fprintf(w, "SIZE\t%d (%d GiB)\n", info.Size, info.SizeGiB())
		fmt.Fprintf(w, "FORMAT\t%d\n", info.Format)
		if len(info.Features) > 0 {
			fmt.Fprintf(w, "FEATURES\t%s\n", strings.Join(info.Features, ","))
		}
		if info.Parent != nil {
			fmt.Fprintf(w, "PARENT\t%s/%s@%s\n", info.Parent.Pool, info.Parent.Image, info.Parent.Snapshot)
		}
		return w.Flush()
	},
}

var imagesExistsCmd = &cobra.Command{
	Use:   "exists <pool> <image>",
	Short: "Report whether an image exists",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, closeApp, err := openApp(true)
		if err != nil {
			return err
		}
		defer closeApp()

		res, err := app.Client().Exists(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if !res.OK() {
			return fmt.Errorf("image %s/%s does not exist", args[0], args[1])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s exists\n", args[0], args[1])
		return nil
	},
}

func init() {
	imagesCmd.AddCommand(imagesListCmd, imagesInfoCmd, imagesExistsCmd)
	rootCmd.AddCommand(imagesCmd)
}

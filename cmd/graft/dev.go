package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/graft/internal/cli"
)

// devCmd represents the dev command
var devCmd = &cobra.Command{
	Use:   "dev [target]",
	Short: "Serve the target and reload it on change",
	Long: `Starts the development loop: loads the configured target, serves it over
HTTP, watches the source tree and swaps the handle in place on every change.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := gatherOptions(cmd, args)
		if cmd.Flags().Changed("target") {
			opts.Target, _ = cmd.Flags().GetString("target")
		}
		opts.Root, _ = cmd.Flags().GetString("root")
		opts.Addr, _ = cmd.Flags().GetString("addr")
		if cmd.Flags().Changed("debounce") {
			opts.Debounce, _ = cmd.Flags().GetDuration("debounce")
		}
		opts.NoServer, _ = cmd.Flags().GetBool("no-server")

		if err := cli.RunDev(opts); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(devCmd)

	devCmd.Flags().String("target", "", "Target to serve, as 'module.path:attribute' (overrides the manifest)")
	devCmd.Flags().String("root", "", "Source root the target is resolved under (overrides the manifest)")
	devCmd.Flags().String("addr", "", "Listen address for the dev server (overrides the manifest)")
	devCmd.Flags().Duration("debounce", 0, "Settle window for file change batches (overrides the manifest)")
	devCmd.Flags().Bool("no-server", false, "Reload on change without serving HTTP")

	// Make 'dev' the default if no command is provided, preserving the
	// 'graft app.server:Handler' muscle memory.
	rootCmd.Run = devCmd.Run
	rootCmd.Args = cobra.MaximumNArgs(1)
	rootCmd.Flags().AddFlagSet(devCmd.Flags())
}

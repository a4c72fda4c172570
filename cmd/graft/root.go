package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/graft/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "graft",
	Short: "Graft serves a live application target and hot-reloads it on change",
	Long: `Graft keeps a single application handle loaded from a 'module.path:attribute'
target and swaps it in place whenever the source tree changes, without
restarting the process.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to the manifest (defaults to graft.yaml when present)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// gatherOptions collects the persistent flags plus the optional positional
// target shared by every command.
func gatherOptions(cmd *cobra.Command, args []string) cli.Options {
	configPath, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	opts := cli.Options{
		ConfigPath: configPath,
		Debug:      debug,
	}
	if len(args) > 0 {
		opts.Target = args[0]
	}
	return opts
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/graft/internal/cli"
)

var checkCmd = &cobra.Command{
	Use:   "check [target]",
	Short: "Check that the target resolves",
	Long:  `Loads the target once and exits. Useful in CI to catch broken imports or missing attributes before shipping.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := cli.RunCheck(gatherOptions(cmd, args)); err != nil {
			fmt.Printf("Check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Target is loadable! ✅")
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/magicapi/ai-gateway/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "ai-gateway "+version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

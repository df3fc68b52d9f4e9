// Package cmd contains the ledger command line tool.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var nodeURL string

func init() {
	rootCmd.PersistentFlags().StringVarP(&nodeURL, "url", "u", "http://localhost:8080", "Url of the node's public API.")
}

var rootCmd = &cobra.Command{
	Use:           "ledger",
	Short:         "Tooling for the proof of work ledger",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the command selected on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/kidlock/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "kidlockd",
	Short: "Daily screen-time budget daemon",
	Long:  "kidlockd tracks the child's screen time, redeems grant codes and sends the device agent home when the budget is spent.",
	// serve is the default so the agent's service unit can start the bare binary
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the enforcement monitor",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "kidlockd " + version.String())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, adminCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package cmd provides the command-line interface for the CloudVoyager tool.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cloudvoyager",
	Short: "CloudVoyager migrates SonarQube projects to SonarCloud",
	Long: `CloudVoyager is a CLI tool that migrates a software-quality-analysis project's
full history and metadata from a self-hosted SonarQube server to SonarCloud.
It transfers each branch's analysis snapshot as a binary scanner report and
reconciles previously-triaged issues and security hotspots so manual triage
performed on the source is not lost.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("project", "p", "", "Project key on the source server (e.g., 'my-project')")

	// Add the migrate command
	rootCmd.AddCommand(migrateCmd)

	// Add the reconcile command
	rootCmd.AddCommand(reconcileCmd)

	// Add the status command
	rootCmd.AddCommand(statusCmd)
}

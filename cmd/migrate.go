package cmd

import (
	"fmt"
	"strings"

	"github.com/sonar-solutions/cloudvoyager/internal/config"
	"github.com/sonar-solutions/cloudvoyager/internal/logging"
	"github.com/sonar-solutions/cloudvoyager/internal/report"
	"github.com/sonar-solutions/cloudvoyager/internal/sonarcloud"
	"github.com/sonar-solutions/cloudvoyager/internal/sonarqube"
	"github.com/sonar-solutions/cloudvoyager/internal/state"
	"github.com/sonar-solutions/cloudvoyager/internal/transfer"
	"github.com/spf13/cobra"
)

// migrateCmd represents the command that transfers a project's branches to
// the destination as binary scanner reports.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Transfer a project's branch analyses to SonarCloud",
	Long: `Transfer a project's branch analyses to SonarCloud.

Each selected branch is extracted from the source server, rebuilt as a binary
scanner report and uploaded to the destination. The main branch is always
processed first; a main-branch failure aborts the transfer while other branch
failures are logged and skipped.

In incremental mode, branches already transferred by a previous run are
skipped and completion state is persisted after each successful branch.

Example:
  cloudvoyager migrate -p my-project --mode incremental --wait
  cloudvoyager migrate -p my-project --exclude-branch develop`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := cmd.Flags().GetString("project")
		if err != nil {
			return err
		}
		if project == "" {
			return fmt.Errorf("project flag is required")
		}

		mode, err := cmd.Flags().GetString("mode")
		if err != nil {
			return err
		}
		if mode != string(transfer.ModeFull) && mode != string(transfer.ModeIncremental) {
			return fmt.Errorf("invalid mode %q, expected 'full' or 'incremental'", mode)
		}

		excludeBranches, err := cmd.Flags().GetStringArray("exclude-branch")
		if err != nil {
			return err
		}
		includeBranches, err := cmd.Flags().GetStringArray("include-branch")
		if err != nil {
			return err
		}
		wait, err := cmd.Flags().GetBool("wait")
		if err != nil {
			return err
		}
		batchSize, err := cmd.Flags().GetInt("batch-size")
		if err != nil {
			return err
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %v", err)
		}
		if batchSize <= 0 {
			batchSize = cfg.Sync.BatchSize
		}

		logging.Info("starting project transfer",
			"project", project,
			"mode", mode,
			"wait", wait)

		// Initialize clients
		sourceClient, err := sonarqube.NewClient()
		if err != nil {
			return fmt.Errorf("failed to initialize sonarqube client: %v", err)
		}
		destClient, err := sonarcloud.NewClient()
		if err != nil {
			return fmt.Errorf("failed to initialize sonarcloud client: %v", err)
		}

		opts := transfer.Options{
			Mode:            transfer.Mode(mode),
			ExcludeBranches: excludeBranches,
			BatchSize:       batchSize,
			Wait:            wait,
		}
		// An empty include list means no whitelist at all.
		if len(includeBranches) > 0 {
			opts.IncludeBranches = includeBranches
		}

		orchestrator := transfer.NewOrchestrator(
			sourceClient,
			report.NewPipeline(),
			destClient,
			state.NewStore(cfg.Sync.StateFile),
		)

		result, err := orchestrator.Run(project, opts)
		if err != nil {
			return fmt.Errorf("transfer failed: %v", err)
		}

		fmt.Printf("Transferred %d branches: %s\n",
			len(result.BranchesTransferred),
			strings.Join(result.BranchesTransferred, ", "))
		fmt.Printf("Issues: %d, components: %d, sources: %d, lines of code: %d\n",
			result.IssuesTransferred,
			result.ComponentsTransferred,
			result.SourcesTransferred,
			result.LinesOfCode)
		for _, warning := range result.Warnings {
			fmt.Printf("Warning: %s\n", warning)
		}

		return nil
	},
}

func init() {
	migrateCmd.Flags().String("mode", "full", "Transfer mode: 'full' or 'incremental'")
	migrateCmd.Flags().StringArray("exclude-branch", nil, "Branch to skip (repeatable)")
	migrateCmd.Flags().StringArray("include-branch", nil, "Branch whitelist (repeatable); must contain the main branch")
	migrateCmd.Flags().Bool("wait", false, "Block until destination-side processing finishes per branch")
	migrateCmd.Flags().Int("batch-size", 0, "Page size for finding extraction (0 uses the configured default)")
}

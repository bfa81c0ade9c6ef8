package cmd

import (
	"fmt"

	"github.com/sonar-solutions/cloudvoyager/internal/config"
	"github.com/sonar-solutions/cloudvoyager/internal/logging"
	"github.com/sonar-solutions/cloudvoyager/internal/reconcile"
	"github.com/sonar-solutions/cloudvoyager/internal/sonarcloud"
	"github.com/sonar-solutions/cloudvoyager/internal/sonarqube"
	"github.com/sonar-solutions/cloudvoyager/internal/state"
	"github.com/sonar-solutions/cloudvoyager/pkg/models"
	"github.com/spf13/cobra"
)

// reconcileCmd represents the command that replays source-side triage onto
// the destination's findings after a project has been uploaded.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Replay issue and hotspot triage onto SonarCloud",
	Long: `Replay issue and hotspot triage onto SonarCloud.

Destination findings are indexed by structural fingerprint (rule, component
path, line) and matched one-to-one against source findings. Matched findings
receive the source's status transition, assignee, comments and tags. Each
operation is attempted independently; single-finding failures never abort
the batch.

Example:
  cloudvoyager reconcile -p my-project
  cloudvoyager reconcile -p my-project --branch develop --issues=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := cmd.Flags().GetString("project")
		if err != nil {
			return err
		}
		if project == "" {
			return fmt.Errorf("project flag is required")
		}

		branch, err := cmd.Flags().GetString("branch")
		if err != nil {
			return err
		}
		syncIssues, err := cmd.Flags().GetBool("issues")
		if err != nil {
			return err
		}
		syncHotspots, err := cmd.Flags().GetBool("hotspots")
		if err != nil {
			return err
		}
		if !syncIssues && !syncHotspots {
			return fmt.Errorf("nothing to do: both --issues and --hotspots are disabled")
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %v", err)
		}

		// Initialize clients
		sourceClient, err := sonarqube.NewClient()
		if err != nil {
			return fmt.Errorf("failed to initialize sonarqube client: %v", err)
		}
		destClient, err := sonarcloud.NewClient()
		if err != nil {
			return fmt.Errorf("failed to initialize sonarcloud client: %v", err)
		}

		if branch == "" {
			branch, err = mainBranchOf(sourceClient, project)
			if err != nil {
				return err
			}
		}

		logging.Info("starting reconciliation",
			"project", project,
			"branch", branch,
			"issues", syncIssues,
			"hotspots", syncHotspots)

		// The ledger lives in transfer state so re-runs do not re-post
		// comments; state I/O failures only degrade deduplication.
		store := state.NewStore(cfg.Sync.StateFile)
		st, err := store.Load()
		if err != nil {
			logging.Warn("failed to load transfer state, comments may be re-posted", "error", err)
			fmt.Printf("Warning: transfer state unreadable: %v\n", err)
		}

		engine := reconcile.NewEngine(destClient, destClient, st,
			cfg.Sync.IssueWorkers, cfg.Sync.HotspotWorkers)

		if syncIssues {
			sourceIssues, err := sourceClient.SearchIssues(project, branch, cfg.Sync.BatchSize)
			if err != nil {
				return fmt.Errorf("failed to fetch source issues: %v", err)
			}
			destIssues, err := destClient.SearchIssues(project, branch)
			if err != nil {
				return fmt.Errorf("failed to fetch destination issues: %v", err)
			}

			result := engine.SyncIssues(sourceIssues, destIssues)
			printReconcileResult("Issues", result)
		}

		if syncHotspots {
			sourceHotspots, err := sourceClient.SearchHotspots(project, branch)
			if err != nil {
				return fmt.Errorf("failed to fetch source hotspots: %v", err)
			}
			destHotspots, err := destClient.SearchHotspots(project, branch)
			if err != nil {
				return fmt.Errorf("failed to fetch destination hotspots: %v", err)
			}

			result := engine.SyncHotspots(sourceHotspots, destHotspots)
			printReconcileResult("Hotspots", result)
		}

		if err := store.Save(st); err != nil {
			logging.Warn("failed to persist transfer state", "error", err)
			fmt.Printf("Warning: transfer state not persisted: %v\n", err)
		}

		return nil
	},
}

// mainBranchOf resolves the project's main branch name.
func mainBranchOf(client *sonarqube.Client, project string) (string, error) {
	branches, err := client.ListBranches(project)
	if err != nil {
		return "", fmt.Errorf("failed to list branches: %v", err)
	}
	for _, b := range branches {
		if b.IsMain {
			return b.Name, nil
		}
	}
	return "", fmt.Errorf("project %s has no main branch", project)
}

func printReconcileResult(label string, result *models.ReconcileResult) {
	fmt.Printf("%s: matched %d, status changed %d, assigned %d, commented %d, tagged %d, failed %d\n",
		label,
		result.Matched,
		result.StatusChanged,
		result.Assigned,
		result.Commented,
		result.Tagged,
		result.Failed)
}

func init() {
	reconcileCmd.Flags().String("branch", "", "Branch to reconcile (defaults to the main branch)")
	reconcileCmd.Flags().Bool("issues", true, "Reconcile issues")
	reconcileCmd.Flags().Bool("hotspots", true, "Reconcile security hotspots")
}

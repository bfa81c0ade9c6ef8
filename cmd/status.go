package cmd

import (
	"fmt"
	"strings"

	"github.com/sonar-solutions/cloudvoyager/internal/config"
	"github.com/sonar-solutions/cloudvoyager/internal/state"
	"github.com/spf13/cobra"
)

// statusCmd represents the command that summarizes the transfer state file.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show resumable transfer state",
	Long: `Show resumable transfer state.

Prints the last successful sync time, the branches recorded as fully
transferred and the history of previous runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %v", err)
		}

		store := state.NewStore(cfg.Sync.StateFile)
		st, err := store.Load()
		if err != nil {
			return fmt.Errorf("failed to read transfer state: %v", err)
		}

		fmt.Printf("State file: %s\n", store.Path())
		if st.LastSync == nil {
			fmt.Println("Last sync: never")
		} else {
			fmt.Printf("Last sync: %s\n", st.LastSync.Format("2006-01-02 15:04:05 MST"))
		}

		if len(st.CompletedBranches) == 0 {
			fmt.Println("Completed branches: none")
		} else {
			fmt.Printf("Completed branches: %s\n", strings.Join(st.CompletedBranches, ", "))
		}

		fmt.Printf("Reconciled findings: %d\n", len(st.ProcessedFindingKeys))

		if len(st.SyncHistory) > 0 {
			fmt.Println("Sync history:")
			for _, entry := range st.SyncHistory {
				outcome := "ok"
				if !entry.Success {
					outcome = "failed"
				}
				fmt.Printf("  %s  %s\n", entry.Timestamp.Format("2006-01-02 15:04:05 MST"), outcome)
			}
		}

		return nil
	},
}

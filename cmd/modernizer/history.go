package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/modernizer/internal/models"
	"github.com/ternarybob/modernizer/internal/orchestrator"
	"github.com/ternarybob/modernizer/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the recorded outcomes of previous runs",
	RunE:  runHistory,
}

var (
	historyPlugin string
	historyRun    string
	historyLimit  int
	historyDelete bool
)

func init() {
	historyCmd.Flags().StringVar(&historyPlugin, "plugin", "", "Only show results of this plugin")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Only show results of this run ID")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of results (0 for all)")
	historyCmd.Flags().BoolVar(&historyDelete, "delete", false, "Delete the results of --run instead of showing them")
}

func runHistory(cmd *cobra.Command, args []string) error {
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return err
	}
	defer storageManager.Close()
	runs := storageManager.RunStore()
	ctx := cmd.Context()

	if historyDelete {
		if historyRun == "" {
			return fmt.Errorf("--delete requires --run")
		}
		if err := runs.DeleteRun(ctx, historyRun); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", historyRun)
		return nil
	}

	var results []*models.Result
	switch {
	case historyRun != "":
		results, err = runs.ListByRun(ctx, historyRun)
	case historyPlugin != "":
		results, err = runs.ListByPlugin(ctx, models.NewPlugin(historyPlugin).Name)
		if err == nil && historyLimit > 0 && len(results) > historyLimit {
			results = results[:historyLimit]
		}
	default:
		results, err = runs.ListRecent(ctx, historyLimit)
	}
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results recorded")
		return nil
	}
	orchestrator.PrintResults(cmd.OutOrStdout(), results)
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/modernizer/internal/app"
	"github.com/ternarybob/modernizer/internal/common"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [plugin...]",
	Short: "Delete forks, cached metadata and working copies",
	Long: `Deletes the forks of the selected plugins unless they still back an open
pull request, and removes their cached metadata and working copies.`,
	RunE: runCleanup,
}

var cleanupCache bool

func init() {
	addSelectionFlags(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupCache, "all-metadata", false, "Also clear every cached metadata record")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	if err := application.RequireOrchestrator(); err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if cleanupCache {
		if err := application.Orchestrator.ClearCache(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Metadata cache cleared")
		if len(config.Run.Plugins) == 0 && config.Run.PluginFile == "" {
			return nil
		}
	}

	names, err := common.ResolvePlugins(config.Run)
	if err != nil {
		return err
	}

	failed := false
	for _, res := range application.Orchestrator.Cleanup(ctx, names) {
		status := "fork kept"
		if res.ForkDeleted {
			status = "fork deleted"
		}
		if res.Err != nil {
			failed = true
			fmt.Fprintf(out, "%-40s %s: %v\n", res.Plugin, status, res.Err)
			continue
		}
		fmt.Fprintf(out, "%-40s %s\n", res.Plugin, status)
	}
	if failed {
		return fmt.Errorf("cleanup failed for one or more plugins")
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/modernizer/internal/app"
	"github.com/ternarybob/modernizer/internal/common"
	"github.com/ternarybob/modernizer/internal/report"
)

// errPluginsFailed makes the process exit non-zero after the summary
var errPluginsFailed = errors.New("one or more plugins failed or were skipped")

var runCmd = &cobra.Command{
	Use:   "run [plugin...]",
	Short: "Apply recipes, verify and open pull requests",
	Long: `Processes every selected plugin: fetch, collect metadata, apply the
configured recipes, verify the build and publish the change as a pull request.`,
	RunE: runPlugins,
}

var dryRunCmd = &cobra.Command{
	Use:   "dry-run [plugin...]",
	Short: "Apply recipes and verify without publishing",
	RunE:  runPlugins,
}

var buildMetadataCmd = &cobra.Command{
	Use:   "build-metadata [plugin...]",
	Short: "Collect and cache plugin metadata only",
	Long: `Collects the build metadata of every selected plugin, resolves its JDK
compatibility and stores it in the metadata cache. Working copies are restored
afterwards and nothing is published.`,
	RunE: runPlugins,
}

// reportPath receives a Markdown, HTML or PDF report of the run
var reportPath string

func init() {
	for _, cmd := range []*cobra.Command{runCmd, dryRunCmd, buildMetadataCmd} {
		addSelectionFlags(cmd)
		cmd.Flags().StringSliceVarP(&flags.Recipes, "recipes", "r", nil, "Recipes to apply, in order (overrides config)")
		cmd.Flags().IntVar(&flags.Concurrency, "concurrency", 0, "Plugins processed in parallel (overrides config)")
		cmd.Flags().BoolVar(&flags.ForceMetadata, "force-metadata", false, "Ignore and overwrite cached metadata")
		cmd.Flags().BoolVar(&flags.CleanLocalData, "clean-local-data", false, "Remove each working copy when its plugin is done")
		cmd.Flags().StringVar(&reportPath, "report", "", "Write a report of the run (.md, .html or .pdf)")
	}
	runCmd.Flags().BoolVar(&flags.SkipPush, "skip-push", false, "Commit locally without pushing")
	runCmd.Flags().BoolVar(&flags.SkipPullRequest, "skip-pull-request", false, "Push without opening a pull request")
	runCmd.Flags().BoolVar(&flags.Draft, "draft", false, "Open pull requests as drafts")
}

func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&flags.Plugins, "plugins", "p", nil, "Comma separated plugin names")
	cmd.Flags().StringVarP(&flags.PluginFile, "plugin-file", "f", "", "File with one plugin name per line")
}

func runPlugins(cmd *cobra.Command, args []string) error {
	names, err := common.ResolvePlugins(config.Run)
	if err != nil {
		return err
	}
	if reportPath != "" {
		if _, err := report.FormatFor(reportPath); err != nil {
			return err
		}
	}

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	if err := application.RequireOrchestrator(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("command", cmd.Name()).
		Strs("plugins", names).
		Strs("recipes", config.Transform.Recipes).
		Msg("Processing plugins")

	summary, err := application.Orchestrator.Run(ctx, names)
	if summary != nil {
		fmt.Fprintln(cmd.OutOrStdout())
		summary.Print(cmd.OutOrStdout())
		if reportPath != "" {
			if err := report.Write(reportPath, summary, logger); err != nil {
				logger.Error().Err(err).Str("path", reportPath).Msg("Failed to write report")
			}
		}
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Run interrupted")
		return err
	}
	if summary.Failed() {
		return errPluginsFailed
	}
	return nil
}

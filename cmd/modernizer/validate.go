package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/modernizer/internal/app"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration, recipe catalog and GitHub access",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := config.RequireToken(); err != nil {
		return err
	}

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	if err := application.Connector.TestConnection(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration OK\n")
	fmt.Fprintf(out, "  source org:  %s\n", config.GitHub.SourceOrg)
	fmt.Fprintf(out, "  recipes:     %v\n", config.Transform.Recipes)
	fmt.Fprintf(out, "  cache:       %s\n", application.Cache.Root())
	fmt.Fprintf(out, "  work dir:    %s\n", config.Run.WorkDir)
	fmt.Fprintf(out, "  java homes:  %d configured\n", len(config.Build.JavaHomes))
	return nil
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ternarybob/modernizer/internal/interfaces"
	"github.com/ternarybob/modernizer/internal/transform"
)

var recipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "List the available recipes",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := transform.LoadCatalog(config.Transform.CatalogFile)
		if err != nil {
			return err
		}
		printRecipes(cmd.OutOrStdout(), catalog.All())
		return nil
	},
}

func printRecipes(w io.Writer, recipes []interfaces.Recipe) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tJDK\tKIND\tDESCRIPTION")
	for _, r := range recipes {
		kind := "command"
		if transform.Builtin(r) {
			kind = "built-in"
		}
		jdk := "-"
		if r.TargetJDK != 0 {
			jdk = r.TargetJDK.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, jdk, kind, r.Description)
	}
	tw.Flush()
}

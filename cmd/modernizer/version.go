package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/modernizer/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information and the JDK ladder",
	Run: func(cmd *cobra.Command, args []string) {
		info := common.CurrentBuild()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Modernizer version %s\n", info.Version)
		fmt.Fprintf(out, "  build:      %s\n", info.Build)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  jdk ladder: %s\n", info.LadderString())
	},
}

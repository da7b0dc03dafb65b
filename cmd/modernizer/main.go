package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/modernizer/internal/common"
)

// defaultConfigFile is picked up from the working directory when no
// --config flag is given
const defaultConfigFile = "modernizer.toml"

var (
	// Global flags
	configFiles []string // Multiple --config flags supported, later files win
	envFiles    []string
	logLevel    string

	// Run flags shared by run, dry-run, build-metadata and cleanup
	flags common.FlagOverrides

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "modernizer",
	Short: "Modernize a fleet of Jenkins plugin repositories",
	Long: `Modernizer clones Jenkins plugin repositories, collects their build metadata,
applies recipes, verifies the build on the lowest admissible JDK and opens a
pull request per plugin.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be repeated, later files override earlier ones)")
	rootCmd.PersistentFlags().StringArrayVar(&envFiles, "env", []string{".env"}, "KEY=VALUE file loaded into the environment before the configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(runCmd, dryRunCmd, buildMetadataCmd)
	rootCmd.AddCommand(validateCmd, recipesCmd, historyCmd, cleanupCmd, versionCmd)
}

// loadConfig runs before every command.
// Startup sequence (REQUIRED ORDER):
// 1. Load .env files
// 2. Load config (defaults -> file1 -> file2 -> ... -> env)
// 3. Apply CLI overrides (highest priority)
// 4. Validate
// 5. Initialize logger and print banner
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	if err := common.LoadDotEnv(envFiles...); err != nil {
		return err
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			configFiles = append(configFiles, defaultConfigFile)
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return err
	}

	switch cmd.Name() {
	case "dry-run":
		flags.DryRun = true
	case "build-metadata":
		flags.MetadataOnly = true
	}
	flags.Plugins = append(flags.Plugins, args...)
	flags.LogLevel = logLevel
	common.ApplyFlagOverrides(config, flags)

	if err := common.ValidateConfig(config); err != nil {
		return err
	}

	logger = common.InitLogger(config)
	common.CrashLogDir = common.LogDir(config)
	common.PrintBanner(common.CurrentBuild(), config)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("cache_dir", config.Cache.Dir).
		Str("work_dir", config.Run.WorkDir).
		Str("log_level", config.Logging.Level).
		Str("log_file", common.GetLogFilePath(logger)).
		Bool("token", config.GitHub.Token != "").
		Msg("Resolved configuration (sanitized)")

	return nil
}

func main() {
	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendergrid/rendergrid/pkg/config"
	"github.com/rendergrid/rendergrid/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rendergrid",
	Short: "Rendergrid - deadline-aware scheduling for render and simulation clusters",
	Long: `Rendergrid schedules render and simulation jobs against a cluster of
compute nodes, escalating priorities as deadlines approach, and manages
time-bounded resource reservations with automatic conflict resolution.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Rendergrid version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(configCmd)
}

// loadConfig resolves the effective configuration for a command: the file
// named by --config when given, otherwise defaults, with the --log-level
// override applied last.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	return cfg, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			return fmt.Errorf("--config is required")
		}
		if _, err := config.Load(path); err != nil {
			return err
		}
		fmt.Printf("✓ %s is valid\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

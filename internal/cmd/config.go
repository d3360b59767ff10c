package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/ui"
)

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  `Manage tforge configuration settings.`,
}

// configListCmd represents the config list command.
var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show configuration",
	Long:  `Display all current configuration settings.`,
	Example: `  # Show all configuration
  tforge config list`,
	RunE: runConfigList,
}

// configSetCmd represents the config set command.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set configuration value",
	Long: `Set a configuration value.

Configuration keys follow a dot notation format (e.g., run.concurrency_cap).`,
	Example: `  # Raise the default concurrency cap
  tforge config set run.concurrency_cap 8

  # Switch the default vcs mode
  tforge config set run.vcs_mode stacked`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

// configGetCmd represents the config get command.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get configuration value",
	Long:  `Get a specific configuration value.`,
	Example: `  # Get the default vcs mode
  tforge config get run.vcs_mode`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}

func runConfigList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	printer := ui.New(&cfg.UI)
	printer.PrintConfig(config.AllSettings())
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	var typedValue any = value
	switch value {
	case "true":
		typedValue = true
	case "false":
		typedValue = false
	default:
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			typedValue = intVal
		}
	}

	if err := config.Set(key, typedValue); err != nil {
		return fmt.Errorf("failed to set config: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := config.GetValue(key)
	if value == nil {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	fmt.Println(value)
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/cuedeck/internal/config"
)

var configOpts struct {
	write bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the effective configuration (defaults overlaid by the config file)
as TOML.

With --write, save it to the config file so it can be edited.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().BoolVar(&configOpts.write, "write", false,
		"Write the configuration to the config file")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configOpts.write {
		path := globalOpts.configPath
		if path == "" {
			path = config.ConfigPath()
		}
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Println(path)
		return nil
	}

	enc := toml.NewEncoder(os.Stdout)
	return enc.Encode(cfg)
}

package main

import (
	"os"
	"path/filepath"

	"github.com/openmined/syftfiles/internal/config"
	"github.com/openmined/syftfiles/internal/utils"
	"github.com/spf13/cobra"
)

const envConfigPath = "SYFTFILES_CONFIG_PATH"

// resolveConfigPath determines which config file path to use, honoring (in order):
// 1) An explicitly set --config flag
// 2) SYFTFILES_CONFIG_PATH environment variable
// 3) Existing config files in common locations
// 4) The default path
func resolveConfigPath(cmd *cobra.Command) string {
	if cfgFlag := cmd.Flag("config"); cfgFlag != nil && cfgFlag.Changed {
		return cfgFlag.Value.String()
	}

	if envPath := os.Getenv(envConfigPath); envPath != "" {
		return envPath
	}

	candidates := []string{
		config.DefaultConfigPath,
		filepath.Join(home, ".config", "syftfiles", "config.json"),
	}

	for _, candidate := range candidates {
		if utils.FileExists(candidate) {
			return candidate
		}
	}

	return config.DefaultConfigPath
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(resolveConfigPath(cmd))
}

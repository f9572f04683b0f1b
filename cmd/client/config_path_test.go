package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/syftfiles/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "path to config file")
	return cmd
}

func TestResolveConfigPathFlagBeatsEnv(t *testing.T) {
	cmd := newTestCmd()
	flagPath := "/tmp/flag/config.json"
	envPath := "/tmp/env/config.json"

	t.Setenv(envConfigPath, envPath)
	err := cmd.PersistentFlags().Set("config", flagPath)
	assert.NoError(t, err)

	resolved := resolveConfigPath(cmd)
	assert.Equal(t, flagPath, resolved)
}

func TestResolveConfigPathUsesEnvWhenNoFlag(t *testing.T) {
	cmd := newTestCmd()
	envPath := "/tmp/env/config.json"

	t.Setenv(envConfigPath, envPath)

	resolved := resolveConfigPath(cmd)
	assert.Equal(t, envPath, resolved)
}

func TestResolveConfigPathFindsExistingFile(t *testing.T) {
	oldHome := home
	home = t.TempDir()
	t.Cleanup(func() { home = oldHome })

	cmd := newTestCmd()
	t.Setenv(envConfigPath, "")

	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		t.Skip("a real config exists at the default path")
	}

	existing := filepath.Join(home, ".config", "syftfiles", "config.json")
	assert.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	assert.NoError(t, os.WriteFile(existing, []byte("{}"), 0o644))

	resolved := resolveConfigPath(cmd)
	assert.Equal(t, existing, resolved)
}

func TestResolveConfigPathFallsBackToDefault(t *testing.T) {
	oldHome := home
	home = t.TempDir()
	t.Cleanup(func() { home = oldHome })

	cmd := newTestCmd()
	t.Setenv(envConfigPath, "")

	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		t.Skip("a real config exists at the default path")
	}

	resolved := resolveConfigPath(cmd)
	assert.Equal(t, config.DefaultConfigPath, resolved)
}

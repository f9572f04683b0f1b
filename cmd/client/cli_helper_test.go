package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/openmined/syftfiles/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

// newTestConfig writes a config whose local store lives in a temp dir.
func newTestConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default(filepath.Join(dir, "config.json"))
	cfg.DataDir = filepath.Join(dir, "data")
	require.NoError(t, cfg.Save())
	return cfg.Path
}

// execCLI runs the CLI in process against the config at cfgPath.
func execCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()

	root := &cobra.Command{Use: "syftfiles", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "")
	root.PersistentFlags().StringP("network", "n", "", "")
	root.AddCommand(newPutCmd(), newSyncCmd(), newCatCmd(), newConfigCmd(), newVersionCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := root.ExecuteContext(context.Background())
	return stripANSI(out.String()), err
}

// lastLine returns the last non-empty output line, where put and sync
// print the container url.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

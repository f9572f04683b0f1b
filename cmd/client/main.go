package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openmined/syftfiles/internal/config"
	"github.com/openmined/syftfiles/internal/utils"
	"github.com/openmined/syftfiles/internal/version"
	"github.com/spf13/cobra"
)

var home, _ = os.UserHomeDir()

var logCloser io.Closer

var rootCmd = &cobra.Command{
	Use:           "syftfiles",
	Short:         "SyftFiles CLI",
	Long:          "Mirror local directories into versioned, content addressed files containers.",
	Version:       version.Detailed(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "SyftFiles config file")
	rootCmd.PersistentFlags().StringP("network", "n", "", `Network to use instead of the active one ("local" for the local store)`)
	rootCmd.PersistentFlags().String("log-level", "warn", "Console log level (debug, info, warn, error)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", red.Render("ERROR"), err)
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command) error {
	levelFlag, _ := cmd.Flags().GetString("log-level")
	level, err := utils.ParseLogLevel(levelFlag)
	if err != nil {
		return err
	}

	closer, err := utils.SetupLogger(utils.LogOptions{
		Level:    level,
		FilePath: config.DefaultLogFilePath,
	})
	if err != nil {
		// a read-only home still gets console logs
		utils.SetupLogger(utils.LogOptions{Level: level})
		slog.Warn("log file disabled", "path", config.DefaultLogFilePath, "error", err)
		return nil
	}
	logCloser = closer
	return nil
}

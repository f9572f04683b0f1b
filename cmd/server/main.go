package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/openmined/syftfiles/internal/server"
	"github.com/openmined/syftfiles/internal/store/backend"
	"github.com/openmined/syftfiles/internal/utils"
	"github.com/openmined/syftfiles/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "SYFTFILES_SERVER"
	defaultDataDir = ".data"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "syftfiles-server",
		Short:         "SyftFiles Server",
		Version:       version.Detailed(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			levelFlag, _ := cmd.Flags().GetString("log-level")
			level, err := utils.ParseLogLevel(levelFlag)
			if err != nil {
				return err
			}
			_, err = utils.SetupLogger(utils.LogOptions{Level: level})
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			srv, err := server.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			build := version.Current()
			slog.Info("syftfiles server", "version", build.Version, "revision", build.Revision, "addr", cfg.Http.Addr,
				"store", cfg.Store.Kind, "auth", cfg.Auth.Enabled, "rateLimit", cfg.RateLimit)
			if build.Dev() {
				slog.Warn("running a development build", "revision", build.Revision)
			}
			defer slog.Info("Bye!")
			return srv.Start(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "f", "", "Server config file (json, yaml or toml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().StringP("cert", "c", "", "Path to the TLS certificate file")
	rootCmd.Flags().StringP("key", "k", "", "Path to the TLS key file")
	rootCmd.Flags().String("store", string(backend.KindLocal), "Store kind (local, sqlite, s3, memory)")
	rootCmd.Flags().StringP("data-dir", "d", defaultDataDir, "Directory for the local and sqlite stores")

	rootCmd.AddCommand(newTokenCmd())
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, the dotenv file, SYFTFILES_SERVER_*
// variables and flags, in increasing priority.
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", configFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// every key needs a default for AutomaticEnv to reach it during Unmarshal
	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("store.kind", string(backend.KindLocal))
	v.SetDefault("store.dir", defaultDataDir)
	v.SetDefault("store.cache_entries", 1024)
	v.SetDefault("store.cache_max_bytes", 0)
	v.SetDefault("store.s3.bucket_name", "")
	v.SetDefault("store.s3.region", "")
	v.SetDefault("store.s3.access_key", "")
	v.SetDefault("store.s3.secret_key", "")
	v.SetDefault("store.s3.endpoint", "")
	v.SetDefault("store.s3.prefix", "")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token_issuer", "syftfiles")
	v.SetDefault("auth.access_token_secret", "")
	v.SetDefault("auth.access_token_expiry", "0s")
	v.SetDefault("max_blob_size", server.DefaultMaxBlobSize)
	v.SetDefault("rate_limit", server.DefaultRateLimit)

	bindFlag(v, cmd, "http.addr", "bind")
	bindFlag(v, cmd, "http.cert_file", "cert")
	bindFlag(v, cmd, "http.key_file", "key")
	bindFlag(v, cmd, "store.kind", "store")
	bindFlag(v, cmd, "store.dir", "data-dir")

	cfg := &server.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}

	// an s3 section is only meaningful for the s3 store
	if cfg.Store != nil && cfg.Store.Kind != backend.KindS3 {
		cfg.Store.S3 = nil
	}

	if cfg.Store != nil && cfg.Store.Dir != "" {
		dir, err := utils.ResolvePath(cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		cfg.Store.Dir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindFlag binds a flag only when the command defines it. Subcommands
// inherit the persistent flags but not the server flags.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if f := cmd.Flags().Lookup(flag); f != nil {
		v.BindPFlag(key, f)
	}
}

package main

import (
	"fmt"
	"io"

	"github.com/openmined/syftfiles/internal/config"
	"github.com/openmined/syftfiles/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newConfigCmd())
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the SyftFiles config",
	}

	networkCmd := &cobra.Command{
		Use:     "network",
		Aliases: []string{"net"},
		Short:   "Manage the networks the CLI can target",
	}
	networkCmd.AddCommand(newNetworkAddCmd())
	networkCmd.AddCommand(newNetworkRemoveCmd())
	networkCmd.AddCommand(newNetworkSwitchCmd())
	networkCmd.AddCommand(newNetworkListCmd())

	configCmd.AddCommand(networkCmd)
	configCmd.AddCommand(newConfigClearCmd())
	configCmd.AddCommand(newConfigPathCmd())
	return configCmd
}

func newNetworkAddCmd() *cobra.Command {
	var token string
	var activate bool

	cmd := &cobra.Command{
		Use:   "add <name> <server-url>",
		Short: "Add a network",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfig(cmd, func(cfg *config.Config) error {
				if err := cfg.AddNetwork(args[0], args[1], token); err != nil {
					return err
				}
				if activate {
					return cfg.SwitchNetwork(args[0])
				}
				return nil
			}, fmt.Sprintf("Added network %s", args[0]))
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "Access token for the server")
	cmd.Flags().BoolVar(&activate, "use", false, "Make the new network the active one")
	return cmd
}

func newNetworkRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a network",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfig(cmd, func(cfg *config.Config) error {
				return cfg.RemoveNetwork(args[0])
			}, fmt.Sprintf("Removed network %s", args[0]))
		},
	}
}

func newNetworkSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "switch <name>",
		Aliases: []string{"use"},
		Short:   fmt.Sprintf("Make a network the active one (%q for the local store)", config.LocalNetwork),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfig(cmd, func(cfg *config.Config) error {
				return cfg.SwitchNetwork(args[0])
			}, fmt.Sprintf("Switched to %s", args[0]))
		},
	}
}

func newNetworkListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List networks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			active, _ := cfg.Active()
			printNetwork(out, config.LocalNetwork, cfg.StoreConfig().Dir, active == "")
			for _, name := range cfg.NetworkNames() {
				n := cfg.Networks[name]
				location := n.URL
				if n.Token != "" {
					location += " " + gray.Render("token="+utils.MaskSecret(n.Token))
				}
				printNetwork(out, name, location, name == active)
			}
			return nil
		},
	}
}

func printNetwork(w io.Writer, name, location string, active bool) {
	marker := " "
	if active {
		marker = green.Render("*")
	}
	fmt.Fprintf(w, "%s %s\t%s\n", marker, name, location)
}

func newConfigClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Reset the config to its defaults, dropping every network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// a config that no longer validates can still be cleared
			cfg, err := loadConfig(cmd)
			if err != nil {
				cfg = config.Default(resolveConfigPath(cmd))
			}
			cfg.Clear()
			if err := cfg.Save(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), green.Render("Config cleared"))
			return err
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath(cmd))
			return err
		},
	}
}

// updateConfig loads the config, applies fn and saves the result.
func updateConfig(cmd *cobra.Command, fn func(*config.Config) error, done string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), green.Render(done))
	return err
}

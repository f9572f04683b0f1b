package main

import (
	"fmt"

	"github.com/openmined/syftfiles/internal/server/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue an access token signed with the server's secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			parsed, err := auth.ParseScope(scope)
			if err != nil {
				return err
			}

			token, err := auth.NewAuthService(cfg.Auth).IssueToken(args[0], parsed)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVarP(&scope, "scope", "s", string(auth.ScopeWrite), "Token scope (read or write)")
	return cmd
}

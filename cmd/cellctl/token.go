package main

import (
	"fmt"
	"time"

	"github.com/ryanbastic/go-cellgrid/internal/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		secret string
		p      auth.Principal
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token signed with the server secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch auth.Role(role) {
			case auth.RoleAdmin, auth.RoleOperator:
				p.Role = auth.Role(role)
			default:
				return fmt.Errorf("invalid --role %q (use %s or %s)", role, auth.RoleAdmin, auth.RoleOperator)
			}
			tok, err := auth.GenerateToken(secret, p, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "JWT_SECRET of the server")
	cmd.Flags().StringVar(&p.ID, "user-id", "", "Subject user ID")
	cmd.Flags().StringVar(&p.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "admin or operator")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	for _, f := range []string{"secret", "user-id", "name"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

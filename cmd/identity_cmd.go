package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engram-os/engram-os/internal/identity"
)

func identityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Show the user identity this installation operates under",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ident, err := identity.NewProvider(cfg.IdentityPath()).Get()
			if err != nil {
				return err
			}
			fmt.Printf("User ID:  %s\n", ident.UserID)
			if ident.CreatedAt != "" {
				fmt.Printf("Created:  %s\n", ident.CreatedAt)
			}
			if ident.Machine != "" {
				fmt.Printf("Machine:  %s\n", ident.Machine)
			}
			return nil
		},
	}
}

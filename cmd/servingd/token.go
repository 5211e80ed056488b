package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"servingd/internal/httpapi"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash TOKEN",
		Short: "Print the bcrypt hash to put in auth_token_hashes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := httpapi.HashToken(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), h)
			return err
		},
	})
	return cmd
}

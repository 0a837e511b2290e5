package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"likoin.network/lkn/internal/identity"
)

func init() {
	rootCmd.AddCommand(keygenCmd, addressCmd)
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new signing key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(keyFile); err == nil {
			return fmt.Errorf("%s already exists", keyFile)
		}
		id, err := identity.Generate()
		if err != nil {
			return err
		}
		if err := id.Save(keyFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.PublicKeyHex())
		return nil
	},
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address of the signing key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := identity.Load(keyFile)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id.PublicKeyHex())
		return nil
	},
}

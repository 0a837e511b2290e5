// Command lknctl signs and submits transactions to an lkn node and reads
// its state.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"likoin.network/lkn/internal/tendermint"
)

var (
	keyFile string
	rpcAddr string
)

var rootCmd = &cobra.Command{
	Use:           "lknctl",
	Short:         "Client for the lkn pricing network",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&keyFile, "key", "lkn_key.pem", "ed25519 key file of the signer")
	rootCmd.PersistentFlags().StringVar(&rpcAddr, "rpc", "http://localhost:26657", "Tendermint RPC address")
}

func client() *tendermint.BroadcastClient {
	return tendermint.NewBroadcastClient(rpcAddr)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

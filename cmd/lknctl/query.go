package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"likoin.network/lkn/internal/abci"
	"likoin.network/lkn/internal/types"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Read committed state through the node",
}

func init() {
	queryCmd.AddCommand(
		queryCommand("balance <address>", "Balances and nonce of an address", abci.PathBalance, cobra.ExactArgs(1),
			func(a []string) (abci.QueryRequest, error) {
				return abci.QueryRequest{Address: types.Address(a[0])}, nil
			}),
		queryCommand("nonce <address>", "Next nonce of an address", abci.PathNonce, cobra.ExactArgs(1),
			func(a []string) (abci.QueryRequest, error) {
				return abci.QueryRequest{Address: types.Address(a[0])}, nil
			}),
		queryCommand("holders <asset>", "Holder index of an asset", abci.PathHolders, cobra.ExactArgs(1),
			func(a []string) (abci.QueryRequest, error) {
				kind, err := asset(a[0])
				return abci.QueryRequest{Asset: kind}, err
			}),
		queryCommand("supply [asset]", "Supply of one or both assets", abci.PathSupply, cobra.MaximumNArgs(1),
			func(a []string) (abci.QueryRequest, error) {
				if len(a) == 0 {
					return abci.QueryRequest{}, nil
				}
				kind, err := asset(a[0])
				return abci.QueryRequest{Asset: kind}, err
			}),
		queryCommand("proposal <id>", "A proposal and its live tally", abci.PathProposal, cobra.ExactArgs(1),
			func(a []string) (abci.QueryRequest, error) {
				id, err := number("proposal id", a[0])
				return abci.QueryRequest{ProposalID: id}, err
			}),
		queryCommand("resource <id>", "A registered resource", abci.PathResource, cobra.ExactArgs(1),
			func(a []string) (abci.QueryRequest, error) {
				id, err := number("resource id", a[0])
				return abci.QueryRequest{ResourceID: id}, err
			}),
		queryCommand("owner <resource> <address>", "Whether an address owns a resource", abci.PathOwner, cobra.ExactArgs(2),
			func(a []string) (abci.QueryRequest, error) {
				id, err := number("resource id", a[0])
				return abci.QueryRequest{ResourceID: id, Address: types.Address(a[1])}, err
			}),
		queryCommand("crowdsale", "Crowdsale rate and totals", abci.PathCrowdsale, cobra.NoArgs,
			func([]string) (abci.QueryRequest, error) { return abci.QueryRequest{}, nil }),
	)
	rootCmd.AddCommand(queryCmd)
}

func queryCommand(use, short, path string, args cobra.PositionalArgs, build func([]string) (abci.QueryRequest, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, a []string) error {
			req, err := build(a)
			if err != nil {
				return err
			}
			data, err := json.Marshal(req)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			raw, err := client().ABCIQuery(ctx, path, data)
			if err != nil {
				return err
			}
			return printJSON(cmd, json.RawMessage(raw))
		},
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"likoin.network/lkn/internal/abci"
	"likoin.network/lkn/internal/identity"
	"likoin.network/lkn/internal/types"
)

// txDef describes one transaction subcommand. build turns the positional
// arguments into the payload; self is the signer's address.
type txDef struct {
	use   string
	short string
	typ   types.TransactionType
	args  cobra.PositionalArgs
	build func(self types.Address, args []string) (interface{}, error)
}

var txDefs = []txDef{
	{
		use: "add-minter <asset> <address>", short: "Allow an address to mint an asset",
		typ: types.TxAddMinter, args: cobra.ExactArgs(2),
		build: func(_ types.Address, a []string) (interface{}, error) {
			kind, err := asset(a[0])
			return types.AddMinterPayload{Asset: kind, Minter: types.Address(a[1])}, err
		},
	},
	{
		use: "mint <asset> <to> <amount>", short: "Mint new units",
		typ: types.TxMint, args: cobra.ExactArgs(3),
		build: func(_ types.Address, a []string) (interface{}, error) {
			kind, err := asset(a[0])
			if err != nil {
				return nil, err
			}
			n, err := amount(a[2])
			return types.MintPayload{Asset: kind, To: types.Address(a[1]), Amount: n}, err
		},
	},
	{
		use: "transfer <asset> <to> <amount>", short: "Transfer units to another address",
		typ: types.TxTransfer, args: cobra.ExactArgs(3),
		build: func(_ types.Address, a []string) (interface{}, error) {
			kind, err := asset(a[0])
			if err != nil {
				return nil, err
			}
			n, err := amount(a[2])
			return types.TransferPayload{Asset: kind, To: types.Address(a[1]), Amount: n}, err
		},
	},
	{
		use: "convert <amount>", short: "Burn utility units for settlement units",
		typ: types.TxConvert, args: cobra.ExactArgs(1),
		build: func(_ types.Address, a []string) (interface{}, error) {
			n, err := amount(a[0])
			return types.ConvertPayload{Amount: n}, err
		},
	},
	{
		use: "buy <payment> [beneficiary]", short: "Record a crowdsale payment and mint utility units (cashiers only)",
		typ: types.TxBuy, args: cobra.RangeArgs(1, 2),
		build: func(self types.Address, a []string) (interface{}, error) {
			n, err := amount(a[0])
			return types.BuyPayload{Beneficiary: optional(a, 1, self), Payment: n}, err
		},
	},
	{
		use: "add-cashier <address>", short: "Allow an address to record crowdsale payments",
		typ: types.TxAddCashier, args: cobra.ExactArgs(1),
		build: func(_ types.Address, a []string) (interface{}, error) {
			return types.RolePayload{Address: types.Address(a[0])}, nil
		},
	},
	{
		use: "add-registrar <address>", short: "Allow an address to open proposals",
		typ: types.TxAddRegistrar, args: cobra.ExactArgs(1),
		build: func(_ types.Address, a []string) (interface{}, error) {
			return types.RolePayload{Address: types.Address(a[0])}, nil
		},
	},
	{
		use: "add-executor <address>", short: "Allow an address to execute proposals",
		typ: types.TxAddExecutor, args: cobra.ExactArgs(1),
		build: func(_ types.Address, a []string) (interface{}, error) {
			return types.RolePayload{Address: types.Address(a[0])}, nil
		},
	},
	{
		use: "register-resource <id> <initial-price> <description...>", short: "Register a resource and open its pricing proposal",
		typ: types.TxRegisterResource, args: cobra.MinimumNArgs(3),
		build: func(_ types.Address, a []string) (interface{}, error) {
			id, err := number("resource id", a[0])
			if err != nil {
				return nil, err
			}
			price, err := number("price", a[1])
			return types.RegisterResourcePayload{ResourceID: id, InitialPrice: price, Description: strings.Join(a[2:], " ")}, err
		},
	},
	{
		use: "suggest <proposal> <price>", short: "Suggest a price on an open proposal",
		typ: types.TxSuggest, args: cobra.ExactArgs(2),
		build: func(_ types.Address, a []string) (interface{}, error) {
			pid, err := number("proposal id", a[0])
			if err != nil {
				return nil, err
			}
			price, err := number("price", a[1])
			return types.SuggestPayload{ProposalID: pid, Price: price}, err
		},
	},
	{
		use: "vote <proposal> <suggestion>", short: "Vote for a suggestion",
		typ: types.TxVote, args: cobra.ExactArgs(2),
		build: votePayload,
	},
	{
		use: "change-vote <proposal> <suggestion>", short: "Move an existing vote to another suggestion",
		typ: types.TxChangeVote, args: cobra.ExactArgs(2),
		build: votePayload,
	},
	{
		use: "execute <proposal>", short: "Close a proposal and fix the resource price",
		typ: types.TxExecute, args: cobra.ExactArgs(1),
		build: func(_ types.Address, a []string) (interface{}, error) {
			pid, err := number("proposal id", a[0])
			return types.ExecutePayload{ProposalID: pid}, err
		},
	},
	{
		use: "purchase <resource>", short: "Buy an approved resource at its final price",
		typ: types.TxPurchase, args: cobra.ExactArgs(1),
		build: func(self types.Address, a []string) (interface{}, error) {
			id, err := number("resource id", a[0])
			return types.PurchasePayload{ResourceID: id, Buyer: self}, err
		},
	},
}

var (
	commit  bool
	nonce   int64
	timeout time.Duration
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Sign and submit a transaction",
}

func init() {
	txCmd.PersistentFlags().BoolVar(&commit, "commit", true, "wait for the transaction to be committed")
	txCmd.PersistentFlags().Int64Var(&nonce, "nonce", -1, "nonce to use; negative reads it from the node")
	txCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the node")
	for _, def := range txDefs {
		txCmd.AddCommand(def.command())
	}
	rootCmd.AddCommand(txCmd)
}

func (def txDef) command() *cobra.Command {
	return &cobra.Command{
		Use:   def.use,
		Short: def.short,
		Args:  def.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.Load(keyFile)
			if err != nil {
				return err
			}
			payload, err := def.build(types.Address(id.PublicKeyHex()), args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return submit(ctx, cmd, id, def.typ, payload)
		},
	}
}

func submit(ctx context.Context, cmd *cobra.Command, id *identity.Identity, typ types.TransactionType, payload interface{}) error {
	bc := client()
	n := uint64(nonce)
	if nonce < 0 {
		var err error
		if n, err = fetchNonce(ctx, types.Address(id.PublicKeyHex())); err != nil {
			return fmt.Errorf("read nonce: %w", err)
		}
	}

	tx, err := types.NewTransaction(typ, n, payload)
	if err != nil {
		return err
	}
	signedTx, err := tx.Sign(id)
	if err != nil {
		return err
	}
	res, err := bc.BroadcastSigned(ctx, signedTx, commit)
	if err != nil {
		return err
	}
	out := map[string]interface{}{"tx": tx.ID, "hash": res.Hash, "height": res.Height, "log": res.Log}
	if len(res.Data) > 0 && json.Valid(res.Data) {
		out["receipt"] = json.RawMessage(res.Data)
	}
	return printJSON(cmd, out)
}

func fetchNonce(ctx context.Context, who types.Address) (uint64, error) {
	data, _ := json.Marshal(abci.QueryRequest{Address: who})
	raw, err := client().ABCIQuery(ctx, abci.PathNonce, data)
	if err != nil {
		return 0, err
	}
	var out struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, err
	}
	return out.Nonce, nil
}

func votePayload(_ types.Address, a []string) (interface{}, error) {
	pid, err := number("proposal id", a[0])
	if err != nil {
		return nil, err
	}
	idx, err := strconv.Atoi(a[1])
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("invalid suggestion index %q", a[1])
	}
	return types.VotePayload{ProposalID: pid, Suggestion: idx}, nil
}

func asset(s string) (types.AssetKind, error) {
	k := types.AssetKind(strings.ToLower(s))
	if !k.Valid() {
		return "", fmt.Errorf("unknown asset %q (want utility or settlement)", s)
	}
	return k, nil
}

func number(what, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return v, nil
}

func amount(s string) (uint64, error) {
	return number("amount", s)
}

func optional(a []string, i int, def types.Address) types.Address {
	if len(a) > i && a[i] != "" {
		return types.Address(a[i])
	}
	return def
}

package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sweepchain/internal/app"
	"sweepchain/internal/pool"
)

func genesisCmd() *cobra.Command {
	var (
		g        = app.DefaultGenesis("")
		accounts []string
		blocked  []string
	)
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Print a genesis app_state with dev accounts",
		Long: `Print a genesis app_state for the CometBFT genesis file.

Accounts are given as name=balance and get the deterministic dev key of
their name registered, so "sweepd tx --signer <name>" works from block 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, entry := range accounts {
				name, rawBal, _ := strings.Cut(entry, "=")
				var bal uint64
				if rawBal != "" {
					n, err := strconv.ParseUint(rawBal, 10, 64)
					if err != nil {
						return fmt.Errorf("account %q: invalid balance: %w", entry, err)
					}
					bal = n
				}
				pub, _ := app.DevKey(name)
				g.Accounts = append(g.Accounts, app.GenesisAccount{Address: name, PubKey: pub, Balance: bal})
			}
			g.BlockedRecipients = blocked
			if err := g.Validate(); err != nil {
				return err
			}
			return printJSON(cmd, g)
		},
	}
	f := cmd.Flags()
	f.StringVar(&g.Admin, "admin", "", "initial admin; empty leaves the pool for a pool/initialize tx")
	f.StringVar(&g.Implementation, "implementation", pool.DefaultImplementation, "logic implementation bound at genesis")
	f.Uint64Var(&g.Stake, "stake", pool.DefaultStake, "stake per entry in base units")
	f.Uint64Var(&g.IntervalSecs, "interval", pool.DefaultIntervalSecs, "minimum round length in seconds")
	f.Uint32Var(&g.MaxParticipants, "max-participants", 0, "participant cap (0 = unlimited; needs admission control)")
	f.StringSliceVar(&accounts, "account", nil, "dev account as name=balance (repeatable)")
	f.StringSliceVar(&blocked, "blocked", nil, "addresses that cannot receive transfers (repeatable)")
	return cmd
}

func keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <name>",
		Short: "Show the deterministic dev key for name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, _ := app.DevKey(args[0])
			return printJSON(cmd, map[string]string{
				"address": args[0],
				"pubKey":  base64.StdEncoding.EncodeToString(pub),
			})
		},
	}
}

func txCmd() *cobra.Command {
	var (
		signer string
		nonce  uint64
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "tx <type> <json-value>",
		Short: "Sign a tx with a dev key and print it for broadcast_tx_sync",
		Example: `  sweepd tx pool/join '{"participant":"alice","amount":20000}' --signer alice --nonce 1
  sweepd tx pool/distribute '{"caller":"admin"}' --signer admin --nonce 7`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if signer == "" {
				return fmt.Errorf("--signer is required")
			}
			var value json.RawMessage
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				return fmt.Errorf("invalid json value: %w", err)
			}
			_, priv := app.DevKey(signer)
			tx, err := app.SignTx(priv, args[0], value, nonce, signer)
			if err != nil {
				return err
			}
			if raw {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(tx))
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(tx))
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&signer, "signer", "", "signing account (dev key derived from the name)")
	f.Uint64Var(&nonce, "nonce", 1, "tx nonce; must exceed the signer's last accepted nonce")
	f.BoolVar(&raw, "json", false, "print the envelope JSON instead of base64")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

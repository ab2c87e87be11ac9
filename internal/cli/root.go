// Package cli is the cnftdrop command tree.
package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// RootOptions holds the global flags. Set flags override the config file
// and the CNFTDROP_* environment.
type RootOptions struct {
	ConfigPath string
	StateDir   string
	RPCURL     string
	JSON       bool
	Verbose    bool
}

// DropOptions are the run flags that override drop settings.
type DropOptions struct {
	Pacing            time.Duration
	ContinueOnFailure bool
	RecipientsFile    string
	RemainingOut      string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cnftdrop",
		Short: "Mint compressed NFTs to a list of wallets",
		Long: `cnftdrop provisions a Bubblegum merkle tree once, publishes the drop
metadata and mints one compressed NFT per recipient, paced and in order.

State (keypair.json, merkle-tree.json) lives in the state directory and is
reused across runs.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config.yaml (optional)")
	cmd.PersistentFlags().StringVar(&opts.StateDir, "state-dir", "", "directory holding keypair.json and merkle-tree.json")
	cmd.PersistentFlags().StringVar(&opts.RPCURL, "rpc-url", "", "Solana JSON-RPC endpoint")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print results as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewIdentityCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewTreeCommand(opts))
	cmd.AddCommand(NewPaymentCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

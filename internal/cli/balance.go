package cli

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/solana/lamports"
)

type balanceView struct {
	Account  string `json:"account"`
	Lamports uint64 `json:"lamports"`
	SOL      string `json:"sol"`
}

func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the SOL balance of an address, the identity by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(rootOpts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer sess.Close()

			var account solana.PublicKey
			if len(args) == 1 {
				account, err = solana.PublicKeyFromBase58(args[0])
				if err != nil {
					return apperr.InvalidRequest("balance", err)
				}
			} else {
				ids, err := sess.identities()
				if err != nil {
					return err
				}
				id, err := ids.Load()
				if err != nil {
					return err
				}
				account = id.PublicKey()
			}

			balance, err := sess.rpcClient().GetBalance(cmd.Context(), account)
			if err != nil {
				return fmt.Errorf("get balance: %w", err)
			}
			view := balanceView{Account: account.String(), Lamports: balance, SOL: lamports.Format(balance)}
			if rootOpts.JSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			field(cmd.OutOrStdout(), "account", view.Account)
			field(cmd.OutOrStdout(), "balance", fmt.Sprintf("%s SOL (%d lamports)", view.SOL, view.Lamports))
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/payment"
	"cnft-drop/go-backend/internal/solana/lamports"
)

type paymentView struct {
	State     string `json:"state"`
	Signature string `json:"signature,omitempty"`
	Slot      uint64 `json:"slot,omitempty"`
	Received  uint64 `json:"receivedLamports"`
	Polls     int    `json:"polls"`
	Error     string `json:"error,omitempty"`
}

type paymentOptions struct {
	Reference string
	Recipient string
	Amount    string
	Timeout   time.Duration
}

func NewPaymentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Solana Pay helpers",
	}
	cmd.AddCommand(newPaymentWatchCommand(rootOpts))
	return cmd
}

func newPaymentWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &paymentOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Wait for a payment carrying a reference key and validate it",
		Long: `Poll the node until a transaction that includes the reference key appears,
then check that it succeeded and credited the recipient with at least the
requested amount.

Example:
  cnftdrop payment watch --reference <pubkey> --recipient <wallet> --amount 0.1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return apperr.InvalidRequest("payment watch", err)
			}
			sess, err := openSession(rootOpts, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer sess.Close()

			timeout := opts.Timeout
			w := payment.NewWatcher(sess.rpcClient(), payment.Options{
				Policy: func() backoff.BackOff {
					b := payment.DefaultPolicy()
					if eb, ok := b.(*backoff.ExponentialBackOff); ok && timeout > 0 {
						eb.MaxElapsedTime = timeout
					}
					return b
				},
				Logger: sess.logger.With("component", "payment"),
			})
			out, watchErr := w.Watch(cmd.Context(), req)
			view := paymentView{State: string(out.State), Received: out.Received, Polls: out.Polls}
			if !out.Signature.IsZero() {
				view.Signature = out.Signature.String()
				view.Slot = out.Slot
			}
			if watchErr != nil {
				view.Error = watchErr.Error()
			}
			if rootOpts.JSON {
				if err := writeJSON(cmd.OutOrStdout(), view); err != nil {
					return err
				}
			} else {
				printPayment(cmd, view)
			}
			if watchErr != nil {
				return &ExitError{Code: ExitFailure, Err: watchErr}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Reference, "reference", "", "reference public key included in the payment")
	cmd.Flags().StringVar(&opts.Recipient, "recipient", "", "wallet expected to receive the payment")
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "minimum amount in SOL")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 2*time.Minute, "give up after this long")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("recipient")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (o *paymentOptions) request() (payment.Request, error) {
	reference, err := solana.PublicKeyFromBase58(o.Reference)
	if err != nil {
		return payment.Request{}, fmt.Errorf("--reference: %w", err)
	}
	recipient, err := solana.PublicKeyFromBase58(o.Recipient)
	if err != nil {
		return payment.Request{}, fmt.Errorf("--recipient: %w", err)
	}
	amount, err := lamports.ParseSOL(o.Amount)
	if err != nil {
		return payment.Request{}, fmt.Errorf("--amount: %w", err)
	}
	req := payment.Request{Reference: reference, Recipient: recipient, Lamports: amount}
	if err := req.Validate(); err != nil {
		return payment.Request{}, err
	}
	return req, nil
}

func printPayment(cmd *cobra.Command, view paymentView) {
	w := cmd.OutOrStdout()
	mark := okMark()
	if view.State != string(payment.StateValidated) {
		mark = failMark()
	}
	field(w, "payment", mark+" "+view.State)
	if view.Signature != "" {
		field(w, "signature", view.Signature)
		field(w, "slot", view.Slot)
	}
	field(w, "received", lamports.Format(view.Received)+" SOL")
	field(w, "polls", view.Polls)
	if view.Error != "" {
		field(w, "error", view.Error)
	}
}

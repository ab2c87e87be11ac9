// Package payment watches the chain for a transfer tagged with a reference
// key and checks it paid the expected recipient.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"

	"cnft-drop/go-backend/internal/solana/rpc"
)

type State string

const (
	StatePending   State = "pending"
	StateFound     State = "found"
	StateValidated State = "validated"
	StateFailed    State = "failed"
)

var next = map[State][]State{
	StatePending: {StateFound, StateFailed},
	StateFound:   {StateValidated, StateFailed},
}

var (
	ErrReferenceNotFound = errors.New("no transaction carries the reference")
	ErrTransactionFailed = errors.New("payment transaction failed on chain")
	ErrReferenceMissing  = errors.New("transaction does not include the reference key")
	ErrRecipientMissing  = errors.New("transaction does not touch the recipient")
	ErrAmountTooLow      = errors.New("recipient was credited less than requested")
	ErrNotAvailable      = errors.New("transaction is not available from the node")
)

// signatureScanLimit bounds one getSignaturesForAddress page.
const signatureScanLimit = 1000

// Request is a validated payment expectation.
type Request struct {
	Reference solana.PublicKey
	Recipient solana.PublicKey
	Lamports  uint64
}

func (r Request) Validate() error {
	switch {
	case r.Reference.IsZero():
		return errors.New("payment request: reference is required")
	case r.Recipient.IsZero():
		return errors.New("payment request: recipient is required")
	case r.Lamports == 0:
		return errors.New("payment request: amount must be positive")
	}
	return nil
}

// Outcome is where the watch ended.
type Outcome struct {
	State     State
	Signature solana.Signature
	Slot      uint64
	Received  uint64
	Polls     int
	Err       error
}

func (o *Outcome) moveTo(s State) {
	for _, allowed := range next[o.State] {
		if allowed == s {
			o.State = s
			return
		}
	}
	panic(fmt.Sprintf("payment: invalid transition %s -> %s", o.State, s))
}

func (o *Outcome) fail(err error) (*Outcome, error) {
	o.moveTo(StateFailed)
	o.Err = err
	return o, err
}

// Chain is the read-only RPC surface the watcher needs.
type Chain interface {
	GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]*rpc.SignatureInfo, error)
	GetTransaction(ctx context.Context, sig solana.Signature) (*rpc.TransactionResult, error)
}

type Options struct {
	// Policy returns a fresh, bounded backoff for each watch. Nil uses
	// DefaultPolicy.
	Policy func() backoff.BackOff
	Logger *slog.Logger
}

// DefaultPolicy polls every second at first, slowing to every five, and
// gives up after two minutes.
func DefaultPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return b
}

type Watcher struct {
	chain  Chain
	policy func() backoff.BackOff
	logger *slog.Logger
}

func NewWatcher(chain Chain, opts Options) *Watcher {
	policy := opts.Policy
	if policy == nil {
		policy = DefaultPolicy
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{chain: chain, policy: policy, logger: logger}
}

// Watch polls until a transaction carrying the reference appears, then
// validates it. Only "not found yet" is retried; any RPC error or a failed
// validation ends the watch.
func (w *Watcher) Watch(ctx context.Context, req Request) (*Outcome, error) {
	out := &Outcome{State: StatePending}
	if err := req.Validate(); err != nil {
		return out.fail(err)
	}

	var found *rpc.SignatureInfo
	find := func() error {
		out.Polls++
		sigs, err := w.chain.GetSignaturesForAddress(ctx, req.Reference, signatureScanLimit)
		if err != nil {
			return backoff.Permanent(err)
		}
		if len(sigs) == 0 {
			return ErrReferenceNotFound
		}
		// Newest first; the oldest signature is the payment itself.
		found = sigs[len(sigs)-1]
		return nil
	}
	notify := func(err error, wait time.Duration) {
		w.logger.Debug("payment not found yet", "reference", req.Reference.String(), "retry_in", wait)
	}
	if err := backoff.RetryNotify(find, backoff.WithContext(w.policy(), ctx), notify); err != nil {
		return out.fail(err)
	}
	out.moveTo(StateFound)
	out.Signature = found.Signature
	out.Slot = found.Slot
	w.logger.Info("payment found", "reference", req.Reference.String(), "signature", found.Signature.String())

	tx, err := w.chain.GetTransaction(ctx, found.Signature)
	if err != nil {
		return out.fail(err)
	}
	received, err := validateTransfer(tx, req)
	out.Received = received
	if err != nil {
		return out.fail(err)
	}
	out.moveTo(StateValidated)
	return out, nil
}

func validateTransfer(tx *rpc.TransactionResult, req Request) (uint64, error) {
	if tx == nil {
		return 0, ErrNotAvailable
	}
	if tx.Err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransactionFailed, tx.Err)
	}
	recipient, reference := -1, false
	for i, k := range tx.AccountKeys {
		if k.Equals(req.Recipient) && recipient < 0 {
			recipient = i
		}
		if k.Equals(req.Reference) {
			reference = true
		}
	}
	if !reference {
		return 0, ErrReferenceMissing
	}
	if recipient < 0 || recipient >= len(tx.PreBalances) || recipient >= len(tx.PostBalances) {
		return 0, ErrRecipientMissing
	}
	pre, post := tx.PreBalances[recipient], tx.PostBalances[recipient]
	if post <= pre {
		return 0, fmt.Errorf("%w: received 0 of %d lamports", ErrAmountTooLow, req.Lamports)
	}
	received := post - pre
	if received < req.Lamports {
		return received, fmt.Errorf("%w: received %d of %d lamports", ErrAmountTooLow, received, req.Lamports)
	}
	return received, nil
}

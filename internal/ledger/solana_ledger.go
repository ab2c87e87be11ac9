package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"

	"cnft-drop/go-backend/internal/bubblegum"
	"cnft-drop/go-backend/internal/solana/rpc"
)

const (
	DefaultConfirmInterval = 2 * time.Second
	DefaultConfirmTimeout  = 90 * time.Second
)

var errNotConfirmed = errors.New("not confirmed yet")

// ConfirmPolicy bounds the wait for a sent transaction to reach the
// client's commitment level.
type ConfirmPolicy struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (p ConfirmPolicy) normalized() ConfirmPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultConfirmInterval
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultConfirmTimeout
	}
	return p
}

type SolanaOptions struct {
	Confirm ConfirmPolicy
	Logger  *slog.Logger
}

// Solana implements Ledger against a JSON-RPC node, paying and signing
// with payer.
type Solana struct {
	client     *rpc.Client
	payer      solana.PrivateKey
	confirm    ConfirmPolicy
	logger     *slog.Logger
	newTreeKey func() (solana.PrivateKey, error)
}

func NewSolana(client *rpc.Client, payer solana.PrivateKey, opts SolanaOptions) *Solana {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Solana{
		client:     client,
		payer:      payer,
		confirm:    opts.Confirm.normalized(),
		logger:     logger,
		newTreeKey: solana.NewRandomPrivateKey,
	}
}

func (s *Solana) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return s.client.GetBalance(ctx, account)
}

func (s *Solana) CreateTree(ctx context.Context, params bubblegum.TreeParams) (TreeReceipt, error) {
	if err := params.Validate(); err != nil {
		return TreeReceipt{}, err
	}
	treeKey, err := s.newTreeKey()
	if err != nil {
		return TreeReceipt{}, err
	}
	rent, err := s.client.GetMinimumBalanceForRentExemption(ctx, params.AccountSize())
	if err != nil {
		return TreeReceipt{}, err
	}
	payer := s.payer.PublicKey()
	ixs, err := bubblegum.CreateTreeInstructions(params, payer, treeKey.PublicKey(), payer, rent)
	if err != nil {
		return TreeReceipt{}, err
	}
	s.logger.Info("creating merkle tree",
		"tree", treeKey.PublicKey().String(),
		"max_depth", params.MaxDepth,
		"max_buffer_size", params.MaxBufferSize,
		"canopy_depth", params.CanopyDepth,
		"rent_lamports", rent,
	)
	sig, status, err := s.sendAndConfirm(ctx, ixs, s.payer, treeKey)
	if err != nil {
		return TreeReceipt{}, err
	}
	return TreeReceipt{Tree: treeKey.PublicKey(), Signature: sig, Slot: status.Slot}, nil
}

func (s *Solana) Mint(ctx context.Context, req MintRequest) (MintReceipt, error) {
	if err := req.Validate(); err != nil {
		return MintReceipt{}, err
	}
	payer := s.payer.PublicKey()
	ix, err := bubblegum.MintV1(bubblegum.MintV1Accounts{
		Tree:         req.Tree,
		LeafOwner:    req.Owner,
		Payer:        payer,
		TreeDelegate: payer,
	}, req.Metadata)
	if err != nil {
		return MintReceipt{}, err
	}
	sig, status, err := s.sendAndConfirm(ctx, []solana.Instruction{ix}, s.payer)
	if err != nil {
		return MintReceipt{}, err
	}
	return MintReceipt{Signature: sig, Slot: status.Slot, Status: rpc.Commitment(status.ConfirmationStatus)}, nil
}

// sendAndConfirm signs with a fresh blockhash, sends once, then polls the
// signature status. Only the status poll repeats; the transaction itself is
// never resent.
func (s *Solana) sendAndConfirm(ctx context.Context, ixs []solana.Instruction, signers ...solana.PrivateKey) (solana.Signature, *rpc.SignatureStatus, error) {
	bh, err := s.client.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	tx, err := solana.NewTransaction(ixs, bh.Hash, solana.TransactionPayer(s.payer.PublicKey()))
	if err != nil {
		return solana.Signature{}, nil, err
	}
	if _, err := tx.Sign(keyGetter(signers)); err != nil {
		return solana.Signature{}, nil, err
	}
	sig, err := s.client.SendTransaction(ctx, tx)
	if err != nil {
		return solana.Signature{}, nil, err
	}
	status, err := s.awaitConfirmation(ctx, sig)
	if err != nil {
		return sig, nil, err
	}
	return sig, status, nil
}

func keyGetter(keys []solana.PrivateKey) func(solana.PublicKey) *solana.PrivateKey {
	return func(pk solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(pk) {
				return &keys[i]
			}
		}
		return nil
	}
}

func (s *Solana) awaitConfirmation(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatus, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.confirm.Timeout)
	defer cancel()

	want := s.client.Commitment()
	var confirmed *rpc.SignatureStatus
	poll := func() error {
		statuses, err := s.client.GetSignatureStatuses(waitCtx, sig)
		if err != nil {
			s.logger.Debug("signature status poll failed", "signature", sig.String(), "err", err)
			return err
		}
		if len(statuses) == 0 || statuses[0] == nil {
			return errNotConfirmed
		}
		st := statuses[0]
		if rpc.Failed(st) {
			return backoff.Permanent(fmt.Errorf("%w: %s: %v", ErrTransactionFailed, sig, st.Err))
		}
		if !rpc.Reached(st, want) {
			return errNotConfirmed
		}
		confirmed = st
		return nil
	}
	policy := backoff.WithContext(backoff.NewConstantBackOff(s.confirm.Interval), waitCtx)
	err := backoff.Retry(poll, policy)
	if err == nil {
		return confirmed, nil
	}
	if errors.Is(err, ErrTransactionFailed) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrConfirmationTimeout, sig, err)
}

// Package ledger is the boundary to the remote chain: the three calls the
// drop pipeline consumes, with typed and validated requests.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cnft-drop/go-backend/internal/bubblegum"
	"cnft-drop/go-backend/internal/solana/rpc"
)

var (
	ErrTransactionFailed   = errors.New("transaction failed on chain")
	ErrConfirmationTimeout = errors.New("transaction was not confirmed in time")
)

// Ledger is what the drop pipeline needs from the chain.
type Ledger interface {
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	// CreateTree returns only once the creating transaction is confirmed.
	CreateTree(ctx context.Context, params bubblegum.TreeParams) (TreeReceipt, error)
	Mint(ctx context.Context, req MintRequest) (MintReceipt, error)
}

type TreeReceipt struct {
	Tree      solana.PublicKey
	Signature solana.Signature
	Slot      uint64
}

type MintRequest struct {
	Tree     solana.PublicKey
	Owner    solana.PublicKey
	Metadata bubblegum.MetadataArgs
}

func (r MintRequest) Validate() error {
	if r.Tree.IsZero() {
		return errors.New("mint request: tree is required")
	}
	if r.Owner.IsZero() {
		return errors.New("mint request: owner is required")
	}
	if err := r.Metadata.Validate(); err != nil {
		return fmt.Errorf("mint request: %w", err)
	}
	return nil
}

type MintReceipt struct {
	Signature solana.Signature
	Slot      uint64
	Status    rpc.Commitment
}

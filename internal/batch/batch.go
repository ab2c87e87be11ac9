// Package batch mints one compressed NFT per recipient, strictly in input
// order, pacing consecutive submissions.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"cnft-drop/go-backend/internal/bubblegum"
	"cnft-drop/go-backend/internal/ledger"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var ErrZeroRecipient = errors.New("recipient address is empty")

// Template is the part of every leaf's metadata that is fixed for a batch.
type Template struct {
	Name       string
	Symbol     string
	RoyaltyBps uint16
	// Creator is the run identity; it is listed as the single verified
	// creator with the full share.
	Creator solana.PublicKey
}

// Batch is one ordered mint run into Tree, every leaf pointing at
// ContentURI. Duplicate recipients each receive their own mint.
type Batch struct {
	Tree       solana.PublicKey
	ContentURI string
	Recipients []solana.PublicKey
	Template   Template
}

// Metadata returns the leaf metadata shared by every mint of the batch.
func (b Batch) Metadata() bubblegum.MetadataArgs {
	md := bubblegum.NewMetadata(b.Template.Name, b.Template.Symbol, b.ContentURI, b.Template.RoyaltyBps)
	md.Collection = &bubblegum.Collection{Key: b.Tree, Verified: false}
	md.Creators = []bubblegum.Creator{{Address: b.Template.Creator, Verified: true, Share: 100}}
	return md
}

// Validate checks everything that is the same for every recipient, so a bad
// template fails before anything is sent.
func (b Batch) Validate() error {
	if b.Tree.IsZero() {
		return errors.New("tree is required")
	}
	if b.Template.Creator.IsZero() {
		return errors.New("creator is required")
	}
	return b.Metadata().Validate()
}

// Record is the outcome of one recipient's mint.
type Record struct {
	Index       int
	Recipient   solana.PublicKey
	Status      Status
	Signature   solana.Signature
	Result      ledger.MintReceipt
	Err         error
	SubmittedAt time.Time
	Elapsed     time.Duration
}

func (r Record) Succeeded() bool {
	return r.Status == StatusSucceeded
}

func (r Record) String() string {
	if r.Succeeded() {
		return fmt.Sprintf("#%d %s succeeded %s", r.Index, r.Recipient, r.Signature)
	}
	return fmt.Sprintf("#%d %s failed: %v", r.Index, r.Recipient, r.Err)
}

// Failed returns the failed records in order.
func Failed(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if !r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

// Minter is the ledger call the executor drives.
type Minter interface {
	Mint(ctx context.Context, req ledger.MintRequest) (ledger.MintReceipt, error)
}

// Package rpc adapts the solana-go JSON-RPC client to the calls the drop
// pipeline and payment watcher make, adding per-method rate limiting and a
// fixed default commitment.
package rpc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"cnft-drop/go-backend/internal/platform/ratelimiter"
)

type Commitment = solanarpc.CommitmentType

const (
	CommitmentProcessed = solanarpc.CommitmentProcessed
	CommitmentConfirmed = solanarpc.CommitmentConfirmed
	CommitmentFinalized = solanarpc.CommitmentFinalized
)

// MaxTransactionSize is the largest serialized transaction a node accepts.
const MaxTransactionSize = 1232

var ErrTransactionTooBig = errors.New("transaction exceeds packet size")

// Error is a JSON-RPC error object returned by the node.
type Error = jsonrpc.RPCError

type (
	SignatureStatus = solanarpc.SignatureStatusesResult
	SignatureInfo   = solanarpc.TransactionSignature
)

type Options struct {
	HTTPClient *http.Client
	Limiter    *ratelimiter.MapLimiter
	Logger     *slog.Logger
	Commitment Commitment
}

type Client struct {
	rpc        *solanarpc.Client
	commitment Commitment
}

func New(endpoint string, opts Options) *Client {
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	commitment := opts.Commitment
	if commitment == "" {
		commitment = CommitmentConfirmed
	}
	roundTripper := base.Transport
	if roundTripper == nil {
		roundTripper = http.DefaultTransport
	}
	httpClient := &http.Client{
		Timeout:       base.Timeout,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Transport:     &limitedTransport{base: roundTripper, limiter: opts.Limiter, logger: logger},
	}
	rpcClient := jsonrpc.NewClientWithOpts(strings.TrimSpace(endpoint), &jsonrpc.RPCClientOpts{HTTPClient: httpClient})
	return &Client{
		rpc:        solanarpc.NewWithCustomRPCClient(rpcClient),
		commitment: commitment,
	}
}

func (c *Client) Commitment() Commitment {
	return c.commitment
}

func (c *Client) Close() error {
	return c.rpc.Close()
}

// historyCommitment is the commitment for ledger history queries, which do
// not accept processed.
func (c *Client) historyCommitment() Commitment {
	if c.commitment == CommitmentProcessed {
		return CommitmentConfirmed
	}
	return c.commitment
}

// GetBalance returns the lamport balance of an account.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, account, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("getBalance: %w", err)
	}
	return out.Value, nil
}

type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (Blockhash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return Blockhash{}, fmt.Errorf("getLatestBlockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return Blockhash{}, errors.New("getLatestBlockhash: empty result")
	}
	return Blockhash{Hash: out.Value.Blockhash, LastValidBlockHeight: out.Value.LastValidBlockHeight}, nil
}

func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	lamports, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, "")
	if err != nil {
		return 0, fmt.Errorf("getMinimumBalanceForRentExemption: %w", err)
	}
	return lamports, nil
}

// SendTransaction submits a signed transaction with preflight simulation and
// returns the signature reported by the node.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	wire, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sendTransaction: encode: %w", err)
	}
	if len(wire) > MaxTransactionSize {
		return solana.Signature{}, fmt.Errorf("%w: %d > %d bytes", ErrTransactionTooBig, len(wire), MaxTransactionSize)
	}
	sig, err := c.rpc.SendEncodedTransactionWithOpts(ctx, base64.StdEncoding.EncodeToString(wire), solanarpc.TransactionOpts{
		Encoding:            solana.EncodingBase64,
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sendTransaction: %w", err)
	}
	return sig, nil
}

// Failed reports whether the transaction landed with an execution error.
func Failed(st *SignatureStatus) bool {
	return st != nil && st.Err != nil
}

// Reached reports whether the status satisfies the wanted commitment.
func Reached(st *SignatureStatus, want Commitment) bool {
	if st == nil {
		return false
	}
	switch want {
	case CommitmentFinalized:
		return st.ConfirmationStatus == solanarpc.ConfirmationStatusFinalized
	case CommitmentConfirmed:
		return st.ConfirmationStatus == solanarpc.ConfirmationStatusConfirmed ||
			st.ConfirmationStatus == solanarpc.ConfirmationStatusFinalized
	default:
		return st.ConfirmationStatus != ""
	}
}

// GetSignatureStatuses returns one entry per signature; unknown signatures
// map to nil.
func (c *Client) GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*SignatureStatus, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, false, sigs...)
	if errors.Is(err, solanarpc.ErrNotFound) {
		return make([]*SignatureStatus, len(sigs)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", err)
	}
	return out.Value, nil
}

// GetSignaturesForAddress lists the newest signatures touching address.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, limit int) ([]*SignatureInfo, error) {
	opts := &solanarpc.GetSignaturesForAddressOpts{Commitment: c.historyCommitment()}
	if limit > 0 {
		opts.Limit = &limit
	}
	out, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, address, opts)
	if err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress: %w", err)
	}
	return out, nil
}

// TransactionResult is the part of a landed transaction the payment watcher
// inspects. AccountKeys lists static keys followed by keys loaded from
// lookup tables, matching the balance arrays.
type TransactionResult struct {
	Slot         uint64
	BlockTime    *int64
	Err          any
	Fee          uint64
	AccountKeys  solana.PublicKeySlice
	PreBalances  []uint64
	PostBalances []uint64
}

// GetTransaction fetches a confirmed transaction; nil means not found.
func (c *Client) GetTransaction(ctx context.Context, sig solana.Signature) (*TransactionResult, error) {
	var maxVersion uint64
	out, err := c.rpc.GetTransaction(ctx, sig, &solanarpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.historyCommitment(),
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if errors.Is(err, solanarpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getTransaction: %w", err)
	}
	if out.Transaction == nil || out.Meta == nil {
		return nil, fmt.Errorf("getTransaction %s: missing transaction or meta", sig)
	}
	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("getTransaction %s: decode: %w", sig, err)
	}
	res := &TransactionResult{
		Slot:         out.Slot,
		Err:          out.Meta.Err,
		Fee:          out.Meta.Fee,
		PreBalances:  out.Meta.PreBalances,
		PostBalances: out.Meta.PostBalances,
	}
	if out.BlockTime != nil {
		bt := int64(*out.BlockTime)
		res.BlockTime = &bt
	}
	res.AccountKeys = append(res.AccountKeys, tx.Message.AccountKeys...)
	res.AccountKeys = append(res.AccountKeys, out.Meta.LoadedAddresses.Writable...)
	res.AccountKeys = append(res.AccountKeys, out.Meta.LoadedAddresses.ReadOnly...)
	return res, nil
}

package accumulator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/bubblegum"
	"cnft-drop/go-backend/internal/ledger"
	"cnft-drop/go-backend/internal/storage"
)

type fakeCreator struct {
	calls   int
	err     error
	receipt ledger.TreeReceipt
}

func (f *fakeCreator) CreateTree(_ context.Context, params bubblegum.TreeParams) (ledger.TreeReceipt, error) {
	f.calls++
	if f.err != nil {
		return ledger.TreeReceipt{}, f.err
	}
	return f.receipt, nil
}

func newCreator(t *testing.T) *fakeCreator {
	t.Helper()
	kp, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	var sig solana.Signature
	sig[0], sig[63] = 1, 2
	return &fakeCreator{receipt: ledger.TreeReceipt{Tree: kp.PublicKey(), Signature: sig, Slot: 77}}
}

var defaultShape = bubblegum.TreeParams{MaxDepth: 14, MaxBufferSize: 64}

func fixedNow() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestObtainCreatesOnceAndReuses(t *testing.T) {
	blobs := storage.NewMemoryStore()
	creator := newCreator(t)
	p := NewProvisioner(blobs, creator, Options{Now: fixedNow})

	first, err := p.Obtain(context.Background(), defaultShape)
	require.NoError(t, err)
	require.Equal(t, creator.receipt.Tree, first.Tree)
	require.Equal(t, 1, creator.calls)
	require.Equal(t, 1, blobs.Saves())

	second, err := p.Obtain(context.Background(), defaultShape)
	require.NoError(t, err)
	require.Equal(t, first.Tree, second.Tree)
	require.Equal(t, creator.receipt.Signature, second.CreationSignature)
	require.Equal(t, fixedNow(), second.CreatedAt)
	require.Equal(t, 1, creator.calls, "second obtain must not contact the chain")
	require.Equal(t, 1, blobs.Saves())
}

func TestFailedCreationPersistsNothing(t *testing.T) {
	blobs := storage.NewMemoryStore()
	creator := newCreator(t)
	creator.err = errors.New("node unavailable")
	p := NewProvisioner(blobs, creator, Options{})

	_, err := p.Obtain(context.Background(), defaultShape)
	require.ErrorIs(t, err, apperr.ErrProvisioning)
	require.False(t, blobs.Has(DefaultBlobName))
	_, err = p.Load()
	require.ErrorIs(t, err, ErrNoTree)

	// A retry after the failure provisions normally.
	creator.err = nil
	h, err := p.Obtain(context.Background(), defaultShape)
	require.NoError(t, err)
	require.Equal(t, creator.receipt.Tree, h.Tree)
	require.Equal(t, 2, creator.calls)
}

func TestInvalidShapeNeverReachesChain(t *testing.T) {
	creator := newCreator(t)
	p := NewProvisioner(storage.NewMemoryStore(), creator, Options{})
	_, err := p.Obtain(context.Background(), bubblegum.TreeParams{MaxDepth: 14, MaxBufferSize: 63})
	require.ErrorIs(t, err, apperr.ErrInvalidRequest)
	require.ErrorIs(t, err, bubblegum.ErrUnsupportedTreeShape)
	require.Zero(t, creator.calls)
}

func TestSaveFailureAfterConfirmationIsPersistenceError(t *testing.T) {
	blobs := storage.NewMemoryStore()
	blobs.SaveErr = errors.New("disk full")
	creator := newCreator(t)
	_, err := NewProvisioner(blobs, creator, Options{}).Obtain(context.Background(), defaultShape)
	require.ErrorIs(t, err, apperr.ErrPersistence)
	require.Equal(t, 1, creator.calls)
}

func TestPublicKeyOnlyHandleIsAccepted(t *testing.T) {
	blobs := storage.NewMemoryStore()
	blobs.Put(DefaultBlobName, []byte(`{"publicKey":"7jQFJLS3QRGJyshYkLgp4QQH8D5c9qym2LQzkhag38UD"}`))
	creator := newCreator(t)

	h, err := NewProvisioner(blobs, creator, Options{}).Obtain(context.Background(), defaultShape)
	require.NoError(t, err)
	require.Equal(t, "7jQFJLS3QRGJyshYkLgp4QQH8D5c9qym2LQzkhag38UD", h.Tree.String())
	require.Zero(t, creator.calls)
}

func TestShapeMismatchWarnsAndKeepsRecordedTree(t *testing.T) {
	blobs := storage.NewMemoryStore()
	creator := newCreator(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	p := NewProvisioner(blobs, creator, Options{Logger: logger})

	first, err := p.Obtain(context.Background(), defaultShape)
	require.NoError(t, err)

	second, err := p.Obtain(context.Background(), bubblegum.TreeParams{MaxDepth: 20, MaxBufferSize: 256})
	require.NoError(t, err)
	require.Equal(t, first.Tree, second.Tree)
	require.Equal(t, 1, creator.calls)
	require.Contains(t, logs.String(), "recorded merkle tree shape differs")
}

func TestCorruptHandleIsNeverRecreated(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":       `{"publicKey":`,
		"missing key":    `{"maxDepth":14}`,
		"bad key":        `{"publicKey":"not-base58-0OIl"}`,
		"short key":      `{"publicKey":"abc"}`,
		"bad signature":  `{"publicKey":"7jQFJLS3QRGJyshYkLgp4QQH8D5c9qym2LQzkhag38UD","creationSignature":"xyz"}`,
		"bad created at": `{"publicKey":"7jQFJLS3QRGJyshYkLgp4QQH8D5c9qym2LQzkhag38UD","createdAt":"yesterday"}`,
	} {
		t.Run(name, func(t *testing.T) {
			blobs := storage.NewMemoryStore()
			blobs.Put(DefaultBlobName, []byte(payload))
			creator := newCreator(t)
			_, err := NewProvisioner(blobs, creator, Options{}).Obtain(context.Background(), defaultShape)
			require.ErrorIs(t, err, apperr.ErrCorruptState)
			require.Zero(t, creator.calls)
			require.Zero(t, blobs.Saves())
		})
	}
}

func TestHandleFileRoundTrip(t *testing.T) {
	creator := newCreator(t)
	in := Handle{
		Tree:              creator.receipt.Tree,
		MaxDepth:          14,
		MaxBufferSize:     64,
		CreationSignature: creator.receipt.Signature,
		CreatedAt:         fixedNow(),
	}
	data, err := encodeHandle(in)
	require.NoError(t, err)
	require.Contains(t, string(data), `"publicKey": "`+in.Tree.String()+`"`)
	out, err := decodeHandle(data)
	require.NoError(t, err)
	require.Equal(t, in, out)
	require.Equal(t, defaultShape, out.Params())
}

package accumulator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/bubblegum"
	"cnft-drop/go-backend/internal/ledger"
	"cnft-drop/go-backend/internal/storage"
)

const DefaultBlobName = "merkle-tree.json"

var ErrNoTree = errors.New("no merkle tree has been provisioned")

// TreeCreator is the part of the ledger the provisioner needs.
type TreeCreator interface {
	CreateTree(ctx context.Context, params bubblegum.TreeParams) (ledger.TreeReceipt, error)
}

type Options struct {
	BlobName string
	Logger   *slog.Logger
	Now      func() time.Time
}

type Provisioner struct {
	blobs   storage.Blobs
	creator TreeCreator
	name    string
	logger  *slog.Logger
	now     func() time.Time
}

func NewProvisioner(blobs storage.Blobs, creator TreeCreator, opts Options) *Provisioner {
	name := strings.TrimSpace(opts.BlobName)
	if name == "" {
		name = DefaultBlobName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Provisioner{blobs: blobs, creator: creator, name: name, logger: logger, now: now}
}

// Obtain returns the recorded tree or creates one. A recorded tree is
// trusted without asking the chain. A new tree is recorded only after its
// creating transaction is confirmed; when creation fails nothing is written
// and calling Obtain again is safe.
func (p *Provisioner) Obtain(ctx context.Context, params bubblegum.TreeParams) (*Handle, error) {
	h, err := p.Load()
	if err == nil {
		if !h.matches(params) {
			p.logger.Warn("recorded merkle tree shape differs from configuration; using recorded tree",
				"tree", h.Tree.String(),
				"recorded_depth", h.MaxDepth,
				"recorded_buffer", h.MaxBufferSize,
				"configured_depth", params.MaxDepth,
				"configured_buffer", params.MaxBufferSize,
			)
		}
		return h, nil
	}
	if !errors.Is(err, ErrNoTree) {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, apperr.InvalidRequest("tree parameters", err)
	}

	receipt, err := p.creator.CreateTree(ctx, params)
	if err != nil {
		return nil, apperr.Provisioning("create merkle tree", err)
	}
	created := &Handle{
		Tree:              receipt.Tree,
		MaxDepth:          params.MaxDepth,
		MaxBufferSize:     params.MaxBufferSize,
		CanopyDepth:       params.CanopyDepth,
		CreationSignature: receipt.Signature,
		CreatedAt:         p.now().UTC(),
	}
	data, err := encodeHandle(*created)
	if err != nil {
		return nil, apperr.Provisioning("encode merkle tree handle", err)
	}
	if err := p.blobs.Save(p.name, data); err != nil {
		// The tree exists on chain but is not recorded; the next run creates
		// another one and this one is orphaned.
		p.logger.Error("confirmed merkle tree could not be recorded",
			"tree", created.Tree.String(), "signature", receipt.Signature.String(), "err", err)
		return nil, apperr.Persistence("write merkle tree handle", err)
	}
	p.logger.Info("merkle tree provisioned",
		"tree", created.Tree.String(),
		"signature", receipt.Signature.String(),
		"slot", receipt.Slot,
		"capacity", params.Capacity(),
	)
	return created, nil
}

// Load returns the recorded tree or ErrNoTree. It never contacts the chain.
func (p *Provisioner) Load() (*Handle, error) {
	data, err := p.blobs.Load(p.name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoTree
		}
		return nil, apperr.Persistence("read merkle tree handle", err)
	}
	h, err := decodeHandle(data)
	if err != nil {
		return nil, apperr.CorruptState("decode merkle tree handle "+p.name, err)
	}
	return &h, nil
}

// Package accumulator provisions the merkle tree every mint of a drop goes
// into, and remembers it locally once the chain has confirmed it.
package accumulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"cnft-drop/go-backend/internal/bubblegum"
)

// Handle names a provisioned tree. Only Tree drives behaviour; the shape
// and creation fields are informational.
type Handle struct {
	Tree              solana.PublicKey
	MaxDepth          uint32
	MaxBufferSize     uint32
	CanopyDepth       uint32
	CreationSignature solana.Signature
	CreatedAt         time.Time
}

// Params returns the recorded tree shape.
func (h Handle) Params() bubblegum.TreeParams {
	return bubblegum.TreeParams{MaxDepth: h.MaxDepth, MaxBufferSize: h.MaxBufferSize, CanopyDepth: h.CanopyDepth}
}

// matches reports whether the recorded shape agrees with params. Handles
// written with only a public key carry no shape and always match.
func (h Handle) matches(params bubblegum.TreeParams) bool {
	if h.MaxDepth == 0 && h.MaxBufferSize == 0 {
		return true
	}
	return h.MaxDepth == params.MaxDepth &&
		h.MaxBufferSize == params.MaxBufferSize &&
		h.CanopyDepth == params.CanopyDepth
}

type handleFile struct {
	PublicKey         string `json:"publicKey"`
	MaxDepth          uint32 `json:"maxDepth,omitempty"`
	MaxBufferSize     uint32 `json:"maxBufferSize,omitempty"`
	CanopyDepth       uint32 `json:"canopyDepth,omitempty"`
	CreationSignature string `json:"creationSignature,omitempty"`
	CreatedAt         string `json:"createdAt,omitempty"`
}

func encodeHandle(h Handle) ([]byte, error) {
	if h.Tree.IsZero() {
		return nil, errors.New("tree public key is required")
	}
	f := handleFile{
		PublicKey:     h.Tree.String(),
		MaxDepth:      h.MaxDepth,
		MaxBufferSize: h.MaxBufferSize,
		CanopyDepth:   h.CanopyDepth,
	}
	if !h.CreationSignature.IsZero() {
		f.CreationSignature = h.CreationSignature.String()
	}
	if !h.CreatedAt.IsZero() {
		f.CreatedAt = h.CreatedAt.UTC().Format(time.RFC3339)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decodeHandle(data []byte) (Handle, error) {
	var f handleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Handle{}, err
	}
	if strings.TrimSpace(f.PublicKey) == "" {
		return Handle{}, errors.New("publicKey is missing")
	}
	tree, err := solana.PublicKeyFromBase58(strings.TrimSpace(f.PublicKey))
	if err != nil {
		return Handle{}, err
	}
	h := Handle{
		Tree:          tree,
		MaxDepth:      f.MaxDepth,
		MaxBufferSize: f.MaxBufferSize,
		CanopyDepth:   f.CanopyDepth,
	}
	if f.CreationSignature != "" {
		sig, err := solana.SignatureFromBase58(strings.TrimSpace(f.CreationSignature))
		if err != nil {
			return Handle{}, fmt.Errorf("creationSignature: %w", err)
		}
		h.CreationSignature = sig
	}
	if f.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339, f.CreatedAt)
		if err != nil {
			return Handle{}, fmt.Errorf("createdAt: %w", err)
		}
		h.CreatedAt = ts
	}
	return h, nil
}

package bubblegum

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

const (
	concurrentMerkleTreeHeaderSize = 2 + 54
	nodeSize                       = 32
)

var ErrUnsupportedTreeShape = errors.New("unsupported merkle tree depth/buffer pair")

type depthBuffer struct {
	depth, buffer uint32
}

// Depth and buffer pairs the account compression program is compiled for.
var supportedShapes = map[depthBuffer]struct{}{
	{3, 8}: {}, {5, 8}: {},
	{14, 64}: {}, {14, 256}: {}, {14, 1024}: {}, {14, 2048}: {},
	{15, 64}: {}, {16, 64}: {}, {17, 64}: {}, {18, 64}: {}, {19, 64}: {},
	{20, 64}: {}, {20, 256}: {}, {20, 1024}: {}, {20, 2048}: {},
	{24, 64}: {}, {24, 256}: {}, {24, 512}: {}, {24, 1024}: {}, {24, 2048}: {},
	{26, 512}: {}, {26, 1024}: {}, {26, 2048}: {},
	{30, 512}: {}, {30, 1024}: {}, {30, 2048}: {},
}

// TreeParams fixes the shape of a concurrent merkle tree at creation.
type TreeParams struct {
	MaxDepth      uint32
	MaxBufferSize uint32
	CanopyDepth   uint32
	// Public allows anyone to mint into the tree; nil keeps the program default.
	Public *bool
}

func (p TreeParams) Validate() error {
	if _, ok := supportedShapes[depthBuffer{p.MaxDepth, p.MaxBufferSize}]; !ok {
		return fmt.Errorf("%w: depth=%d buffer=%d", ErrUnsupportedTreeShape, p.MaxDepth, p.MaxBufferSize)
	}
	if p.CanopyDepth >= p.MaxDepth {
		return fmt.Errorf("canopy depth %d must be below max depth %d", p.CanopyDepth, p.MaxDepth)
	}
	return nil
}

// Capacity is the number of leaves the tree can hold.
func (p TreeParams) Capacity() uint64 {
	return uint64(1) << p.MaxDepth
}

// AccountSize is the byte size of the tree account: header, the tree with its
// changelog buffer and rightmost proof, then the canopy.
func (p TreeParams) AccountSize() uint64 {
	depth := uint64(p.MaxDepth)
	changeLog := nodeSize + nodeSize*depth + 4 + 4
	rightmostPath := nodeSize*depth + nodeSize + 4 + 4
	tree := 8 + 8 + 8 + uint64(p.MaxBufferSize)*changeLog + rightmostPath
	var canopy uint64
	if p.CanopyDepth > 0 {
		canopy = ((uint64(1) << (p.CanopyDepth + 1)) - 2) * nodeSize
	}
	return concurrentMerkleTreeHeaderSize + tree + canopy
}

type createTreeArgs struct {
	Discriminator [8]byte
	MaxDepth      uint32
	MaxBufferSize uint32
	Public        *bool `bin:"optional"`
}

// CreateTreeInstructions allocates the tree account and initialises its
// Bubblegum config. The tree account keypair must co-sign with payer.
func CreateTreeInstructions(p TreeParams, payer, tree, creator solana.PublicKey, rentLamports uint64) ([]solana.Instruction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	authority, err := TreeAuthority(tree)
	if err != nil {
		return nil, err
	}
	allocate, err := system.NewCreateAccountInstruction(rentLamports, p.AccountSize(), CompressionProgramID, payer, tree).ValidateAndBuild()
	if err != nil {
		return nil, err
	}
	data, err := bin.MarshalBorsh(createTreeArgs{
		Discriminator: discriminator("create_tree"),
		MaxDepth:      p.MaxDepth,
		MaxBufferSize: p.MaxBufferSize,
		Public:        p.Public,
	})
	if err != nil {
		return nil, err
	}
	create := solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(authority).WRITE(),
		solana.Meta(tree).WRITE(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(creator).SIGNER(),
		solana.Meta(NoopProgramID),
		solana.Meta(CompressionProgramID),
		solana.Meta(solana.SystemProgramID),
	}, data)
	return []solana.Instruction{allocate, create}, nil
}

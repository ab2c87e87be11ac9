package bubblegum

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type MintV1Accounts struct {
	Tree         solana.PublicKey
	LeafOwner    solana.PublicKey
	LeafDelegate solana.PublicKey // defaults to LeafOwner
	Payer        solana.PublicKey
	TreeDelegate solana.PublicKey // the tree creator unless delegated
}

type mintV1Args struct {
	Discriminator [8]byte
	Metadata      MetadataArgs
}

// MintV1 appends one compressed NFT leaf owned by LeafOwner to the tree.
func MintV1(accounts MintV1Accounts, metadata MetadataArgs) (*solana.GenericInstruction, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}
	authority, err := TreeAuthority(accounts.Tree)
	if err != nil {
		return nil, err
	}
	delegate := accounts.LeafDelegate
	if delegate.IsZero() {
		delegate = accounts.LeafOwner
	}
	data, err := bin.MarshalBorsh(mintV1Args{Discriminator: discriminator("mint_v1"), Metadata: metadata})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(authority).WRITE(),
		solana.Meta(accounts.LeafOwner),
		solana.Meta(delegate),
		solana.Meta(accounts.Tree).WRITE(),
		solana.Meta(accounts.Payer).WRITE().SIGNER(),
		solana.Meta(accounts.TreeDelegate).SIGNER(),
		solana.Meta(NoopProgramID),
		solana.Meta(CompressionProgramID),
		solana.Meta(solana.SystemProgramID),
	}, data), nil
}

// Package bubblegum builds instructions for the Metaplex Bubblegum program,
// which mints compressed NFTs as leaves of an SPL concurrent merkle tree.
package bubblegum

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

var (
	ProgramID            = solana.MustPublicKeyFromBase58("BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY")
	CompressionProgramID = solana.MustPublicKeyFromBase58("cmtDvXumGCrqC1Age74AVPhSRVXJMd8PJS91L8KbNCK")
	NoopProgramID        = solana.MustPublicKeyFromBase58("noopb9bkMVfRPU8AsbpTUg8AQkHtKwMYZiFUjNRtMmV")
)

// discriminator is the anchor instruction selector for name.
func discriminator(name string) (d [8]byte) {
	sum := sha256.Sum256([]byte("global:" + name))
	copy(d[:], sum[:8])
	return d
}

// TreeAuthority derives the tree config PDA that Bubblegum keys by tree address.
func TreeAuthority(tree solana.PublicKey) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress([][]byte{tree[:]}, ProgramID)
	return pda, err
}

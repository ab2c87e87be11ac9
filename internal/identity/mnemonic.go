package identity

import (
	"crypto/ed25519"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

var (
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
	ErrMnemonicRequired = errors.New("mnemonic is required")
)

const mnemonicEntropyBits = 256

// NewMnemonic returns a fresh 24-word BIP-39 mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// KeypairFromMnemonic derives the keypair solana-keygen recovers for a
// mnemonic without a derivation path: the first 32 bytes of the BIP-39 seed
// (empty passphrase) are the ed25519 seed.
func KeypairFromMnemonic(mnemonic string) (solana.PrivateKey, error) {
	mnemonic = normalizeMnemonic(mnemonic)
	if mnemonic == "" {
		return nil, ErrMnemonicRequired
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	defer zeroBytes(seed)
	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])), nil
}

func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(normalizeMnemonic(mnemonic))
}

func normalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

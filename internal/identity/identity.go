// Package identity loads or creates the signing keypair that pays for and
// authorises every transaction of a drop.
package identity

import "github.com/gagliardetto/solana-go"

// Identity is the run's signing keypair.
type Identity struct {
	key solana.PrivateKey
	// Mnemonic is set only on the call that created the identity and is
	// never persisted.
	Mnemonic string
	Created  bool
}

func (i *Identity) PublicKey() solana.PublicKey {
	return i.key.PublicKey()
}

// PrivateKey is the signing key handed to the ledger.
func (i *Identity) PrivateKey() solana.PrivateKey {
	return i.key
}

// Secret returns a copy of the 64-byte secret in solana-keygen order.
func (i *Identity) Secret() []byte {
	return append([]byte(nil), i.key...)
}

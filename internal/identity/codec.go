package identity

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cnft-drop/go-backend/internal/securestore"
)

var ErrKeypairMismatch = errors.New("keypair public half does not match its seed")

// encodeKeypair writes the solana-keygen JSON array layout, sealed when a
// passphrase is configured.
func encodeKeypair(key solana.PrivateKey, passphrase string) ([]byte, error) {
	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	if passphrase == "" {
		return raw, nil
	}
	defer zeroBytes(raw)
	return securestore.Seal(passphrase, raw)
}

func decodeKeypair(data []byte, passphrase string) (solana.PrivateKey, error) {
	if securestore.IsSealed(data) {
		plain, err := securestore.Open(passphrase, data)
		if err != nil {
			return nil, err
		}
		defer zeroBytes(plain)
		data = plain
	}
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("keypair is not a JSON byte array: %w", err)
	}
	if len(values) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keypair has %d bytes, want %d", len(values), ed25519.PrivateKeySize)
	}
	key := make(solana.PrivateKey, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("keypair byte %d out of range: %d", i, v)
		}
		key[i] = byte(v)
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	defer zeroBytes(derived)
	if !bytes.Equal(derived[ed25519.SeedSize:], key[ed25519.SeedSize:]) {
		return nil, ErrKeypairMismatch
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

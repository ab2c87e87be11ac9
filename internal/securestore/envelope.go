// Package securestore seals identity secrets under a passphrase with
// argon2id and XChaCha20-Poly1305.
package securestore

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	kdfName         = "argon2id"
	kdfTime         = 2
	kdfMemoryKB     = 64 * 1024
	kdfThreads      = 1
)

// Sealed blobs start with this line so they can be told apart from plain
// solana-keygen JSON arrays.
var filePrefix = []byte("CNFTDROP-SEALED-1\n")

var (
	ErrAuthFailed         = errors.New("securestore authentication failed")
	ErrInvalid            = errors.New("securestore envelope is invalid")
	ErrNotSealed          = errors.New("securestore data is not sealed")
	ErrPassphraseRequired = errors.New("securestore passphrase is required")
)

type Envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

// IsSealed reports whether data was produced by Seal.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, filePrefix)
}

// Seal encrypts plaintext and returns the on-disk representation.
func Seal(passphrase string, plaintext []byte) ([]byte, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrPassphraseRequired
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt, kdfTime, kdfMemoryKB, kdfThreads)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(Envelope{
		Version:     envelopeVersion,
		KDF:         kdfName,
		KDFTime:     kdfTime,
		KDFMemoryKB: kdfMemoryKB,
		KDFThreads:  kdfThreads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, plaintext, filePrefix),
	})
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), filePrefix...), raw...), nil
}

// Open reverses Seal. A wrong passphrase and a tampered blob both yield
// ErrAuthFailed.
func Open(passphrase string, data []byte) ([]byte, error) {
	if !IsSealed(data) {
		return nil, ErrNotSealed
	}
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrPassphraseRequired
	}
	var env Envelope
	if err := json.Unmarshal(data[len(filePrefix):], &env); err != nil {
		return nil, ErrInvalid
	}
	if env.Version != envelopeVersion || env.KDF != kdfName || len(env.Salt) != saltSize ||
		len(env.Nonce) != chacha20poly1305.NonceSizeX || env.KDFThreads == 0 {
		return nil, ErrInvalid
	}
	key := deriveKey(passphrase, env.Salt, env.KDFTime, env.KDFMemoryKB, env.KDFThreads)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, filePrefix)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func deriveKey(passphrase string, salt []byte, time, memoryKB uint32, threads uint8) []byte {
	return argon2.IDKey([]byte(passphrase), salt, time, memoryKB, threads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

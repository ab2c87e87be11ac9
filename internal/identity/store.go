package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cnft-drop/go-backend/internal/apperr"
	"cnft-drop/go-backend/internal/securestore"
	"cnft-drop/go-backend/internal/storage"
)

const DefaultBlobName = "keypair.json"

var (
	ErrNoIdentity     = errors.New("no identity has been created")
	ErrIdentityExists = errors.New("an identity already exists")
)

type StoreOptions struct {
	BlobName string
	// Passphrase seals the secret at rest; empty keeps the plain
	// solana-keygen format.
	Passphrase string
	Logger     *slog.Logger
}

// Store owns the persisted identity secret.
type Store struct {
	blobs      storage.Blobs
	name       string
	passphrase string
	logger     *slog.Logger
}

func NewStore(blobs storage.Blobs, opts StoreOptions) *Store {
	name := strings.TrimSpace(opts.BlobName)
	if name == "" {
		name = DefaultBlobName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		blobs:      blobs,
		name:       name,
		passphrase: strings.TrimSpace(opts.Passphrase),
		logger:     logger,
	}
}

// Obtain returns the persisted identity, creating and persisting a new one
// when none exists. The new secret is on durable storage before it is
// returned, so nothing can be signed with a key that a crash would lose.
func (s *Store) Obtain() (*Identity, error) {
	id, err := s.Load()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNoIdentity) {
		return nil, err
	}
	mnemonic, err := NewMnemonic()
	if err != nil {
		return nil, fmt.Errorf("generate mnemonic: %w", err)
	}
	return s.create(mnemonic)
}

// Load returns the persisted identity or ErrNoIdentity.
func (s *Store) Load() (*Identity, error) {
	data, err := s.blobs.Load(s.name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoIdentity
		}
		return nil, apperr.Persistence("read identity", err)
	}
	if s.passphrase != "" && !securestore.IsSealed(data) {
		s.logger.Warn("identity is stored unsealed although a passphrase is configured", "blob", s.name)
	}
	key, err := decodeKeypair(data, s.passphrase)
	if err != nil {
		return nil, apperr.CorruptState("decode identity "+s.name, err)
	}
	return &Identity{key: key}, nil
}

// Import persists the identity recovered from mnemonic. An existing
// identity is never overwritten.
func (s *Store) Import(mnemonic string) (*Identity, error) {
	if _, err := s.blobs.Load(s.name); err == nil {
		return nil, ErrIdentityExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Persistence("read identity", err)
	}
	if !ValidateMnemonic(mnemonic) {
		return nil, apperr.InvalidRequest("import identity", ErrInvalidMnemonic)
	}
	id, err := s.create(mnemonic)
	if err != nil {
		return nil, err
	}
	id.Mnemonic = ""
	return id, nil
}

func (s *Store) create(mnemonic string) (*Identity, error) {
	key, err := KeypairFromMnemonic(mnemonic)
	if err != nil {
		return nil, apperr.InvalidRequest("derive identity", err)
	}
	data, err := encodeKeypair(key, s.passphrase)
	if err != nil {
		return nil, apperr.Persistence("encode identity", err)
	}
	if err := s.blobs.Save(s.name, data); err != nil {
		return nil, apperr.Persistence("write identity", err)
	}
	s.logger.Info("identity created", "public_key", key.PublicKey().String(), "sealed", s.passphrase != "")
	return &Identity{key: key, Mnemonic: mnemonic, Created: true}, nil
}

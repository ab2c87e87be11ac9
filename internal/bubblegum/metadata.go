package bubblegum

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	MaxNameLength    = 32
	MaxSymbolLength  = 10
	MaxURILength     = 200
	MaxCreators      = 5
	MaxBasisPoints   = 10_000
	creatorSharesSum = 100
)

var ErrInvalidMetadata = errors.New("invalid compressed nft metadata")

type TokenStandard uint8

const (
	TokenStandardNonFungible TokenStandard = iota
	TokenStandardFungibleAsset
	TokenStandardFungible
	TokenStandardNonFungibleEdition
)

type TokenProgramVersion uint8

const (
	TokenProgramVersionOriginal TokenProgramVersion = iota
	TokenProgramVersionToken2022
)

type UseMethod uint8

const (
	UseMethodBurn UseMethod = iota
	UseMethodMultiple
	UseMethodSingle
)

type Uses struct {
	UseMethod UseMethod
	Remaining uint64
	Total     uint64
}

// Collection fields are in wire order.
type Collection struct {
	Verified bool
	Key      solana.PublicKey
}

type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// MetadataArgs is the on-chain metadata of one compressed NFT leaf. Field
// order is the borsh layout mint_v1 expects.
type MetadataArgs struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	PrimarySaleHappened  bool
	IsMutable            bool
	EditionNonce         *uint8         `bin:"optional"`
	TokenStandard        *TokenStandard `bin:"optional"`
	Collection           *Collection    `bin:"optional"`
	Uses                 *Uses          `bin:"optional"`
	TokenProgramVersion  TokenProgramVersion
	Creators             []Creator
}

// NewMetadata fills the defaults the Metaplex SDKs use for a plain mint:
// mutable, non-fungible, primary sale not yet happened.
func NewMetadata(name, symbol, uri string, royaltyBps uint16) MetadataArgs {
	standard := TokenStandardNonFungible
	return MetadataArgs{
		Name:                 name,
		Symbol:               symbol,
		URI:                  uri,
		SellerFeeBasisPoints: royaltyBps,
		IsMutable:            true,
		TokenStandard:        &standard,
	}
}

func (m MetadataArgs) Validate() error {
	switch {
	case m.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidMetadata)
	case len(m.Name) > MaxNameLength:
		return fmt.Errorf("%w: name is %d bytes, limit %d", ErrInvalidMetadata, len(m.Name), MaxNameLength)
	case len(m.Symbol) > MaxSymbolLength:
		return fmt.Errorf("%w: symbol is %d bytes, limit %d", ErrInvalidMetadata, len(m.Symbol), MaxSymbolLength)
	case m.URI == "":
		return fmt.Errorf("%w: uri is required", ErrInvalidMetadata)
	case len(m.URI) > MaxURILength:
		return fmt.Errorf("%w: uri is %d bytes, limit %d", ErrInvalidMetadata, len(m.URI), MaxURILength)
	case m.SellerFeeBasisPoints > MaxBasisPoints:
		return fmt.Errorf("%w: seller fee %d bps exceeds %d", ErrInvalidMetadata, m.SellerFeeBasisPoints, MaxBasisPoints)
	case len(m.Creators) > MaxCreators:
		return fmt.Errorf("%w: %d creators, limit %d", ErrInvalidMetadata, len(m.Creators), MaxCreators)
	}
	if len(m.Creators) > 0 {
		total := 0
		for _, c := range m.Creators {
			if c.Address.IsZero() {
				return fmt.Errorf("%w: creator address is empty", ErrInvalidMetadata)
			}
			total += int(c.Share)
		}
		if total != creatorSharesSum {
			return fmt.Errorf("%w: creator shares sum to %d, want %d", ErrInvalidMetadata, total, creatorSharesSum)
		}
	}
	return nil
}

// MarshalBorsh encodes the args in the layout mint_v1 expects.
func (m MetadataArgs) MarshalBorsh() ([]byte, error) {
	return bin.MarshalBorsh(m)
}

package bitcoin

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"portfolio_aggregator/internal/domain/entity"
)

// KeyKind is the address scheme implied by an extended public key prefix.
type KeyKind int

const (
	KindXpub KeyKind = iota // BIP44 P2PKH, or BIP84 when exported at account depth
	KindYpub                // BIP49 P2SH-P2WPKH
	KindZpub                // BIP84 P2WPKH
)

var versions = map[[4]byte]KeyKind{
	{0x04, 0x88, 0xb2, 0x1e}: KindXpub,
	{0x04, 0x9d, 0x7c, 0xb2}: KindYpub,
	{0x04, 0xb2, 0x47, 0x46}: KindZpub,
}

// ExtendedKey is a parsed BIP32 extended public key with the scheme of its prefix.
type ExtendedKey struct {
	Kind KeyKind
	key  *hdkeychain.ExtendedKey
}

// ParseExtendedKey decodes and validates a base58check xpub, ypub or zpub.
func ParseExtendedKey(s string) (*ExtendedKey, error) {
	key, err := hdkeychain.NewKeyFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: extended key: %v", entity.ErrInvalidAddress, err)
	}
	if key.IsPrivate() {
		return nil, fmt.Errorf("%w: extended private keys are not accepted", entity.ErrUnsupportedAddress)
	}

	var version [4]byte
	copy(version[:], key.Version())
	kind, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: unknown extended key version %x", entity.ErrUnsupportedAddress, version)
	}
	return &ExtendedKey{Kind: kind, key: key}, nil
}

// Depth is the BIP32 depth of the key; account keys sit at depth 3.
func (k *ExtendedKey) Depth() uint8 {
	return k.key.Depth()
}

// Child derives the non-hardened child at index.
func (k *ExtendedKey) Child(index uint32) (*ExtendedKey, error) {
	child, err := k.key.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &ExtendedKey{Kind: k.Kind, key: child}, nil
}

// P2WPKHAddress returns the native segwit (bc1q...) address of the key.
func (k *ExtendedKey) P2WPKHAddress() (string, error) {
	pub, err := k.key.ECPubKey()
	if err != nil {
		return "", err
	}
	return p2wpkhAddress(pub.SerializeCompressed())
}

func p2wpkhAddress(compressedPubKey []byte) (string, error) {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(compressedPubKey), &chaincfg.MainNetParams)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

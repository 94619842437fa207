package crypto

import (
	"encoding/hex"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
	"github.com/stellar/go/exp/crypto/derivation"
	"golang.org/x/crypto/ed25519"
)

// Signer is the functionality we use from a private key
// No serializing to support hardware devices as well.
type Signer interface {
	Sign(message []byte) ([]byte, error)
	Credential() deedhouse.Credential
}

// PrivateKey is an ed25519 private key.
type PrivateKey struct {
	Ed25519 []byte
}

var _ Signer = (*PrivateKey)(nil)

// Sign returns a matching signature for this private key
func (p *PrivateKey) Sign(message []byte) ([]byte, error) {
	if p == nil || len(p.Ed25519) != ed25519.PrivateKeySize {
		return nil, errors.Wrap(errors.ErrInput, "invalid private key")
	}
	return ed25519.Sign(ed25519.PrivateKey(p.Ed25519), message), nil
}

// Credential returns the public key of this private key. Nil is returned
// for an invalid private key.
func (p *PrivateKey) Credential() deedhouse.Credential {
	if p == nil || len(p.Ed25519) != ed25519.PrivateKeySize {
		return nil
	}
	pub := ed25519.PrivateKey(p.Ed25519).Public().(ed25519.PublicKey)
	return deedhouse.Credential(pub)
}

// Seed returns the 32 byte seed this private key was created from.
func (p *PrivateKey) Seed() []byte {
	return ed25519.PrivateKey(p.Ed25519).Seed()
}

// GenPrivKeyEd25519 returns a random new private key
func GenPrivKeyEd25519() *PrivateKey {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	return &PrivateKey{Ed25519: priv}
}

// PrivKeyEd25519FromSeed will deterministically generate a private key from
// a given seed. Use if you have a strong source of external randomness,
// or for deterministic keys in test cases.
func PrivKeyEd25519FromSeed(seed []byte) *PrivateKey {
	return &PrivateKey{Ed25519: ed25519.NewKeyFromSeed(seed)}
}

// DecodePrivateKeyFromSeed decodes a hex encoded 32 byte seed or a 64 byte
// private key.
func DecodePrivateKeyFromSeed(hexSeed string) (*PrivateKey, error) {
	raw, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "cannot decode hex: %s", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return PrivKeyEd25519FromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return PrivKeyEd25519FromSeed(raw[:ed25519.SeedSize]), nil
	default:
		return nil, errors.Wrapf(errors.ErrInput, "invalid seed length %d", len(raw))
	}
}

// DeriveEd25519 derives a private key from a master seed and a hardened
// derivation path. An empty path returns the master key.
func DeriveEd25519(seed []byte, path string) (*PrivateKey, error) {
	if path == "" {
		k, err := derivation.NewMasterKey(seed)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInput, "master key: %s", err)
		}
		return PrivKeyEd25519FromSeed(k.Key), nil
	}
	k, err := derivation.DeriveForPath(path, seed)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "derive path %q: %s", path, err)
	}
	return PrivKeyEd25519FromSeed(k.Key), nil
}

package auction

import (
	"bytes"
	"crypto/sha256"
	"strconv"

	"github.com/btcsuite/btcutil/base58"
	"github.com/iov-one/deedhouse/errors"
	"golang.org/x/crypto/sha3"
)

// Commitment schemes.
const (
	SchemeSHA256 = "sha256"
	SchemeSHA3   = "sha3"
	// SchemeLegacy is the base58 encoding of the plain text. It does not
	// hide the amount and is kept only for compatibility with old clients.
	SchemeLegacy = "legacy"
)

// IsKnownScheme returns true if a commitment can be computed with given
// scheme.
func IsKnownScheme(scheme string) bool {
	switch scheme {
	case SchemeSHA256, SchemeSHA3, SchemeLegacy:
		return true
	}
	return false
}

// Commitment returns the commitment of a sealed bid: the hash of the
// decimal amount followed by the salt.
func Commitment(scheme string, amount uint64, salt string) ([]byte, error) {
	plain := []byte(strconv.FormatUint(amount, 10) + salt)
	switch scheme {
	case SchemeSHA256:
		sum := sha256.Sum256(plain)
		return sum[:], nil
	case SchemeSHA3:
		sum := sha3.Sum256(plain)
		return sum[:], nil
	case SchemeLegacy:
		return []byte(base58.Encode(plain)), nil
	default:
		return nil, errors.Wrapf(errors.ErrInput, "unknown scheme %q", scheme)
	}
}

// verifyCommitment returns ErrMismatch if the amount and salt do not match
// the commitment.
func verifyCommitment(scheme string, commitment []byte, amount uint64, salt string) error {
	want, err := Commitment(scheme, amount, salt)
	if err != nil {
		return err
	}
	if !bytes.Equal(want, commitment) {
		return errors.Wrap(errors.ErrMismatch, "commitment does not match")
	}
	return nil
}

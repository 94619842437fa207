package deedtest

import (
	"crypto/rand"
	"testing"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/crypto"
)

// NewKey returns a random private key.
func NewKey() *crypto.PrivateKey {
	return crypto.GenPrivKeyEd25519()
}

// NewCredential returns the credential of a random private key.
func NewCredential() deedhouse.Credential {
	return NewKey().Credential()
}

// RandomAddr returns a random, valid address.
func RandomAddr(t testing.TB) deedhouse.Address {
	t.Helper()
	raw := make([]byte, deedhouse.AddressLength)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("cannot read random data: %s", err)
	}
	return raw
}

// ParseAddress takes an address in a human readable format and returns its
// binary representation.
func ParseAddress(t testing.TB, encodedAddress string) deedhouse.Address {
	t.Helper()

	addr, err := deedhouse.ParseAddress(encodedAddress)
	if err != nil {
		t.Fatalf("cannot parse %q address: %s", encodedAddress, err)
	}
	return addr
}

package deedhouse

import (
	"encoding/json"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/iov-one/deedhouse/errors"
	"golang.org/x/crypto/ed25519"
)

// CredentialPrefix is prepended to the base58 text form of a credential.
const CredentialPrefix = "ed25519:"

// Credential is an access key of a ledger account: an ed25519 public key.
// An account holds exactly one live credential and only transactions signed
// by the matching private key are accepted for it.
type Credential []byte

// ParseCredential decodes the "ed25519:<base58>" text form.
func ParseCredential(s string) (Credential, error) {
	if !strings.HasPrefix(s, CredentialPrefix) {
		return nil, errors.Wrapf(errors.ErrInput, "credential must start with %q", CredentialPrefix)
	}
	raw := base58.Decode(strings.TrimPrefix(s, CredentialPrefix))
	c := Credential(raw)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate returns an error if this is not a well formed ed25519 key.
func (c Credential) Validate() error {
	if len(c) == 0 {
		return errors.Wrap(errors.ErrEmpty, "credential")
	}
	if len(c) != ed25519.PublicKeySize {
		return errors.Wrapf(errors.ErrInput, "credential length %d", len(c))
	}
	return nil
}

// Equals checks if two credentials are the same.
func (c Credential) Equals(o Credential) bool {
	return Address(c).Equals(Address(o))
}

// Verify returns true if sig is a valid signature of message created with the
// private key of this credential.
func (c Credential) Verify(message, sig []byte) bool {
	if c.Validate() != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(c), message, sig)
}

// Condition returns the signature condition of this credential.
func (c Credential) Condition() Condition {
	return NewCondition("sigs", "ed25519", c)
}

func (c Credential) String() string {
	if len(c) == 0 {
		return ""
	}
	return CredentialPrefix + base58.Encode(c)
}

func (c Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Credential) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return errors.Wrap(err, "cannot decode json")
	}
	if s == "" {
		*c = nil
		return nil
	}
	parsed, err := ParseCredential(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

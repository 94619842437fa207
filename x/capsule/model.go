package capsule

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/orm"
)

// Capsule is the state of the capsule of a single asset.
type Capsule struct {
	// Owner is the credential of the asset owner at initialization. It is
	// restored by revert.
	Owner deedhouse.Credential
	// Live is the credential that the ledger confirmed as the access key
	// of the asset.
	Live        deedhouse.Credential
	Custodian   deedhouse.Address
	Underwriter deedhouse.Address
	// Pending is set while a key replacement waits for confirmation.
	Pending *Change
	// Registering is set until the custodian answers the registration.
	Registering bool
}

// Change is a key replacement that was issued but not yet confirmed.
type Change struct {
	Credential deedhouse.Credential
	Revert     bool
}

var _ orm.Model = (*Capsule)(nil)

func (c *Capsule) Marshal() ([]byte, error) {
	return deedhouse.Marshal(c)
}

func (c *Capsule) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, c)
}

func (c *Capsule) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Owner", c.Owner.Validate())
	errs = errors.AppendField(errs, "Live", c.Live.Validate())
	errs = errors.AppendField(errs, "Custodian", c.Custodian.Validate())
	errs = errors.AppendField(errs, "Underwriter", c.Underwriter.Validate())
	if c.Pending != nil {
		errs = errors.AppendField(errs, "Pending.Credential", c.Pending.Credential.Validate())
	}
	return errs
}

// IsPending returns true if a key replacement waits for confirmation.
func (c *Capsule) IsPending() bool {
	return c.Pending != nil
}

// There is only one capsule in the namespace of an asset account.
var capsuleKey = []byte("capsule")

// NewBucket returns the bucket holding the capsule state.
func NewBucket() orm.ModelBucket {
	return orm.NewModelBucket("capsule", &Capsule{})
}

// Load returns the capsule state or ErrNotFound if the capsule was not
// initialized.
func Load(db deedhouse.ReadOnlyKVStore, b orm.ModelBucket) (*Capsule, error) {
	var c Capsule
	if err := b.One(db, capsuleKey, &c); err != nil {
		return nil, errors.Wrap(err, "capsule")
	}
	return &c, nil
}

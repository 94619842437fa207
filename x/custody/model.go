package custody

import (
	"fmt"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/orm"
)

// State is the state of a custody record.
type State uint8

const (
	// Locking records wait for the capsule to confirm that the custodian
	// credential was installed.
	Locking State = iota + 1
	// Held records are in custody.
	Held
	// Releasing records wait for the capsule to confirm a release.
	Releasing
)

func (s State) String() string {
	switch s {
	case Locking:
		return "locking"
	case Held:
		return "held"
	case Releasing:
		return "releasing"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Record is the custody record of an asset.
type Record struct {
	Asset       deedhouse.Address
	Underwriter deedhouse.Address
	State       State
	// Winner is set while the asset is being released to the winner of an
	// auction.
	Winner deedhouse.Credential
}

var _ orm.Model = (*Record)(nil)

func (r *Record) Marshal() ([]byte, error) {
	return deedhouse.Marshal(r)
}

func (r *Record) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, r)
}

func (r *Record) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Asset", r.Asset.Validate())
	errs = errors.AppendField(errs, "Underwriter", r.Underwriter.Validate())
	if r.State < Locking || r.State > Releasing {
		errs = errors.AppendField(errs, "State", errors.ErrState)
	}
	if len(r.Winner) != 0 {
		errs = errors.AppendField(errs, "Winner", r.Winner.Validate())
	}
	return errs
}

// RecordList is a serializable list of records.
type RecordList struct {
	Records []Record
}

func (l *RecordList) Marshal() ([]byte, error) {
	return deedhouse.Marshal(l)
}

func (l *RecordList) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, l)
}

func recordUnderwriter(m orm.Model) ([]byte, error) {
	r, ok := m.(*Record)
	if !ok {
		return nil, errors.Wrapf(errors.ErrType, "%T", m)
	}
	return r.Underwriter, nil
}

// underwriterIndex is the name of the records index by underwriter.
const underwriterIndex = "seller"

// NewBucket returns the bucket of custody records, keyed by the asset
// address and indexed by the underwriter.
func NewBucket() orm.ModelBucket {
	return orm.NewModelBucket("records", &Record{},
		orm.WithIndex(underwriterIndex, recordUnderwriter, false),
	)
}

package ledger

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
)

// SetKeyPath is the path of the system call that replaces the access key of
// an account. It is handled by the ledger and cannot be routed to a
// component.
const SetKeyPath = "ledger/set_key"

// SetKeyMsg replaces the live access key of the receiver account. An
// account can issue it only to itself.
type SetKeyMsg struct {
	Credential deedhouse.Credential
}

var _ deedhouse.Msg = (*SetKeyMsg)(nil)

func (SetKeyMsg) Path() string {
	return SetKeyPath
}

func (m *SetKeyMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *SetKeyMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *SetKeyMsg) Validate() error {
	return errors.Field("Credential", m.Credential.Validate(), "")
}

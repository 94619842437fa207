package capsule

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
)

const (
	pathInit       = "capsule/init"
	pathInstall    = "capsule/install"
	pathRevert     = "capsule/revert"
	pathConfirm    = "capsule/confirm"
	pathRegistered = "capsule/registered"
	pathQuery      = "capsule/query"
)

// InitMsg sets up the capsule of an asset. It must be signed with the
// current access key of the asset account and issued by the account itself.
// The signing key is recorded as the owner credential.
type InitMsg struct {
	Custodian   deedhouse.Address
	Underwriter deedhouse.Address
}

var _ deedhouse.Msg = (*InitMsg)(nil)

func (InitMsg) Path() string {
	return pathInit
}

func (m *InitMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *InitMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *InitMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Custodian", m.Custodian.Validate())
	errs = errors.AppendField(errs, "Underwriter", m.Underwriter.Validate())
	return errs
}

// InstallMsg replaces the access key of the asset with given credential.
// Only the custodian can issue it.
type InstallMsg struct {
	Credential deedhouse.Credential
}

var _ deedhouse.Msg = (*InstallMsg)(nil)

func (InstallMsg) Path() string {
	return pathInstall
}

func (m *InstallMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *InstallMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *InstallMsg) Validate() error {
	return errors.Field("Credential", m.Credential.Validate(), "")
}

// RevertMsg restores the owner credential recorded at initialization. Only
// the custodian can issue it.
type RevertMsg struct{}

var _ deedhouse.Msg = (*RevertMsg)(nil)

func (RevertMsg) Path() string {
	return pathRevert
}

func (m *RevertMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *RevertMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *RevertMsg) Validate() error {
	return nil
}

// confirmMsg is the callback of the key replacement.
type confirmMsg struct{}

func (confirmMsg) Path() string {
	return pathConfirm
}

func (m *confirmMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *confirmMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *confirmMsg) Validate() error {
	return nil
}

// registeredMsg is the callback of the custody registration.
type registeredMsg struct{}

func (registeredMsg) Path() string {
	return pathRegistered
}

func (m *registeredMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *registeredMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *registeredMsg) Validate() error {
	return nil
}

// QueryMsg is a read only call that returns the serialized Capsule.
type QueryMsg struct{}

var _ deedhouse.Msg = (*QueryMsg)(nil)

func (QueryMsg) Path() string {
	return pathQuery
}

func (m *QueryMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *QueryMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *QueryMsg) Validate() error {
	return nil
}

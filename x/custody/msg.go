package custody

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
)

const (
	pathRegister            = "custody/register"
	pathGetUnderwriter      = "custody/get_underwriter"
	pathRevert              = "custody/revert"
	pathClose               = "custody/close"
	pathLocked              = "custody/locked"
	pathReleased            = "custody/released"
	pathGet                 = "custody/get"
	pathList                = "custody/list"
	pathUpdateConfiguration = "custody/update_configuration"
)

// RegisterMsg takes the asset of the calling account into custody.
type RegisterMsg struct {
	Underwriter deedhouse.Address
}

var _ deedhouse.Msg = (*RegisterMsg)(nil)

// NewRegisterMsg returns a registration message. It can be used to set up
// capsules.
func NewRegisterMsg(underwriter deedhouse.Address) deedhouse.Msg {
	return &RegisterMsg{Underwriter: underwriter}
}

func (RegisterMsg) Path() string {
	return pathRegister
}

func (m *RegisterMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *RegisterMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *RegisterMsg) Validate() error {
	return errors.Field("Underwriter", m.Underwriter.Validate(), "")
}

// GetUnderwriterMsg returns the underwriter of a held asset as the call
// data. The data is empty if the asset is not held.
type GetUnderwriterMsg struct {
	Asset deedhouse.Address
}

var _ deedhouse.Msg = (*GetUnderwriterMsg)(nil)

func (GetUnderwriterMsg) Path() string {
	return pathGetUnderwriter
}

func (m *GetUnderwriterMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *GetUnderwriterMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *GetUnderwriterMsg) Validate() error {
	return errors.Field("Asset", m.Asset.Validate(), "")
}

// RevertMsg returns the asset to its owner.
type RevertMsg struct {
	Asset deedhouse.Address
}

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
	return errors.Field("Asset", m.Asset.Validate(), "")
}

// CloseMsg releases the asset to the holder of given credential.
type CloseMsg struct {
	Asset      deedhouse.Address
	Credential deedhouse.Credential
}

var _ deedhouse.Msg = (*CloseMsg)(nil)

func (CloseMsg) Path() string {
	return pathClose
}

func (m *CloseMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *CloseMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *CloseMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Asset", m.Asset.Validate())
	errs = errors.AppendField(errs, "Credential", m.Credential.Validate())
	return errs
}

// lockedMsg is the callback of installing the custodian credential.
type lockedMsg struct {
	Asset deedhouse.Address
}

func (lockedMsg) Path() string {
	return pathLocked
}

func (m *lockedMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *lockedMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *lockedMsg) Validate() error {
	return errors.Field("Asset", m.Asset.Validate(), "")
}

// releasedMsg is the callback of a close or revert.
type releasedMsg struct {
	Asset deedhouse.Address
}

func (releasedMsg) Path() string {
	return pathReleased
}

func (m *releasedMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *releasedMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *releasedMsg) Validate() error {
	return errors.Field("Asset", m.Asset.Validate(), "")
}

// GetMsg is a read only call that returns the serialized Record of an
// asset.
type GetMsg struct {
	Asset deedhouse.Address
}

var _ deedhouse.Msg = (*GetMsg)(nil)

func (GetMsg) Path() string {
	return pathGet
}

func (m *GetMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *GetMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *GetMsg) Validate() error {
	return errors.Field("Asset", m.Asset.Validate(), "")
}

// ListMsg is a read only call that returns a serialized RecordList with
// all records of an underwriter.
type ListMsg struct {
	Underwriter deedhouse.Address
}

var _ deedhouse.Msg = (*ListMsg)(nil)

func (ListMsg) Path() string {
	return pathList
}

func (m *ListMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *ListMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *ListMsg) Validate() error {
	return errors.Field("Underwriter", m.Underwriter.Validate(), "")
}

package auction

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
)

const (
	pathCreate              = "auction/create"
	pathCreateChecked       = "auction/create_checked"
	pathBid                 = "auction/bid"
	pathReveal              = "auction/reveal"
	pathCancel              = "auction/cancel"
	pathFinalize            = "auction/finalize"
	pathSettled             = "auction/settled"
	pathGet                 = "auction/get"
	pathGetBid              = "auction/get_bid"
	pathStats               = "auction/stats"
	pathUpdateConfiguration = "auction/update_configuration"
)

// maxCommitmentSize is enough for the text form of any supported scheme
// with a reasonable salt.
const maxCommitmentSize = 256

// CreateMsg opens an auction of an asset. The caller must be the
// underwriter of the asset. A zero close height selects the default
// window.
type CreateMsg struct {
	Asset       deedhouse.Address
	CloseHeight int64
	Mode        Mode
}

var _ deedhouse.Msg = (*CreateMsg)(nil)

func (CreateMsg) Path() string {
	return pathCreate
}

func (m *CreateMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *CreateMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *CreateMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Asset", m.Asset.Validate())
	if m.CloseHeight < 0 {
		errs = errors.AppendField(errs, "CloseHeight", errors.ErrInput)
	}
	if m.Mode != Open && m.Mode != Sealed {
		errs = errors.AppendField(errs, "Mode", errors.Wrapf(errors.ErrInput, "unknown mode %d", m.Mode))
	}
	return errs
}

// createCheckedMsg receives the underwriter of the asset from the
// custodian.
type createCheckedMsg struct {
	Asset       deedhouse.Address
	Requester   deedhouse.Address
	CloseHeight int64
	Mode        Mode
}

func (createCheckedMsg) Path() string {
	return pathCreateChecked
}

func (m *createCheckedMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *createCheckedMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *createCheckedMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Asset", m.Asset.Validate())
	errs = errors.AppendField(errs, "Requester", m.Requester.Validate())
	return errs
}

// BidMsg places or replaces the bid of the caller. In the open mode the
// attached deposit is the bid. In the sealed mode the commitment is
// required and the deposit is not considered a bid.
type BidMsg struct {
	Asset      deedhouse.Address
	Credential deedhouse.Credential
	Commitment []byte
}

var _ deedhouse.Msg = (*BidMsg)(nil)

func (BidMsg) Path() string {
	return pathBid
}

func (m *BidMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *BidMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *BidMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Asset", m.Asset.Validate())
	errs = errors.AppendField(errs, "Credential", m.Credential.Validate())
	if len(m.Commitment) > maxCommitmentSize {
		errs = errors.AppendField(errs, "Commitment", errors.Wrap(errors.ErrInput, "too long"))
	}
	return errs
}

// RevealMsg reveals a sealed bid. The attached deposit is the amount.
type RevealMsg struct {
	Asset deedhouse.Address
	Salt  string
}

var _ deedhouse.Msg = (*RevealMsg)(nil)

func (RevealMsg) Path() string {
	return pathReveal
}

func (m *RevealMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *RevealMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *RevealMsg) Validate() error {
	return errors.Field("Asset", m.Asset.Validate(), "")
}

// CancelMsg cancels an auction before its close.
type CancelMsg struct {
	Asset deedhouse.Address
}

var _ deedhouse.Msg = (*CancelMsg)(nil)

func (CancelMsg) Path() string {
	return pathCancel
}

func (m *CancelMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *CancelMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *CancelMsg) Validate() error {
	return errors.Field("Asset", m.Asset.Validate(), "")
}

// FinalizeMsg resolves an auction after its close. Anyone can send it.
type FinalizeMsg struct {
	Asset deedhouse.Address
}

var _ deedhouse.Msg = (*FinalizeMsg)(nil)

func (FinalizeMsg) Path() string {
	return pathFinalize
}

func (m *FinalizeMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *FinalizeMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *FinalizeMsg) Validate() error {
	return errors.Field("Asset", m.Asset.Validate(), "")
}

// settledMsg receives the result of the custodian release.
type settledMsg struct {
	Asset deedhouse.Address
}

func (settledMsg) Path() string {
	return pathSettled
}

func (m *settledMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *settledMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *settledMsg) Validate() error {
	return errors.Field("Asset", m.Asset.Validate(), "")
}

// GetMsg returns the auction of an asset.
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

// GetBidMsg returns the bid of a bidder.
type GetBidMsg struct {
	Asset  deedhouse.Address
	Bidder deedhouse.Address
}

var _ deedhouse.Msg = (*GetBidMsg)(nil)

func (GetBidMsg) Path() string {
	return pathGetBid
}

func (m *GetBidMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *GetBidMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *GetBidMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Asset", m.Asset.Validate())
	errs = errors.AppendField(errs, "Bidder", m.Bidder.Validate())
	return errs
}

// StatsMsg returns the coordinator counters.
type StatsMsg struct{}

var _ deedhouse.Msg = (*StatsMsg)(nil)

func (StatsMsg) Path() string {
	return pathStats
}

func (m *StatsMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *StatsMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *StatsMsg) Validate() error {
	return nil
}

package auction

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/orm"
	"github.com/iov-one/deedhouse/store"
)

// Mode is the bidding mode of an auction.
type Mode uint8

const (
	// Open auctions accept plain bids. The bid is the attached deposit.
	Open Mode = iota + 1
	// Sealed auctions accept commitments that are revealed after close.
	Sealed
)

func (m Mode) String() string {
	switch m {
	case Open:
		return "open"
	case Sealed:
		return "sealed"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Status is the status of an auction.
type Status uint8

const (
	// Active auctions accept bids until close and reveals until the end
	// of the reveal window.
	Active Status = iota + 1
	// Closed auctions have a winner and wait for the custodian to release
	// the asset.
	Closed
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Auction is the auction of a single asset.
type Auction struct {
	Asset       deedhouse.Address
	Underwriter deedhouse.Address
	Mode        Mode
	CloseHeight int64
	// RevealHeight is the last height a sealed bid can be revealed at.
	RevealHeight int64
	Status       Status
	Bids         uint32
	Reveals      uint32
	// Scheme and BaseFee are taken from the configuration when the
	// auction is created and stay fixed for its lifetime.
	Scheme  string
	BaseFee uint64

	// Set once the auction is closed.
	Winner           deedhouse.Address
	WinnerCredential deedhouse.Credential
	Price            uint64
}

var _ orm.Model = (*Auction)(nil)

func (a *Auction) Marshal() ([]byte, error) {
	return deedhouse.Marshal(a)
}

func (a *Auction) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, a)
}

func (a *Auction) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Asset", a.Asset.Validate())
	errs = errors.AppendField(errs, "Underwriter", a.Underwriter.Validate())
	switch a.Mode {
	case Open:
		if a.RevealHeight != 0 {
			errs = errors.AppendField(errs, "RevealHeight", errors.Wrap(errors.ErrModel, "open auction"))
		}
	case Sealed:
		if a.RevealHeight <= a.CloseHeight {
			errs = errors.AppendField(errs, "RevealHeight", errors.ErrModel)
		}
		if !IsKnownScheme(a.Scheme) {
			errs = errors.AppendField(errs, "Scheme", errors.ErrModel)
		}
	default:
		errs = errors.AppendField(errs, "Mode", errors.ErrModel)
	}
	if a.CloseHeight < 1 {
		errs = errors.AppendField(errs, "CloseHeight", errors.ErrModel)
	}
	switch a.Status {
	case Active:
	case Closed:
		errs = errors.AppendField(errs, "Winner", a.Winner.Validate())
		errs = errors.AppendField(errs, "WinnerCredential", a.WinnerCredential.Validate())
	default:
		errs = errors.AppendField(errs, "Status", errors.ErrModel)
	}
	return errs
}

// IsOpen returns true if bids are accepted at given height.
func (a *Auction) IsOpen(height int64) bool {
	return a.Status == Active && height <= a.CloseHeight
}

// IsRevealing returns true if sealed bids can be revealed at given height.
func (a *Auction) IsRevealing(height int64) bool {
	return a.Mode == Sealed && a.Status == Active && height > a.CloseHeight && height <= a.RevealHeight
}

// FinalizeHeight returns the first height the auction can be finalized at
// with all reveals considered.
func (a *Auction) FinalizeHeight() int64 {
	if a.Mode == Sealed {
		return a.RevealHeight + 1
	}
	return a.CloseHeight + 1
}

// NewAuctionBucket returns a bucket for auctions, keyed by asset.
func NewAuctionBucket() orm.ModelBucket {
	return orm.NewModelBucket("auction", &Auction{})
}

// Bid is the bid of a single bidder.
type Bid struct {
	Asset  deedhouse.Address
	Bidder deedhouse.Address
	// Amount is the bid. For sealed auctions it is known only once
	// revealed.
	Amount uint64
	// Escrowed is the total value attached by the bidder to this auction.
	Escrowed   uint64
	Credential deedhouse.Credential
	Commitment []byte
	Revealed   bool
	// Seq orders bids by first submission.
	Seq uint64
}

var _ orm.Model = (*Bid)(nil)

func (b *Bid) Marshal() ([]byte, error) {
	return deedhouse.Marshal(b)
}

func (b *Bid) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, b)
}

func (b *Bid) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Asset", b.Asset.Validate())
	errs = errors.AppendField(errs, "Bidder", b.Bidder.Validate())
	errs = errors.AppendField(errs, "Credential", b.Credential.Validate())
	if b.Amount > b.Escrowed {
		errs = errors.AppendField(errs, "Amount", errors.Wrap(errors.ErrModel, "more than escrowed"))
	}
	if b.Seq == 0 {
		errs = errors.AppendField(errs, "Seq", errors.ErrModel)
	}
	return errs
}

func bidKey(asset, bidder deedhouse.Address) []byte {
	key := make([]byte, 0, len(asset)+len(bidder))
	key = append(key, asset...)
	return append(key, bidder...)
}

func bidAsset(obj orm.Model) ([]byte, error) {
	b, ok := obj.(*Bid)
	if !ok {
		return nil, errors.Wrapf(errors.ErrModel, "unexpected type: %T", obj)
	}
	return b.Asset, nil
}

// NewBidBucket returns a bucket for bids, keyed by asset and bidder and
// indexed by asset.
func NewBidBucket() orm.ModelBucket {
	return orm.NewModelBucket("bid", &Bid{}, orm.WithIndex("asset", bidAsset, false))
}

// Stats are the coordinator counters.
type Stats struct {
	Completed uint64
	Cancelled uint64
	Failed    uint64
}

func (s *Stats) Marshal() ([]byte, error) {
	return deedhouse.Marshal(s)
}

func (s *Stats) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, s)
}

var (
	bidSeq    = orm.NewSequence("bid", "seq")
	revealSeq = orm.NewSequence("bid", "reveal")

	completed = orm.NewCounter("auction", "completed")
	cancelled = orm.NewCounter("auction", "cancelled")
	failed    = orm.NewCounter("auction", "failed")
)

// revealPrefix is the prefix of the reveal index. Keys are
//    <prefix><asset><amount><^seq>
// so that a reverse iteration returns the highest amount first and equal
// amounts ordered by reveal sequence.
var revealPrefix = []byte("_rev:")

func revealAssetPrefix(asset deedhouse.Address) []byte {
	return append(append([]byte{}, revealPrefix...), asset...)
}

func revealKey(asset deedhouse.Address, amount, seq uint64) []byte {
	key := revealAssetPrefix(asset)
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], amount)
	binary.BigEndian.PutUint64(buf[8:], math.MaxUint64-seq)
	return append(key, buf[:]...)
}

// addReveal inserts a revealed amount into the index.
func addReveal(db deedhouse.KVStore, asset, bidder deedhouse.Address, amount uint64) error {
	seq, err := revealSeq.NextInt(db)
	if err != nil {
		return errors.Wrap(err, "reveal sequence")
	}
	return db.Set(revealKey(asset, amount, seq), bidder)
}

// highestReveal returns the bidder with the highest revealed amount. Nil is
// returned if nothing was revealed.
func highestReveal(db deedhouse.ReadOnlyKVStore, asset deedhouse.Address) (deedhouse.Address, error) {
	prefix := revealAssetPrefix(asset)
	it, err := db.ReverseIterator(prefix, store.PrefixEnd(prefix))
	if err != nil {
		return nil, errors.Wrap(err, "cannot create iterator")
	}
	defer it.Release()

	_, value, err := it.Next()
	switch {
	case errors.ErrIteratorDone.Is(err):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "cannot get next item")
	}
	return deedhouse.Address(value), nil
}

// clearReveals removes all index entries of an asset.
func clearReveals(db deedhouse.KVStore, asset deedhouse.Address) error {
	prefix := revealAssetPrefix(asset)
	it, err := db.Iterator(prefix, store.PrefixEnd(prefix))
	if err != nil {
		return errors.Wrap(err, "cannot create iterator")
	}
	var keys [][]byte
	for {
		key, _, err := it.Next()
		if errors.ErrIteratorDone.Is(err) {
			break
		}
		if err != nil {
			it.Release()
			return errors.Wrap(err, "cannot get next item")
		}
		keys = append(keys, key)
	}
	it.Release()

	for _, key := range keys {
		if err := db.Delete(key); err != nil {
			return errors.Wrap(err, "cannot delete reveal")
		}
	}
	return nil
}

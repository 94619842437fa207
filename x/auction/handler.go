package auction

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/app"
	"github.com/iov-one/deedhouse/cron"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/gconf"
	"github.com/iov-one/deedhouse/orm"
	"github.com/iov-one/deedhouse/x/custody"
)

// Coordinator is the auction coordinator component.
type Coordinator struct {
	*app.Router
	Initializer
}

var (
	_ deedhouse.Handler     = (*Coordinator)(nil)
	_ deedhouse.Initializer = (*Coordinator)(nil)
)

// New returns a coordinator component with all routes registered.
func New() *Coordinator {
	c := &Coordinator{Router: app.NewRouter()}
	RegisterRoutes(c.Router)
	return c
}

// RegisterRoutes registers all coordinator handlers.
func RegisterRoutes(r deedhouse.Registry) {
	b := &buckets{auctions: NewAuctionBucket(), bids: NewBidBucket()}
	r.Handle(pathCreate, CreateHandler{b})
	r.Handle(pathCreateChecked, CreateCheckedHandler{b})
	r.Handle(pathBid, BidHandler{b})
	r.Handle(pathReveal, RevealHandler{b})
	r.Handle(pathCancel, CancelHandler{b})
	r.Handle(pathFinalize, FinalizeHandler{b})
	r.Handle(pathSettled, SettledHandler{b})
	r.Handle(pathGet, GetHandler{b})
	r.Handle(pathGetBid, GetBidHandler{b})
	r.Handle(pathStats, StatsHandler{})
	r.Handle(pathUpdateConfiguration, gconf.NewUpdateConfigurationHandler(
		packageName,
		&Configuration{},
		func() deedhouse.Msg { return &UpdateConfigurationMsg{} },
		nil,
	))
}

type buckets struct {
	auctions orm.ModelBucket
	bids     orm.ModelBucket
}

func (b *buckets) auction(db deedhouse.ReadOnlyKVStore, asset deedhouse.Address) (*Auction, error) {
	var a Auction
	if err := b.auctions.One(db, asset, &a); err != nil {
		if errors.ErrNotFound.Is(err) {
			return nil, errors.Wrap(err, "no auction")
		}
		return nil, err
	}
	return &a, nil
}

func (b *buckets) bidsOf(db deedhouse.ReadOnlyKVStore, asset deedhouse.Address) ([]Bid, error) {
	var bids []Bid
	if _, err := b.bids.ByIndex(db, "asset", asset, &bids); err != nil {
		return nil, errors.Wrap(err, "cannot load bids")
	}
	return bids, nil
}

// remove deletes an auction with all its bids and reveals.
func (b *buckets) remove(db deedhouse.KVStore, asset deedhouse.Address) error {
	bids, err := b.bidsOf(db, asset)
	if err != nil {
		return err
	}
	for _, bid := range bids {
		if err := b.bids.Delete(db, bidKey(asset, bid.Bidder)); err != nil {
			return errors.Wrap(err, "cannot delete bid")
		}
	}
	if err := clearReveals(db, asset); err != nil {
		return err
	}
	if err := b.auctions.Delete(db, asset); err != nil {
		return errors.Wrap(err, "cannot delete auction")
	}
	return nil
}

// checkVacant fails if an asset cannot be auctioned because of an existing
// auction. An active auction that passed its close must be finalized
// first.
func (b *buckets) checkVacant(db deedhouse.ReadOnlyKVStore, asset deedhouse.Address, height int64) error {
	a, err := b.auction(db, asset)
	switch {
	case errors.ErrNotFound.Is(err):
		return nil
	case err != nil:
		return err
	case a.IsOpen(height):
		return errors.Wrap(errors.ErrConflict, "auction in progress")
	default:
		return errors.Wrapf(errors.ErrState, "%s auction must be finalized first", a.Status)
	}
}

// refunds returns transfers of the whole escrowed value of every bid.
func refunds(bids []Bid) []deedhouse.Transfer {
	var transfers []deedhouse.Transfer
	for _, b := range bids {
		if b.Escrowed > 0 {
			transfers = append(transfers, deedhouse.Transfer{Recipient: b.Bidder, Amount: b.Escrowed})
		}
	}
	return transfers
}

// CreateHandler asks the custodian for the underwriter of the asset. The
// auction is created by the callback.
type CreateHandler struct {
	*buckets
}

var _ deedhouse.Handler = CreateHandler{}

func (h CreateHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg CreateMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return nil, err
	}
	if call.Deposit != 0 {
		return nil, errors.Wrap(errors.ErrAmount, "create does not accept deposits")
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	height, _ := deedhouse.GetHeight(ctx)
	if err := h.checkVacant(db, msg.Asset, height); err != nil {
		return nil, err
	}
	return &deedhouse.DeliverResult{
		Promises: []deedhouse.Promise{{
			Receiver: conf.Custodian,
			Msg:      &custody.GetUnderwriterMsg{Asset: msg.Asset},
			Callback: &createCheckedMsg{
				Asset:       msg.Asset,
				Requester:   call.Predecessor,
				CloseHeight: msg.CloseHeight,
				Mode:        msg.Mode,
			},
		}},
	}, nil
}

// CreateCheckedHandler creates an auction if the requester is the
// underwriter returned by the custodian.
type CreateCheckedHandler struct {
	*buckets
}

var _ deedhouse.Handler = CreateCheckedHandler{}

func (h CreateCheckedHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	res, err := deedhouse.RequireCallback(ctx)
	if err != nil {
		return nil, err
	}
	var msg createCheckedMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if res.Err != nil {
		return nil, errors.Wrap(res.Err, "underwriter lookup")
	}
	if underwriter := deedhouse.Address(res.Data); !underwriter.Equals(msg.Requester) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "not the underwriter")
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	height, _ := deedhouse.GetHeight(ctx)
	if err := h.checkVacant(db, msg.Asset, height); err != nil {
		return nil, err
	}

	closeHeight := msg.CloseHeight
	if closeHeight == 0 {
		closeHeight = height + conf.DefaultWindow
	}
	if min := height + conf.MinWindow; closeHeight < min {
		closeHeight = min
	}
	a := &Auction{
		Asset:       msg.Asset,
		Underwriter: msg.Requester,
		Mode:        msg.Mode,
		CloseHeight: closeHeight,
		Status:      Active,
		Scheme:      conf.Scheme,
		BaseFee:     conf.BaseFee,
	}
	if a.Mode == Sealed {
		a.RevealHeight = closeHeight + conf.RevealWindow
	}
	if err := h.auctions.Put(db, a.Asset, a); err != nil {
		return nil, errors.Wrap(err, "cannot store auction")
	}
	deedhouse.GetLogger(ctx).Info("auction created",
		"asset", a.Asset, "mode", a.Mode, "close", a.CloseHeight, "underwriter", a.Underwriter)

	result := &deedhouse.DeliverResult{Log: "auction created"}
	if len(conf.Cron) != 0 {
		call, err := deedhouse.MustGetCall(ctx)
		if err != nil {
			return nil, err
		}
		schedule, err := cron.NewScheduleMsg(call.Current, a.FinalizeHeight(), &FinalizeMsg{Asset: a.Asset})
		if err != nil {
			return nil, errors.Wrap(err, "schedule finalize")
		}
		result.Promises = append(result.Promises, deedhouse.Promise{
			Receiver: conf.Cron,
			Msg:      schedule,
		})
	}
	return result, nil
}

// BidHandler places or replaces a bid.
type BidHandler struct {
	*buckets
}

var _ deedhouse.Handler = BidHandler{}

func (h BidHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg BidMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return nil, err
	}
	height, _ := deedhouse.GetHeight(ctx)
	a, err := h.auction(db, msg.Asset)
	switch {
	case errors.ErrNotFound.Is(err):
		return nil, errors.Wrap(errors.ErrState, "no active auction")
	case err != nil:
		return nil, err
	case !a.IsOpen(height):
		return nil, errors.Wrap(errors.ErrState, "auction is not active")
	}
	if a.Underwriter.Equals(call.Predecessor) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "underwriter cannot bid")
	}
	switch a.Mode {
	case Sealed:
		if len(msg.Commitment) == 0 {
			return nil, errors.Field("Commitment", errors.ErrInput, "required for sealed auction")
		}
	case Open:
		if call.Deposit == 0 {
			return nil, errors.Wrap(errors.ErrAmount, "zero bid")
		}
	}

	key := bidKey(msg.Asset, call.Predecessor)
	var bid Bid
	switch err := h.bids.One(db, key, &bid); {
	case errors.ErrNotFound.Is(err):
		seq, err := bidSeq.NextInt(db)
		if err != nil {
			return nil, errors.Wrap(err, "bid sequence")
		}
		bid = Bid{Asset: msg.Asset, Bidder: call.Predecessor, Seq: seq}
		a.Bids++
		if err := h.auctions.Put(db, a.Asset, a); err != nil {
			return nil, errors.Wrap(err, "cannot store auction")
		}
	case err != nil:
		return nil, err
	}
	if bid.Escrowed+call.Deposit < bid.Escrowed {
		return nil, errors.Wrap(errors.ErrOverflow, "escrowed")
	}
	bid.Escrowed += call.Deposit
	bid.Credential = msg.Credential
	if a.Mode == Sealed {
		bid.Commitment = msg.Commitment
	} else {
		bid.Amount = call.Deposit
	}
	if err := h.bids.Put(db, key, &bid); err != nil {
		return nil, errors.Wrap(err, "cannot store bid")
	}
	deedhouse.GetLogger(ctx).Debug("bid placed", "asset", msg.Asset, "bidder", call.Predecessor, "deposit", call.Deposit)
	return &deedhouse.DeliverResult{}, nil
}

// RevealHandler reveals a sealed bid.
type RevealHandler struct {
	*buckets
}

var _ deedhouse.Handler = RevealHandler{}

func (h RevealHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg RevealMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return nil, err
	}
	height, _ := deedhouse.GetHeight(ctx)
	a, err := h.auction(db, msg.Asset)
	if err != nil {
		return nil, err
	}
	if !a.IsRevealing(height) {
		return nil, errors.Wrap(errors.ErrState, "not in reveal phase")
	}

	key := bidKey(msg.Asset, call.Predecessor)
	var bid Bid
	if err := h.bids.One(db, key, &bid); err != nil {
		return nil, errors.Wrap(err, "no bid")
	}
	if bid.Revealed {
		return nil, errors.Wrap(errors.ErrConflict, "already revealed")
	}
	if call.Deposit == 0 {
		return nil, errors.Wrap(errors.ErrAmount, "the revealed amount must be attached")
	}
	if err := verifyCommitment(a.Scheme, bid.Commitment, call.Deposit, msg.Salt); err != nil {
		return nil, err
	}
	if bid.Escrowed+call.Deposit < bid.Escrowed {
		return nil, errors.Wrap(errors.ErrOverflow, "escrowed")
	}
	bid.Escrowed += call.Deposit
	bid.Amount = call.Deposit
	bid.Revealed = true
	if err := h.bids.Put(db, key, &bid); err != nil {
		return nil, errors.Wrap(err, "cannot store bid")
	}
	if err := addReveal(db, msg.Asset, call.Predecessor, call.Deposit); err != nil {
		return nil, err
	}
	a.Reveals++
	if err := h.auctions.Put(db, a.Asset, a); err != nil {
		return nil, errors.Wrap(err, "cannot store auction")
	}
	deedhouse.GetLogger(ctx).Debug("bid revealed", "asset", msg.Asset, "bidder", call.Predecessor, "amount", call.Deposit)
	return &deedhouse.DeliverResult{}, nil
}

// CancelHandler cancels an auction before its close. All bids are refunded
// in full and the asset is returned to the underwriter.
type CancelHandler struct {
	*buckets
}

var _ deedhouse.Handler = CancelHandler{}

func (h CancelHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg CancelMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return nil, err
	}
	height, _ := deedhouse.GetHeight(ctx)
	a, err := h.auction(db, msg.Asset)
	if err != nil {
		return nil, err
	}
	if !a.Underwriter.Equals(call.Predecessor) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "only the underwriter can cancel")
	}
	if !a.IsOpen(height) {
		return nil, errors.Wrap(errors.ErrState, "auction is closed")
	}
	deedhouse.GetLogger(ctx).Info("auction cancelled", "asset", a.Asset)
	return h.abandon(db, a, nil)
}

// abandon deletes an auction without a winner. Bids are refunded in full,
// except the forfeited ones. The asset is returned to the underwriter.
func (b *buckets) abandon(db deedhouse.KVStore, a *Auction, forfeit func(Bid) bool) (*deedhouse.DeliverResult, error) {
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	bids, err := b.bidsOf(db, a.Asset)
	if err != nil {
		return nil, err
	}
	var (
		refunded []Bid
		fees     uint64
	)
	for _, bid := range bids {
		if forfeit != nil && forfeit(bid) {
			fees += bid.Escrowed
			continue
		}
		refunded = append(refunded, bid)
	}
	transfers := refunds(refunded)
	if fees > 0 {
		transfers = append(transfers, deedhouse.Transfer{Recipient: conf.FeeCollector, Amount: fees})
	}
	if err := b.remove(db, a.Asset); err != nil {
		return nil, err
	}
	if _, err := cancelled.Increment(db); err != nil {
		return nil, errors.Wrap(err, "cancelled counter")
	}
	return &deedhouse.DeliverResult{
		Log:       "auction abandoned",
		Transfers: transfers,
		Promises: []deedhouse.Promise{{
			Receiver: conf.Custodian,
			Msg:      &custody.RevertMsg{Asset: a.Asset},
			Return:   true,
		}},
	}, nil
}

// FinalizeHandler resolves an auction after its close.
type FinalizeHandler struct {
	*buckets
}

var _ deedhouse.Handler = FinalizeHandler{}

func (h FinalizeHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg FinalizeMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	height, _ := deedhouse.GetHeight(ctx)
	a, err := h.auction(db, msg.Asset)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case Active:
	case Closed:
		// Finalized, waiting for the custodian to release the asset.
		return nil, errors.Wrap(errors.ErrNotFound, "auction already finalized")
	default:
		return nil, errors.Wrapf(errors.ErrState, "auction is %s", a.Status)
	}
	if height <= a.CloseHeight {
		return nil, errors.Wrapf(errors.ErrState, "auction closes at %d", a.CloseHeight)
	}
	logger := deedhouse.GetLogger(ctx).With("asset", a.Asset)

	if a.IsRevealing(height) {
		if a.Reveals > 0 {
			return nil, errors.Wrapf(errors.ErrState, "reveal phase ends at %d", a.RevealHeight)
		}
		logger.Info("auction finalized early without reveals")
		return h.abandon(db, a, nil)
	}

	winner, err := h.winner(db, a)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		logger.Info("auction finalized without a winner")
		return h.abandon(db, a, func(b Bid) bool { return a.Mode == Sealed && !b.Revealed })
	}

	bids, err := h.bidsOf(db, a.Asset)
	if err != nil {
		return nil, err
	}
	var (
		transfers []deedhouse.Transfer
		fees      uint64
	)
	for _, b := range bids {
		if b.Bidder.Equals(winner.Bidder) {
			continue
		}
		if a.Mode == Sealed && !b.Revealed {
			fees += b.Escrowed
			continue
		}
		if b.Escrowed <= a.BaseFee {
			fees += b.Escrowed
			continue
		}
		fees += a.BaseFee
		transfers = append(transfers, deedhouse.Transfer{Recipient: b.Bidder, Amount: b.Escrowed - a.BaseFee})
	}
	if excess := winner.Escrowed - winner.Amount; excess > 0 {
		transfers = append(transfers, deedhouse.Transfer{Recipient: winner.Bidder, Amount: excess})
	}
	if fees > 0 {
		transfers = append(transfers, deedhouse.Transfer{Recipient: conf.FeeCollector, Amount: fees})
	}

	a.Status = Closed
	a.Winner = winner.Bidder
	a.WinnerCredential = winner.Credential
	a.Price = winner.Amount
	if err := h.auctions.Put(db, a.Asset, a); err != nil {
		return nil, errors.Wrap(err, "cannot store auction")
	}
	for _, b := range bids {
		if err := h.bids.Delete(db, bidKey(a.Asset, b.Bidder)); err != nil {
			return nil, errors.Wrap(err, "cannot delete bid")
		}
	}
	if err := clearReveals(db, a.Asset); err != nil {
		return nil, err
	}
	logger.Info("auction closed", "winner", a.Winner, "price", a.Price)

	return &deedhouse.DeliverResult{
		Log:       "auction closed",
		Transfers: transfers,
		Promises: []deedhouse.Promise{{
			Receiver: conf.Custodian,
			Msg:      &custody.CloseMsg{Asset: a.Asset, Credential: a.WinnerCredential},
			Callback: &settledMsg{Asset: a.Asset},
			Return:   true,
		}},
	}, nil
}

// winner returns the winning bid or nil if there is none. The open mode
// picks the highest bid, the first placed among equal ones. The sealed mode
// picks the highest revealed bid.
func (b *buckets) winner(db deedhouse.ReadOnlyKVStore, a *Auction) (*Bid, error) {
	if a.Mode == Sealed {
		bidder, err := highestReveal(db, a.Asset)
		if err != nil || bidder == nil {
			return nil, err
		}
		var bid Bid
		if err := b.bids.One(db, bidKey(a.Asset, bidder), &bid); err != nil {
			return nil, errors.Wrap(err, "revealed bid")
		}
		return &bid, nil
	}

	bids, err := b.bidsOf(db, a.Asset)
	if err != nil {
		return nil, err
	}
	var best *Bid
	for i := range bids {
		bid := &bids[i]
		if bid.Amount == 0 {
			continue
		}
		if best == nil || bid.Amount > best.Amount || (bid.Amount == best.Amount && bid.Seq < best.Seq) {
			best = bid
		}
	}
	return best, nil
}

// SettledHandler completes a closed auction once the custodian released the
// asset. The price is paid to the underwriter, or returned to the winner if
// the release failed.
type SettledHandler struct {
	*buckets
}

var _ deedhouse.Handler = SettledHandler{}

func (h SettledHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	res, err := deedhouse.RequireCallback(ctx)
	if err != nil {
		return nil, err
	}
	var msg settledMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	a, err := h.auction(db, msg.Asset)
	if err != nil {
		return nil, err
	}
	if a.Status != Closed {
		return nil, errors.Wrapf(errors.ErrState, "auction is %s", a.Status)
	}
	if err := h.auctions.Delete(db, a.Asset); err != nil {
		return nil, errors.Wrap(err, "cannot delete auction")
	}

	logger := deedhouse.GetLogger(ctx).With("asset", a.Asset)
	recipient, counter := a.Underwriter, &completed
	if res.Err != nil {
		logger.Error("asset release failed, refunding the winner", "winner", a.Winner, "err", res.Err)
		recipient, counter = a.Winner, &failed
	} else {
		logger.Info("auction settled", "winner", a.Winner, "price", a.Price)
	}
	if _, err := counter.Increment(db); err != nil {
		return nil, errors.Wrap(err, "counter")
	}
	result := &deedhouse.DeliverResult{}
	if a.Price > 0 {
		result.Transfers = []deedhouse.Transfer{{Recipient: recipient, Amount: a.Price}}
	}
	return result, nil
}

// GetHandler returns an auction.
type GetHandler struct {
	*buckets
}

var _ deedhouse.Handler = GetHandler{}

func (h GetHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg GetMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	a, err := h.auction(db, msg.Asset)
	if err != nil {
		return nil, err
	}
	raw, err := a.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal")
	}
	return &deedhouse.DeliverResult{Data: raw}, nil
}

// GetBidHandler returns a bid. Commitments are not secret, only the amount
// and salt are.
type GetBidHandler struct {
	*buckets
}

var _ deedhouse.Handler = GetBidHandler{}

func (h GetBidHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg GetBidMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	var bid Bid
	if err := h.bids.One(db, bidKey(msg.Asset, msg.Bidder), &bid); err != nil {
		return nil, err
	}
	raw, err := bid.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal")
	}
	return &deedhouse.DeliverResult{Data: raw}, nil
}

// StatsHandler returns the coordinator counters.
type StatsHandler struct{}

var _ deedhouse.Handler = StatsHandler{}

func (h StatsHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg StatsMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	var (
		s   Stats
		err error
	)
	if s.Completed, err = completed.Value(db); err != nil {
		return nil, err
	}
	if s.Cancelled, err = cancelled.Value(db); err != nil {
		return nil, err
	}
	if s.Failed, err = failed.Value(db); err != nil {
		return nil, err
	}
	raw, err := s.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal")
	}
	return &deedhouse.DeliverResult{Data: raw}, nil
}

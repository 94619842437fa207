/*
Package std wires together the standard deedhouse components.

It is a good place to get started with an auction house, and to see how
the custodian, the auction coordinator, the transfer capsules and the
scheduler are deployed on a ledger and configured to trust each other.
*/
package std

import (
	"context"
	"encoding/json"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/app"
	"github.com/iov-one/deedhouse/cron"
	"github.com/iov-one/deedhouse/crypto"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/ledger"
	"github.com/iov-one/deedhouse/x/auction"
	"github.com/iov-one/deedhouse/x/capsule"
	"github.com/iov-one/deedhouse/x/custody"
)

// Names of the system accounts.
const (
	CustodyAccount = "custody"
	AuctionAccount = "auction"
	CronAccount    = "cron"
	FeesAccount    = "fees"
)

// Chain returns the decorators every component is wrapped with.
func Chain() app.Decorators {
	return app.ChainDecorators(
		app.NewLogging(),
		app.NewRecovery(),
	)
}

// Stack wraps a component with the standard decorator chain. The
// initializer and the ticker of the component are kept.
func Stack(h deedhouse.Handler) deedhouse.Handler {
	init, _ := h.(deedhouse.Initializer)
	c := component{Handler: Chain().WithHandler(h), init: init}
	if t, ok := h.(deedhouse.Ticker); ok {
		return tickingComponent{component: c, Ticker: t}
	}
	return c
}

type component struct {
	deedhouse.Handler
	init deedhouse.Initializer
}

var _ deedhouse.Initializer = component{}

func (c component) FromGenesis(opts deedhouse.Options, db deedhouse.KVStore) error {
	if c.init == nil {
		return nil
	}
	return c.init.FromGenesis(opts, db)
}

type tickingComponent struct {
	component
	deedhouse.Ticker
}

// Config is the configuration of a deployment. Zero values select the
// defaults of each component.
type Config struct {
	// Governance can update the configuration of all components.
	Governance deedhouse.Address
	// Custodian is installed on assets taken into custody.
	Custodian    deedhouse.Credential
	BaseFee      uint64
	MinWindow    int64
	Window       int64
	RevealWindow int64
	Scheme       string
}

// System holds addresses of the deployed system accounts.
type System struct {
	Ledger  *ledger.Ledger
	Custody deedhouse.Address
	Auction deedhouse.Address
	Cron    deedhouse.Address
	Fees    deedhouse.Address
}

// GenInitOptions produces the genesis options of all components.
func GenInitOptions(c Config, s *System) (deedhouse.Options, error) {
	auctionConf := auction.Configuration{
		Owner:         c.Governance,
		Custodian:     s.Custody,
		Cron:          s.Cron,
		FeeCollector:  s.Fees,
		BaseFee:       c.BaseFee,
		MinWindow:     c.MinWindow,
		DefaultWindow: c.Window,
		RevealWindow:  c.RevealWindow,
		Scheme:        c.Scheme,
	}
	if auctionConf.MinWindow == 0 {
		auctionConf.MinWindow = auction.DefaultMinWindow
	}
	if auctionConf.DefaultWindow == 0 {
		auctionConf.DefaultWindow = auction.DefaultWindow
	}
	if auctionConf.RevealWindow == 0 {
		auctionConf.RevealWindow = auction.DefaultRevealWindow
	}
	if auctionConf.Scheme == "" {
		auctionConf.Scheme = auction.SchemeSHA256
	}

	conf, err := json.Marshal(map[string]interface{}{
		"custody": custody.Configuration{
			Owner:       c.Governance,
			Coordinator: s.Auction,
			Credential:  c.Custodian,
		},
		"auction": auctionConf,
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "cannot marshal configuration: %s", err)
	}
	return deedhouse.Options{"conf": conf}, nil
}

// Deploy creates the system accounts on the ledger and deploys the
// custodian, the auction coordinator and the scheduler.
func Deploy(l *ledger.Ledger, c Config) (*System, error) {
	s := &System{Ledger: l}
	for _, a := range []struct {
		name string
		dst  *deedhouse.Address
	}{
		{CustodyAccount, &s.Custody},
		{AuctionAccount, &s.Auction},
		{CronAccount, &s.Cron},
		{FeesAccount, &s.Fees},
	} {
		addr, err := l.CreateAccount(a.name, nil, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "create %s account", a.name)
		}
		*a.dst = addr
	}

	opts, err := GenInitOptions(c, s)
	if err != nil {
		return nil, err
	}
	if err := l.Deploy(s.Custody, "custody", Stack(custody.New()), opts); err != nil {
		return nil, errors.Wrap(err, "deploy custodian")
	}
	if err := l.Deploy(s.Auction, "auction", Stack(auction.New()), opts); err != nil {
		return nil, errors.Wrap(err, "deploy coordinator")
	}
	if err := l.Deploy(s.Cron, "cron", Stack(cron.New()), nil); err != nil {
		return nil, errors.Wrap(err, "deploy scheduler")
	}
	return s, nil
}

// CreateAsset creates an asset account accessible with given key and
// deploys a transfer capsule on it.
func (s *System) CreateAsset(name string, owner deedhouse.Credential) (deedhouse.Address, error) {
	addr, err := s.Ledger.CreateAccount(name, owner, 0)
	if err != nil {
		return nil, err
	}
	if err := s.Ledger.Deploy(addr, "capsule", Stack(capsule.New(custody.NewRegisterMsg)), nil); err != nil {
		return nil, errors.Wrap(err, "deploy capsule")
	}
	return addr, nil
}

// Register puts an asset into custody. The transaction must be signed by
// the current key of the asset.
func (s *System) Register(ctx context.Context, key crypto.Signer, asset, underwriter deedhouse.Address) (ledger.Trace, error) {
	msg := &capsule.InitMsg{Custodian: s.Custody, Underwriter: underwriter}
	return s.Ledger.Invoke(ctx, key, asset, asset, msg, 0)
}

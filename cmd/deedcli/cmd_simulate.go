package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/crypto"
	"github.com/iov-one/deedhouse/ledger"
	"github.com/iov-one/deedhouse/std"
	"github.com/iov-one/deedhouse/store"
	"github.com/iov-one/deedhouse/x/auction"
	"github.com/iov-one/deedhouse/x/custody"
	"github.com/tendermint/tendermint/libs/log"
)

func cmdSimulate(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Run an auction house scenario on a local ledger.

The scenario is a TOML document read from the standard input. It declares
accounts, assets and a list of steps. Every asset is put into custody for its
underwriter before the first step is executed. Each step is executed until
all its remote calls are settled. Once all steps are done, final balances are
printed.

  [[account]]
  name = "alice"
  balance = 100

  [[asset]]
  name = "villa"
  owner = "seller"

  [[step]]
  actor = "seller"
  action = "create"
  asset = "villa"
  mode = "sealed"

Supported actions are create, bid, reveal, cancel, finalize, revert and
advance. A bid with a salt is sealed. Its commitment is computed from the
amount and the salt, and only the deposit is attached.

With -iavl the ledger state is kept in a versioned merkle tree. The state is
committed once the scenario is done and its root hash is printed.
`)
		fl.PrintDefaults()
	}
	var (
		dbFl         = fl.String("db", "", "Optional path to a new LevelDB database the ledger state is written to. By default state is kept in memory.")
		interleaveFl = fl.Int64("interleave", 0, "When not zero, pending receipts are executed in a random order derived from this seed.")
		verboseFl    = fl.Bool("verbose", false, "Write ledger logs to stderr.")
		iavlFl       = fl.Bool("iavl", false, "Keep the ledger state in an IAVL tree and print its hash at the end.")
	)
	fl.Parse(args)

	sc, err := readScenario(input)
	if err != nil {
		return err
	}

	if *dbFl != "" {
		if _, err := os.Stat(*dbFl); !os.IsNotExist(err) {
			return fmt.Errorf("database %q already exists", *dbFl)
		}
	}
	var (
		db   deedhouse.CacheableKVStore
		tree *store.IAVLStore
	)
	switch {
	case *iavlFl && *dbFl == "":
		tree = store.MemIAVL()
		defer tree.Close()
		db = tree
	case *iavlFl:
		tree, err = store.OpenIAVL(*dbFl)
		if err != nil {
			return fmt.Errorf("cannot open database: %s", err)
		}
		defer tree.Close()
		db = tree
	case *dbFl == "":
		db = store.MemStore()
	default:
		ldb, err := store.OpenLevelDB(*dbFl)
		if err != nil {
			return fmt.Errorf("cannot open database: %s", err)
		}
		defer ldb.Close()
		db = ldb
	}

	logger := log.NewNopLogger()
	if *verboseFl {
		logger = log.NewTMLogger(log.NewSyncWriter(os.Stderr))
	}
	opts := []ledger.Option{ledger.WithLogger(logger)}
	if sc.ChainID != "" {
		opts = append(opts, ledger.WithChainID(sc.ChainID))
	}
	if *interleaveFl != 0 {
		opts = append(opts, ledger.WithInterleaving(*interleaveFl))
	}

	sim, err := newSimulation(ledger.New(db, opts...), sc)
	if err != nil {
		return err
	}
	if err := sim.run(context.Background(), output); err != nil {
		return err
	}
	if tree == nil {
		return nil
	}
	id, err := tree.Commit()
	if err != nil {
		return fmt.Errorf("cannot commit state: %s", err)
	}
	_, err = fmt.Fprintf(output, "state version %d hash %X\n", id.Version, id.Hash)
	return err
}

type simulation struct {
	sc     *scenario
	ledger *ledger.Ledger
	sys    *std.System
	keys   map[string]*crypto.PrivateKey
	addrs  map[string]deedhouse.Address
	names  map[string]string
}

func newSimulation(l *ledger.Ledger, sc *scenario) (*simulation, error) {
	keys, err := sc.keys()
	if err != nil {
		return nil, err
	}
	sim := &simulation{
		sc:     sc,
		ledger: l,
		keys:   make(map[string]*crypto.PrivateKey),
		addrs:  make(map[string]deedhouse.Address),
		names:  make(map[string]string),
	}
	for i, a := range sc.Accounts {
		addr, err := l.CreateAccount(a.Name, keys[i].Credential(), a.Balance)
		if err != nil {
			return nil, fmt.Errorf("cannot create account %q: %s", a.Name, err)
		}
		sim.remember(a.Name, addr)
		sim.keys[a.Name] = keys[i]
	}

	custodian := keys[len(keys)-1]
	sim.keys["custodian"] = custodian
	conf := std.Config{
		Custodian:    custodian.Credential(),
		BaseFee:      sc.BaseFee,
		MinWindow:    sc.MinWindow,
		Window:       sc.Window,
		RevealWindow: sc.RevealWindow,
		Scheme:       sc.Scheme,
	}
	if sc.Governance != "" {
		conf.Governance = sim.addrs[sc.Governance]
	}
	sys, err := std.Deploy(l, conf)
	if err != nil {
		return nil, fmt.Errorf("cannot deploy: %s", err)
	}
	sim.sys = sys
	sim.remember(std.CustodyAccount, sys.Custody)
	sim.remember(std.AuctionAccount, sys.Auction)
	sim.remember(std.CronAccount, sys.Cron)
	sim.remember(std.FeesAccount, sys.Fees)
	return sim, nil
}

func (s *simulation) remember(name string, addr deedhouse.Address) {
	s.addrs[name] = addr
	s.names[addr.String()] = name
}

func (s *simulation) name(addr deedhouse.Address) string {
	if n, ok := s.names[addr.String()]; ok {
		return n
	}
	return addr.String()
}

func (s *simulation) run(ctx context.Context, out io.Writer) error {
	for _, a := range s.sc.Assets {
		owner := s.keys[a.Owner]
		addr, err := s.sys.CreateAsset(a.Name, owner.Credential())
		if err != nil {
			return fmt.Errorf("cannot create asset %q: %s", a.Name, err)
		}
		s.remember(a.Name, addr)
		underwriter := a.Underwriter
		if underwriter == "" {
			underwriter = a.Owner
		}
		trace, err := s.sys.Register(ctx, owner, addr, s.addrs[underwriter])
		if err != nil {
			return fmt.Errorf("cannot register asset %q: %s", a.Name, err)
		}
		fmt.Fprintf(out, "register %s for %s\n", a.Name, underwriter)
		s.printTrace(out, trace)
	}

	for i, st := range s.sc.Steps {
		fmt.Fprintf(out, "step %d: %s\n", i+1, describe(st))
		if st.Action == actionAdvance {
			from := s.ledger.Height()
			if err := s.ledger.AdvanceHeight(ctx, st.Blocks); err != nil {
				return fmt.Errorf("step %d: %s", i+1, err)
			}
			s.printTrace(out, s.ticks(from))
			continue
		}
		trace, err := s.step(ctx, st)
		if err != nil {
			// A transaction rejected by the ledger does not stop the
			// scenario. The step is reported as failed.
			fmt.Fprintf(out, "  rejected: %s\n", err)
			continue
		}
		s.printTrace(out, trace)
	}
	return s.printSummary(out)
}

func describe(st scenarioStep) string {
	switch st.Action {
	case actionAdvance:
		return fmt.Sprintf("advance %d blocks", st.Blocks)
	case actionCreate:
		return fmt.Sprintf("%s creates an auction of %s", st.Actor, st.Asset)
	case actionBid, actionReveal:
		return fmt.Sprintf("%s %ss %d on %s", st.Actor, st.Action, st.Amount, st.Asset)
	default:
		return fmt.Sprintf("%s %ss %s", st.Actor, st.Action, st.Asset)
	}
}

func (s *simulation) step(ctx context.Context, st scenarioStep) (ledger.Trace, error) {
	asset := s.addrs[st.Asset]
	var (
		receiver = s.sys.Auction
		deposit  uint64
		msg      deedhouse.Msg
	)
	switch st.Action {
	case actionCreate:
		mode, err := parseMode(st.Mode)
		if err != nil {
			return nil, err
		}
		msg = &auction.CreateMsg{Asset: asset, CloseHeight: st.Close, Mode: mode}
	case actionBid:
		bid := &auction.BidMsg{Asset: asset, Credential: s.keys[st.Actor].Credential()}
		if st.Salt == "" {
			deposit = st.Amount
		} else {
			c, err := auction.Commitment(s.scheme(), st.Amount, st.Salt)
			if err != nil {
				return nil, err
			}
			bid.Commitment = c
			deposit = st.Deposit
		}
		msg = bid
	case actionReveal:
		msg = &auction.RevealMsg{Asset: asset, Salt: st.Salt}
		deposit = st.Amount
	case actionCancel:
		msg = &auction.CancelMsg{Asset: asset}
	case actionFinalize:
		msg = &auction.FinalizeMsg{Asset: asset}
	case actionRevert:
		msg = &custody.RevertMsg{Asset: asset}
		receiver = s.sys.Custody
	default:
		return nil, fmt.Errorf("unknown action %q", st.Action)
	}
	return s.ledger.Invoke(ctx, s.keys[st.Actor], s.addrs[st.Actor], receiver, msg, deposit)
}

func (s *simulation) scheme() string {
	if s.sc.Scheme == "" {
		return auction.SchemeSHA256
	}
	return s.sc.Scheme
}

// ticks returns outcomes of all sagas started by the scheduler after given
// height.
func (s *simulation) ticks(after int64) ledger.Trace {
	var trace ledger.Trace
	for _, o := range s.ledger.Outcomes() {
		if o.Height > after && (o.Kind == ledger.KindTick || s.isTick(o.Origin)) {
			trace = append(trace, o)
		}
	}
	return trace
}

func (s *simulation) isTick(origin uint64) bool {
	root := s.ledger.Trace(origin).Root()
	return root.Kind == ledger.KindTick
}

func (s *simulation) printTrace(out io.Writer, trace ledger.Trace) {
	w := tabwriter.NewWriter(out, 0, 4, 1, ' ', 0)
	for _, o := range trace {
		status := "ok"
		if o.Err != nil {
			status = o.Err.Error()
		}
		fmt.Fprintf(w, "  #%d\t%s\t%s -> %s\t%d\t%s\n", o.ID, o.Path, s.name(o.Predecessor), s.name(o.Receiver), o.Deposit, status)
	}
	w.Flush()
}

func (s *simulation) printSummary(out io.Writer) error {
	fmt.Fprintf(out, "height %d\n", s.ledger.Height())

	names := make([]string, 0, len(s.addrs))
	for name := range s.addrs {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 4, 1, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tBALANCE\tCREDENTIAL")
	for _, name := range names {
		acc, err := s.ledger.Account(s.addrs[name])
		if err != nil {
			return fmt.Errorf("cannot load account %q: %s", name, err)
		}
		cred := "-"
		if len(acc.Key) != 0 {
			cred = s.owner(acc.Key)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, acc.Balance, cred)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	raw, err := s.ledger.View(s.sys.Auction, &auction.StatsMsg{})
	if err != nil {
		return fmt.Errorf("cannot query statistics: %s", err)
	}
	var stats auction.Stats
	if err := stats.Unmarshal(raw); err != nil {
		return fmt.Errorf("cannot decode statistics: %s", err)
	}
	_, err = fmt.Fprintf(out, "auctions completed %d, cancelled %d, failed %d\n", stats.Completed, stats.Cancelled, stats.Failed)
	return err
}

// owner returns the name of the account holding the private key of given
// credential.
func (s *simulation) owner(c deedhouse.Credential) string {
	for name, k := range s.keys {
		if k.Credential().Equals(c) {
			return name
		}
	}
	return c.String()
}

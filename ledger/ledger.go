package ledger

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/crypto"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/store"
	"github.com/tendermint/tendermint/libs/log"
)

const (
	// DefaultChainID is used when no chain ID was configured.
	DefaultChainID = "deedhouse-local"

	defaultMaxReceipts = 100000
)

// Ledger executes transactions and the receipts they produce against a
// store. All methods are safe for concurrent use. Receipts are executed one
// at a time.
type Ledger struct {
	mu sync.Mutex

	db          deedhouse.CacheableKVStore
	handlers    map[string]deedhouse.Handler
	queue       *queue
	fault       func(*Receipt) error
	logger      log.Logger
	chainID     string
	height      int64
	maxReceipts int

	lastReceipt uint64
	lastOrigin  uint64
	outcomes    []Outcome
}

// New returns a ledger using given store for all account and component
// state.
func New(db deedhouse.CacheableKVStore, opts ...Option) *Ledger {
	l := &Ledger{
		db:          db,
		handlers:    make(map[string]deedhouse.Handler),
		queue:       newQueue(0, false),
		logger:      deedhouse.DefaultLogger,
		chainID:     DefaultChainID,
		height:      1,
		maxReceipts: defaultMaxReceipts,
	}
	for _, fn := range opts {
		fn(l)
	}
	if !deedhouse.IsValidChainID(l.chainID) {
		panic("invalid chain ID: " + l.chainID)
	}
	return l
}

// ChainID returns the chain ID transactions must be signed for.
func (l *Ledger) ChainID() string {
	return l.chainID
}

// Height returns the current block height.
func (l *Ledger) Height() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

// CreateAccount provisions a new named account with given access key and
// initial balance. The key can be nil for accounts that act only through
// their component.
func (l *Ledger) CreateAccount(name string, key deedhouse.Credential, balance uint64) (deedhouse.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	addr := deedhouse.AccountAddress(name)
	cache := l.db.CacheWrap()
	defer cache.Discard()

	switch err := accounts.Has(cache, addr); {
	case err == nil:
		return nil, errors.Wrapf(errors.ErrConflict, "account %q exists", name)
	case !errors.ErrNotFound.Is(err):
		return nil, err
	}
	acc := &Account{
		Name:    name,
		Address: addr,
		Key:     key,
		Balance: balance,
	}
	if err := saveAccount(cache, acc); err != nil {
		return nil, errors.Wrap(err, "save account")
	}
	if err := cache.Write(); err != nil {
		return nil, errors.Wrap(err, "write")
	}
	l.logger.Info("account created", "name", name, "address", addr)
	return addr, nil
}

// DeleteAccount removes an account together with its component. The balance
// of a deleted account is lost. Calls and transfers to a deleted account
// fail.
func (l *Ledger) DeleteAccount(addr deedhouse.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cache := l.db.CacheWrap()
	defer cache.Discard()
	if err := accounts.Delete(cache, addr); err != nil {
		return err
	}
	if err := cache.Write(); err != nil {
		return errors.Wrap(err, "write")
	}
	delete(l.handlers, string(addr))
	l.logger.Info("account deleted", "address", addr)
	return nil
}

// Account returns the current state of an account.
func (l *Ledger) Account(addr deedhouse.Address) (*Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return loadAccount(l.db, addr)
}

// Balance returns the balance of an account.
func (l *Ledger) Balance(addr deedhouse.Address) (uint64, error) {
	acc, err := l.Account(addr)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Deploy installs a component on an account. If the handler is a
// deedhouse.Initializer, it is initialized with given options within the
// account namespace. Deploying again replaces the handler, but keeps the
// namespace content.
func (l *Ledger) Deploy(addr deedhouse.Address, component string, h deedhouse.Handler, opts deedhouse.Options) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cache := l.db.CacheWrap()
	defer cache.Discard()

	acc, err := loadAccount(cache, addr)
	if err != nil {
		return err
	}
	acc.Component = component
	if err := saveAccount(cache, acc); err != nil {
		return errors.Wrap(err, "save account")
	}
	if init, ok := h.(deedhouse.Initializer); ok && opts != nil {
		if err := init.FromGenesis(opts, namespace(cache, addr)); err != nil {
			return errors.Wrapf(err, "initialize %s", component)
		}
	}
	if err := cache.Write(); err != nil {
		return errors.Wrap(err, "write")
	}
	l.handlers[string(addr)] = h
	l.logger.Info("component deployed", "component", component, "address", addr)
	return nil
}

// namespace returns the part of the store exclusively owned by the
// component of given account.
func namespace(db deedhouse.KVStore, addr deedhouse.Address) deedhouse.KVStore {
	prefix := append([]byte("_ns:"), addr...)
	return store.NewPrefixStore(db, append(prefix, ':'))
}

// Submit verifies a signed transaction and queues it for execution. The
// deposit is taken from the signer immediately. Returned is the ID of the
// saga started by this transaction.
func (l *Ledger) Submit(tx *Tx) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := tx.Validate(); err != nil {
		return 0, errors.Wrap(err, "invalid transaction")
	}

	cache := l.db.CacheWrap()
	defer cache.Discard()

	acc, err := loadAccount(cache, tx.Signer)
	if err != nil {
		return 0, errors.Wrap(err, "signer")
	}
	if len(acc.Key) == 0 {
		return 0, errors.Wrap(errors.ErrUnauthorized, "signer has no access key")
	}
	signBytes, err := tx.SignBytes(l.chainID)
	if err != nil {
		return 0, err
	}
	if !acc.Key.Verify(signBytes, tx.Signature) {
		return 0, errors.Wrap(errors.ErrUnauthorized, "signature does not match the access key")
	}
	if tx.Nonce != acc.Nonce+1 {
		return 0, errors.Wrapf(errors.ErrInput, "want nonce %d, got %d", acc.Nonce+1, tx.Nonce)
	}
	acc.Nonce = tx.Nonce
	if acc.Balance < tx.Deposit {
		return 0, errors.Wrapf(errors.ErrInsufficientAmount, "balance %d, deposit %d", acc.Balance, tx.Deposit)
	}
	acc.Balance -= tx.Deposit
	if err := saveAccount(cache, acc); err != nil {
		return 0, errors.Wrap(err, "save signer")
	}
	if err := cache.Write(); err != nil {
		return 0, errors.Wrap(err, "write")
	}

	l.lastOrigin++
	msg := tx.Msg
	l.enqueue(&Receipt{
		Origin:      l.lastOrigin,
		Kind:        KindCall,
		Signer:      tx.Signer,
		SignerKey:   acc.Key,
		Predecessor: tx.Signer,
		Receiver:    tx.Receiver,
		Msg:         &msg,
		Deposit:     tx.Deposit,
	})
	return l.lastOrigin, nil
}

// Invoke builds a transaction with the next nonce of the signer, signs it
// with given key, submits it and executes all receipts. Returned is the
// trace of the saga.
func (l *Ledger) Invoke(ctx context.Context, key crypto.Signer, signer, receiver deedhouse.Address, msg deedhouse.Msg, deposit uint64) (Trace, error) {
	acc, err := l.Account(signer)
	if err != nil {
		return nil, errors.Wrap(err, "signer")
	}
	tx, err := NewTx(signer, receiver, msg, deposit, acc.Nonce+1)
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(key, l.chainID); err != nil {
		return nil, err
	}
	origin, err := l.Submit(tx)
	if err != nil {
		return nil, err
	}
	if err := l.Run(ctx); err != nil {
		return l.Trace(origin), err
	}
	return l.Trace(origin), nil
}

// Pending returns the number of receipts waiting for execution.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.len()
}

// Run executes receipts until none is left.
func (l *Ledger) Run(ctx context.Context) error {
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n >= l.maxReceipts {
			return errors.Wrapf(errors.ErrHuman, "more than %d receipts executed, possible call loop", l.maxReceipts)
		}
		if _, ok := l.Step(); !ok {
			return nil
		}
	}
}

// Step executes a single receipt. It returns false if there was nothing to
// execute.
func (l *Ledger) Step() (Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := l.queue.pop()
	if r == nil {
		return Outcome{}, false
	}
	out := l.execute(r)
	l.outcomes = append(l.outcomes, out)

	logger := l.logger.With("receipt", r.ID, "origin", r.Origin, "path", out.Path, "receiver", r.Receiver)
	if out.Err != nil {
		logger.Error("receipt failed", "err", out.Err)
	} else {
		logger.Debug("receipt executed", "log", out.Log)
	}
	return out, true
}

// AdvanceHeight moves the ledger forward by given number of blocks. For
// every block the tickers of all components are called and all receipts
// are executed.
func (l *Ledger) AdvanceHeight(ctx context.Context, blocks int64) error {
	for i := int64(0); i < blocks; i++ {
		l.mu.Lock()
		l.height++
		l.tickAll()
		l.mu.Unlock()

		if err := l.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Outcomes returns outcomes of all executed receipts.
func (l *Ledger) Outcomes() Trace {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append(Trace(nil), l.outcomes...)
}

// Trace returns outcomes of all executed receipts of given saga.
func (l *Ledger) Trace(origin uint64) Trace {
	l.mu.Lock()
	defer l.mu.Unlock()
	var t Trace
	for _, o := range l.outcomes {
		if o.Origin == origin {
			t = append(t, o)
		}
	}
	return t
}

// View executes a read only call. All changes are discarded and the call
// must not issue promises or transfers.
func (l *Ledger) View(receiver deedhouse.Address, msg deedhouse.Msg) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.handlers[string(receiver)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "no component deployed on %s", receiver)
	}
	raw, err := deedhouse.NewRawMsg(msg)
	if err != nil {
		return nil, err
	}
	cache := l.db.CacheWrap()
	defer cache.Discard()

	ctx := l.context(deedhouse.Call{Current: receiver}, nil)
	res, err := safeDeliver(ctx, h, namespace(cache, receiver), deedhouse.TxMsg{Msg: raw})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	if len(res.Promises) != 0 || len(res.Transfers) != 0 {
		return nil, errors.Wrap(errors.ErrHuman, "view call cannot issue promises or transfers")
	}
	return res.Data, nil
}

func safeDeliver(ctx deedhouse.Context, h deedhouse.Handler, db deedhouse.KVStore, tx deedhouse.Tx) (res *deedhouse.DeliverResult, err error) {
	defer errors.Recover(&err)
	return h.Deliver(ctx, db, tx)
}

// context returns the context a handler is executed with.
func (l *Ledger) context(c deedhouse.Call, result *deedhouse.PromiseResult) deedhouse.Context {
	ctx := deedhouse.WithHeight(context.Background(), l.height)
	ctx = deedhouse.WithChainID(ctx, l.chainID)
	ctx = deedhouse.WithLogger(ctx, l.logger.With("current", c.Current))
	ctx = deedhouse.WithCall(ctx, c)
	if result != nil {
		ctx = deedhouse.WithPromiseResult(ctx, *result)
	}
	return ctx
}

func (l *Ledger) enqueue(r *Receipt) {
	l.lastReceipt++
	r.ID = l.lastReceipt
	l.queue.push(r)
}

// execute runs a single receipt and queues everything it issued.
func (l *Ledger) execute(r *Receipt) Outcome {
	out := Outcome{
		ID:          r.ID,
		Origin:      r.Origin,
		Height:      l.height,
		Kind:        r.Kind,
		Predecessor: r.Predecessor,
		Receiver:    r.Receiver,
		Path:        r.Path(),
		Deposit:     r.Deposit,
	}

	if l.fault != nil {
		if err := l.fault(r); err != nil {
			out.Err = errors.Wrap(err, "injected fault")
			l.fail(r, out.Err)
			return out
		}
	}

	if r.Kind == KindTransfer {
		cache := l.db.CacheWrap()
		err := credit(cache, r.Receiver, r.Deposit)
		if err == nil {
			err = cache.Write()
		}
		cache.Discard()
		if err != nil {
			out.Err = errors.Wrap(err, "transfer")
			l.fail(r, out.Err)
		}
		return out
	}

	cache := l.db.CacheWrap()
	res, issued, err := l.deliver(cache, r)
	if err == nil {
		err = cache.Write()
	}
	cache.Discard()
	if err != nil {
		out.Err = err
		l.fail(r, err)
		return out
	}

	out.Data = res.Data
	out.Log = res.Log

	adopted := false
	for _, p := range issued {
		if p.adopted {
			adopted = true
		}
		l.enqueue(p.receipt)
	}
	if !adopted {
		l.resume(r, deedhouse.PromiseResult{Data: res.Data})
	}
	return out
}

// issuedReceipt is a receipt created from a handler result.
type issuedReceipt struct {
	receipt *Receipt
	// adopted is true if the receipt took over the callbacks waiting
	// for the receipt that issued it.
	adopted bool
}

// deliver executes a call or callback receipt within given store.
func (l *Ledger) deliver(db deedhouse.KVStore, r *Receipt) (*deedhouse.DeliverResult, []issuedReceipt, error) {
	if err := credit(db, r.Receiver, r.Deposit); err != nil {
		return nil, nil, errors.Wrap(err, "receiver")
	}

	var res *deedhouse.DeliverResult
	if r.Msg.Path() == SetKeyPath {
		if err := l.setKey(db, r); err != nil {
			return nil, nil, err
		}
		res = &deedhouse.DeliverResult{Log: "access key replaced"}
	} else {
		h, ok := l.handlers[string(r.Receiver)]
		if !ok {
			return nil, nil, errors.Wrapf(errors.ErrNotFound, "no component deployed on %s", r.Receiver)
		}
		c := deedhouse.Call{
			Signer:      r.Signer,
			SignerKey:   r.SignerKey,
			Predecessor: r.Predecessor,
			Current:     r.Receiver,
			Deposit:     r.Deposit,
		}
		var err error
		res, err = safeDeliver(l.context(c, r.Result), h, namespace(db, r.Receiver), deedhouse.TxMsg{Msg: r.Msg})
		if err != nil {
			return nil, nil, err
		}
		if res == nil {
			res = &deedhouse.DeliverResult{}
		}
	}

	if err := res.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "invalid result")
	}
	total, err := res.TotalOut()
	if err != nil {
		return nil, nil, err
	}
	if err := debit(db, r.Receiver, total); err != nil {
		return nil, nil, errors.Wrap(err, "cannot fund promises and transfers")
	}
	issued, err := l.issue(r, res.Promises, res.Transfers)
	if err != nil {
		return nil, nil, err
	}
	return res, issued, nil
}

// issue creates receipts for promises and transfers of the current
// account.
func (l *Ledger) issue(r *Receipt, promises []deedhouse.Promise, transfers []deedhouse.Transfer) ([]issuedReceipt, error) {
	var issued []issuedReceipt
	for i, p := range promises {
		msg, err := deedhouse.NewRawMsg(p.Msg)
		if err != nil {
			return nil, errors.Wrapf(err, "promise %d", i)
		}
		pr := &Receipt{
			Origin:      r.Origin,
			Kind:        KindCall,
			Signer:      r.Signer,
			SignerKey:   r.SignerKey,
			Predecessor: r.Receiver,
			Receiver:    p.Receiver,
			Msg:         msg,
			Deposit:     p.Deposit,
		}
		if p.Callback != nil {
			cb, err := deedhouse.NewRawMsg(p.Callback)
			if err != nil {
				return nil, errors.Wrapf(err, "promise %d callback", i)
			}
			pr.waiting = append(pr.waiting, continuation{issuer: r.Receiver, msg: cb})
		}
		// Only a call can pass its own waiting callbacks to a promise.
		// Callbacks always forward the result they were delivered.
		adopted := p.Return && r.Kind == KindCall
		if adopted {
			pr.waiting = append(pr.waiting, r.waiting...)
		}
		issued = append(issued, issuedReceipt{receipt: pr, adopted: adopted})
	}
	for _, t := range transfers {
		issued = append(issued, issuedReceipt{receipt: &Receipt{
			Origin:      r.Origin,
			Kind:        KindTransfer,
			Signer:      r.Signer,
			SignerKey:   r.SignerKey,
			Predecessor: r.Receiver,
			Receiver:    t.Recipient,
			Deposit:     t.Amount,
		}})
	}
	return issued, nil
}

// setKey executes the key replacement system call.
func (l *Ledger) setKey(db deedhouse.KVStore, r *Receipt) error {
	if !r.Predecessor.Equals(r.Receiver) {
		return errors.Wrap(errors.ErrUnauthorized, "access key can be replaced only by the account itself")
	}
	var msg SetKeyMsg
	if err := deedhouse.LoadMsg(deedhouse.TxMsg{Msg: r.Msg}, &msg); err != nil {
		return errors.Wrap(err, "set key")
	}
	acc, err := loadAccount(db, r.Receiver)
	if err != nil {
		return err
	}
	acc.Key = msg.Credential
	return saveAccount(db, acc)
}

// fail refunds the deposit of a failed receipt and resumes callbacks that
// wait for it.
func (l *Ledger) fail(r *Receipt, err error) {
	if r.Deposit > 0 {
		cache := l.db.CacheWrap()
		rerr := credit(cache, r.Predecessor, r.Deposit)
		if rerr == nil {
			rerr = cache.Write()
		}
		cache.Discard()
		if rerr != nil {
			l.logger.Error("cannot refund deposit", "receipt", r.ID, "amount", r.Deposit, "to", r.Predecessor, "err", rerr)
		}
	}
	if r.Kind == KindTransfer {
		return
	}
	l.resume(r, deedhouse.PromiseResult{
		Err: errors.Append(errors.Wrapf(errors.ErrRemote, "%s on %s", r.Path(), r.Receiver), err),
	})
}

// resume queues the first callback waiting for given receipt. The rest of
// waiting callbacks is chained after it and all receive the same result.
func (l *Ledger) resume(r *Receipt, res deedhouse.PromiseResult) {
	if len(r.waiting) == 0 {
		return
	}
	// A callback forwards the result it was delivered to the callbacks
	// waiting after it.
	if r.Kind == KindCallback && r.Result != nil {
		res = *r.Result
	}
	next := r.waiting[0]
	l.enqueue(&Receipt{
		Origin:      r.Origin,
		Kind:        KindCallback,
		Signer:      r.Signer,
		SignerKey:   r.SignerKey,
		Predecessor: next.issuer,
		Receiver:    next.issuer,
		Msg:         next.msg,
		Result:      &res,
		waiting:     r.waiting[1:],
	})
}

// tickAll calls the tickers of all deployed components in the address
// order.
func (l *Ledger) tickAll() {
	addrs := make([]deedhouse.Address, 0, len(l.handlers))
	for a, h := range l.handlers {
		if _, ok := h.(deedhouse.Ticker); ok {
			addrs = append(addrs, deedhouse.Address(a))
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i], addrs[j]) < 0 })

	for _, addr := range addrs {
		out := l.tick(addr, l.handlers[string(addr)].(deedhouse.Ticker))
		if out.Err != nil {
			l.logger.Error("tick failed", "address", addr, "err", out.Err)
		}
		if out.Err != nil || out.ID != 0 {
			l.outcomes = append(l.outcomes, out)
		}
	}
}

// tick executes a component ticker. Promises of the ticker start a new
// saga issued by the component account.
func (l *Ledger) tick(addr deedhouse.Address, t deedhouse.Ticker) Outcome {
	out := Outcome{Height: l.height, Kind: KindTick, Predecessor: addr, Receiver: addr, Path: KindTick.String()}

	cache := l.db.CacheWrap()
	defer cache.Discard()

	acc, err := loadAccount(cache, addr)
	if err != nil {
		out.Err = err
		return out
	}
	c := deedhouse.Call{Signer: addr, SignerKey: acc.Key, Predecessor: addr, Current: addr}
	res, err := safeTick(l.context(c, nil), t, namespace(cache, addr))
	if err != nil {
		out.Err = err
		return out
	}
	if res == nil || len(res.Promises) == 0 {
		if err := cache.Write(); err != nil {
			out.Err = err
		}
		return out
	}

	dr := &deedhouse.DeliverResult{Promises: res.Promises}
	if err := dr.Validate(); err != nil {
		out.Err = errors.Wrap(err, "invalid tick result")
		return out
	}
	total, err := dr.TotalOut()
	if err == nil {
		err = debit(cache, addr, total)
	}
	if err != nil {
		out.Err = errors.Wrap(err, "cannot fund promises")
		return out
	}

	l.lastOrigin++
	l.lastReceipt++
	r := &Receipt{ID: l.lastReceipt, Origin: l.lastOrigin, Kind: KindTick, Signer: addr, SignerKey: acc.Key, Predecessor: addr, Receiver: addr}
	issued, err := l.issue(r, res.Promises, nil)
	if err != nil {
		out.Err = err
		return out
	}
	if err := cache.Write(); err != nil {
		out.Err = err
		return out
	}
	for _, p := range issued {
		l.enqueue(p.receipt)
	}
	out.ID = r.ID
	out.Origin = r.Origin
	return out
}

func safeTick(ctx deedhouse.Context, t deedhouse.Ticker, db deedhouse.KVStore) (res *deedhouse.TickResult, err error) {
	defer errors.Recover(&err)
	return t.Tick(ctx, db)
}

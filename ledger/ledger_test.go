package ledger

import (
	"context"
	"testing"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/app"
	"github.com/iov-one/deedhouse/crypto"
	"github.com/iov-one/deedhouse/deedtest"
	"github.com/iov-one/deedhouse/deedtest/assert"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/store"
)

// noteMsg is handled by the note component. The message path selects the
// action.
type noteMsg struct {
	Route  string
	Text   string
	Target deedhouse.Address
	Via    deedhouse.Address
	Next   string
	Amount uint64
	Return bool
	Key    deedhouse.Credential
}

func (m *noteMsg) Path() string               { return m.Route }
func (m *noteMsg) Marshal() ([]byte, error)   { return deedhouse.Marshal(m) }
func (m *noteMsg) Unmarshal(raw []byte) error { return deedhouse.Unmarshal(raw, m) }
func (m *noteMsg) Validate() error {
	if !deedhouse.IsValidPath(m.Route) {
		return errors.Wrap(errors.ErrMsg, "route")
	}
	return nil
}

// newNote returns a component that records every delivered message in the
// journal.
func newNote(journal *[]string, name string) deedhouse.Handler {
	load := func(tx deedhouse.Tx) (*noteMsg, error) {
		msg := &noteMsg{Route: deedhouse.GetPath(tx)}
		return msg, deedhouse.LoadMsg(tx, msg)
	}
	record := func(path string) {
		*journal = append(*journal, name+":"+path)
	}

	r := app.NewRouter()
	r.Handle("note/write", deedhouse.HandlerFunc(func(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
		msg, err := load(tx)
		if err != nil {
			return nil, err
		}
		record(msg.Route)
		if err := db.Set([]byte("note"), []byte(msg.Text)); err != nil {
			return nil, err
		}
		if msg.Text == "fail" {
			return nil, errors.Wrap(errors.ErrState, "asked to fail")
		}
		if msg.Text == "panic" {
			panic("asked to panic")
		}
		return &deedhouse.DeliverResult{Data: []byte(msg.Text)}, nil
	}))
	r.Handle("note/call", deedhouse.HandlerFunc(func(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
		msg, err := load(tx)
		if err != nil {
			return nil, err
		}
		record(msg.Route)
		next := msg.Next
		if next == "" {
			next = "note/write"
		}
		return &deedhouse.DeliverResult{
			Promises: []deedhouse.Promise{{
				Receiver: msg.Target,
				Msg:      &noteMsg{Route: next, Text: msg.Text, Target: msg.Via, Return: true},
				Deposit:  msg.Amount,
				Callback: &noteMsg{Route: "note/done"},
				Return:   msg.Return,
			}},
		}, nil
	}))
	r.Handle("note/done", deedhouse.HandlerFunc(func(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
		res, err := deedhouse.RequireCallback(ctx)
		if err != nil {
			return nil, err
		}
		record("note/done")
		value := res.Data
		if res.Err != nil {
			value = []byte("error")
		}
		if err := db.Set([]byte("result"), value); err != nil {
			return nil, err
		}
		return &deedhouse.DeliverResult{}, nil
	}))
	r.Handle("note/pay", deedhouse.HandlerFunc(func(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
		msg, err := load(tx)
		if err != nil {
			return nil, err
		}
		record(msg.Route)
		return &deedhouse.DeliverResult{
			Transfers: []deedhouse.Transfer{{Recipient: msg.Target, Amount: msg.Amount}},
		}, nil
	}))
	r.Handle("note/rekey", deedhouse.HandlerFunc(func(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
		msg, err := load(tx)
		if err != nil {
			return nil, err
		}
		record(msg.Route)
		target := msg.Target
		if len(target) == 0 {
			call, err := deedhouse.MustGetCall(ctx)
			if err != nil {
				return nil, err
			}
			target = call.Current
		}
		return &deedhouse.DeliverResult{
			Promises: []deedhouse.Promise{{
				Receiver: target,
				Msg:      &SetKeyMsg{Credential: msg.Key},
				Callback: &noteMsg{Route: "note/done"},
			}},
		}, nil
	}))
	r.Handle("note/read", deedhouse.HandlerFunc(func(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
		key := []byte("note")
		if msg, err := load(tx); err == nil && msg.Text != "" {
			key = []byte(msg.Text)
		}
		raw, err := db.Get(key)
		if err != nil {
			return nil, err
		}
		return &deedhouse.DeliverResult{Data: raw}, nil
	}))
	return r
}

type fixture struct {
	ledger   *Ledger
	journal  []string
	aliceKey *crypto.PrivateKey
	alice    deedhouse.Address
	a        deedhouse.Address
	b        deedhouse.Address
	c        deedhouse.Address
}

func newFixture(t testing.TB, opts ...Option) *fixture {
	t.Helper()
	return newFixtureOn(t, store.MemStore(), opts...)
}

func newFixtureOn(t testing.TB, db deedhouse.CacheableKVStore, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   New(db, opts...),
		aliceKey: deedtest.NewKey(),
	}
	var err error
	f.alice, err = f.ledger.CreateAccount("alice", f.aliceKey.Credential(), 1000)
	assert.Nil(t, err)
	for _, name := range []string{"a", "b", "c"} {
		addr, err := f.ledger.CreateAccount(name, nil, 100)
		assert.Nil(t, err)
		assert.Nil(t, f.ledger.Deploy(addr, "note", newNote(&f.journal, name), nil))
		switch name {
		case "a":
			f.a = addr
		case "b":
			f.b = addr
		case "c":
			f.c = addr
		}
	}
	return f
}

func (f *fixture) invoke(t testing.TB, receiver deedhouse.Address, msg deedhouse.Msg, deposit uint64) Trace {
	t.Helper()
	trace, err := f.ledger.Invoke(context.Background(), f.aliceKey, f.alice, receiver, msg, deposit)
	assert.Nil(t, err)
	return trace
}

func (f *fixture) read(t testing.TB, addr deedhouse.Address, key string) string {
	t.Helper()
	raw, err := f.ledger.View(addr, &noteMsg{Route: "note/read", Text: key})
	assert.Nil(t, err)
	return string(raw)
}

func (f *fixture) balance(t testing.TB, addr deedhouse.Address) uint64 {
	t.Helper()
	b, err := f.ledger.Balance(addr)
	assert.Nil(t, err)
	return b
}

func TestSubmitVerification(t *testing.T) {
	f := newFixture(t)
	msg := &noteMsg{Route: "note/write", Text: "hi"}

	cases := map[string]struct {
		build   func() *Tx
		wantErr *errors.Error
	}{
		"valid transaction": {
			build: func() *Tx {
				tx, _ := NewTx(f.alice, f.a, msg, 0, 1)
				assert.Nil(t, tx.Sign(f.aliceKey, f.ledger.ChainID()))
				return tx
			},
		},
		"signed with another key": {
			build: func() *Tx {
				tx, _ := NewTx(f.alice, f.a, msg, 0, 2)
				assert.Nil(t, tx.Sign(deedtest.NewKey(), f.ledger.ChainID()))
				return tx
			},
			wantErr: errors.ErrUnauthorized,
		},
		"signed for another chain": {
			build: func() *Tx {
				tx, _ := NewTx(f.alice, f.a, msg, 0, 2)
				assert.Nil(t, tx.Sign(f.aliceKey, "another-chain"))
				return tx
			},
			wantErr: errors.ErrUnauthorized,
		},
		"replayed nonce": {
			build: func() *Tx {
				tx, _ := NewTx(f.alice, f.a, msg, 0, 1)
				assert.Nil(t, tx.Sign(f.aliceKey, f.ledger.ChainID()))
				return tx
			},
			wantErr: errors.ErrInput,
		},
		"deposit above balance": {
			build: func() *Tx {
				tx, _ := NewTx(f.alice, f.a, msg, 5000, 2)
				assert.Nil(t, tx.Sign(f.aliceKey, f.ledger.ChainID()))
				return tx
			},
			wantErr: errors.ErrInsufficientAmount,
		},
		"account without a key": {
			build: func() *Tx {
				tx, _ := NewTx(f.b, f.a, msg, 0, 1)
				assert.Nil(t, tx.Sign(deedtest.NewKey(), f.ledger.ChainID()))
				return tx
			},
			wantErr: errors.ErrUnauthorized,
		},
		"unknown signer": {
			build: func() *Tx {
				tx, _ := NewTx(deedhouse.AccountAddress("nobody"), f.a, msg, 0, 1)
				assert.Nil(t, tx.Sign(deedtest.NewKey(), f.ledger.ChainID()))
				return tx
			},
			wantErr: errors.ErrNotFound,
		},
		"invalid message path": {
			build: func() *Tx {
				tx, _ := NewTx(f.alice, f.a, &noteMsg{Route: "x"}, 0, 2)
				assert.Nil(t, tx.Sign(f.aliceKey, f.ledger.ChainID()))
				return tx
			},
			wantErr: errors.ErrMsg,
		},
	}

	// Cases depend on the nonce state, so they run in a fixed order.
	order := []string{
		"valid transaction",
		"signed with another key",
		"signed for another chain",
		"replayed nonce",
		"deposit above balance",
		"account without a key",
		"unknown signer",
		"invalid message path",
	}
	for _, name := range order {
		tc := cases[name]
		t.Run(name, func(t *testing.T) {
			if _, err := f.ledger.Submit(tc.build()); !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %+v", err)
			}
		})
	}
}

func TestCallIsAtomic(t *testing.T) {
	t.Run("btree", func(t *testing.T) {
		testCallIsAtomic(t, newFixture(t))
	})
	t.Run("iavl", func(t *testing.T) {
		db := store.MemIAVL()
		defer db.Close()
		f := newFixtureOn(t, db)
		testCallIsAtomic(t, f)

		first, err := db.Commit()
		assert.Nil(t, err)
		assert.Equal(t, int64(1), first.Version)

		// A failed call still uses up the nonce of the signer.
		f.invoke(t, f.a, &noteMsg{Route: "note/write", Text: "fail"}, 10)
		second, err := db.Commit()
		assert.Nil(t, err)
		assert.Equal(t, int64(2), second.Version)
		if string(first.Hash) == string(second.Hash) {
			t.Fatal("nonce update not committed")
		}
		assert.Equal(t, uint64(990), f.balance(t, f.alice))
	})
}

func testCallIsAtomic(t *testing.T, f *fixture) {
	trace := f.invoke(t, f.a, &noteMsg{Route: "note/write", Text: "first"}, 10)
	assert.Nil(t, trace.Err())
	assert.Equal(t, "first", f.read(t, f.a, "note"))
	assert.Equal(t, uint64(990), f.balance(t, f.alice))
	assert.Equal(t, uint64(110), f.balance(t, f.a))

	// A failing handler wrote before failing. Nothing must be persisted
	// and the deposit is returned.
	trace = f.invoke(t, f.a, &noteMsg{Route: "note/write", Text: "fail"}, 10)
	assert.IsErr(t, errors.ErrState, trace.Err())
	assert.Equal(t, "first", f.read(t, f.a, "note"))
	assert.Equal(t, uint64(990), f.balance(t, f.alice))
	assert.Equal(t, uint64(110), f.balance(t, f.a))

	trace = f.invoke(t, f.a, &noteMsg{Route: "note/write", Text: "panic"}, 0)
	assert.IsErr(t, errors.ErrPanic, trace.Err())
	assert.Equal(t, "first", f.read(t, f.a, "note"))

	trace = f.invoke(t, f.a, &noteMsg{Route: "note/unknown"}, 0)
	assert.IsErr(t, errors.ErrNotFound, trace.Err())

	acc, err := f.ledger.Account(f.alice)
	assert.Nil(t, err)
	assert.Equal(t, uint64(4), acc.Nonce)
}

func TestPromiseCallback(t *testing.T) {
	f := newFixture(t)

	trace := f.invoke(t, f.a, &noteMsg{Route: "note/call", Target: f.b, Text: "hello", Amount: 30}, 0)
	assert.Nil(t, trace.Err())
	assert.Equal(t, []string{"note/call", "note/write", "note/done"}, trace.Paths())
	assert.Equal(t, 0, len(trace.Failures()))

	assert.Equal(t, "hello", f.read(t, f.b, "note"))
	assert.Equal(t, "hello", f.read(t, f.a, "result"))
	assert.Equal(t, uint64(70), f.balance(t, f.a))
	assert.Equal(t, uint64(130), f.balance(t, f.b))

	done, ok := trace.Find("note/done")
	if !ok {
		t.Fatal("callback not executed")
	}
	assert.Equal(t, KindCallback, done.Kind)
	assert.Equal(t, f.a, done.Predecessor)
	assert.Equal(t, f.a, done.Receiver)
}

func TestFailedPromiseIsReportedAndRefunded(t *testing.T) {
	f := newFixture(t)

	trace := f.invoke(t, f.a, &noteMsg{Route: "note/call", Target: f.b, Text: "fail", Amount: 30}, 0)
	// The issuer is not rolled back by a failure of the remote call.
	assert.Nil(t, trace.Err())
	assert.Equal(t, []string{"note/call", "note/write", "note/done"}, trace.Paths())

	failed := trace.Failures()
	assert.Equal(t, 1, len(failed))
	assert.IsErr(t, errors.ErrState, failed[0].Err)

	assert.Equal(t, "", f.read(t, f.b, "note"))
	assert.Equal(t, "error", f.read(t, f.a, "result"))
	assert.Equal(t, uint64(100), f.balance(t, f.a))
	assert.Equal(t, uint64(100), f.balance(t, f.b))

	// Calling a deleted account fails the same way.
	assert.Nil(t, f.ledger.DeleteAccount(f.c))
	trace = f.invoke(t, f.a, &noteMsg{Route: "note/call", Target: f.c, Text: "x", Amount: 5}, 0)
	assert.Equal(t, 1, len(trace.Failures()))
	assert.IsErr(t, errors.ErrNotFound, trace.Failures()[0].Err)
	assert.Equal(t, uint64(100), f.balance(t, f.a))
}

func TestCallbackReceivesRemoteError(t *testing.T) {
	journal := []string{}
	var got deedhouse.PromiseResult

	l := New(store.MemStore())
	key := deedtest.NewKey()
	alice, err := l.CreateAccount("alice", key.Credential(), 0)
	assert.Nil(t, err)
	a, err := l.CreateAccount("a", nil, 0)
	assert.Nil(t, err)
	b, err := l.CreateAccount("b", nil, 0)
	assert.Nil(t, err)

	r := app.NewRouter()
	r.Handle("test/start", deedhouse.HandlerFunc(func(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
		return &deedhouse.DeliverResult{Promises: []deedhouse.Promise{{
			Receiver: b,
			Msg:      &noteMsg{Route: "note/write", Text: "fail"},
			Callback: &noteMsg{Route: "test/done"},
		}}}, nil
	}))
	r.Handle("test/done", deedhouse.HandlerFunc(func(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
		res, err := deedhouse.RequireCallback(ctx)
		if err != nil {
			return nil, err
		}
		got = res
		return nil, nil
	}))
	assert.Nil(t, l.Deploy(a, "test", r, nil))
	assert.Nil(t, l.Deploy(b, "note", newNote(&journal, "b"), nil))

	trace, err := l.Invoke(context.Background(), key, alice, a, &noteMsg{Route: "test/start"}, 0)
	assert.Nil(t, err)
	assert.Nil(t, trace.Err())
	assert.IsErr(t, errors.ErrRemote, got.Err)
	assert.IsErr(t, errors.ErrState, got.Err)

	// A callback cannot be called directly.
	trace, err = l.Invoke(context.Background(), key, alice, a, &noteMsg{Route: "test/done"}, 0)
	assert.Nil(t, err)
	assert.IsErr(t, errors.ErrUnauthorized, trace.Err())
}

func TestReturnedPromise(t *testing.T) {
	f := newFixture(t)

	// a calls b, b forwards the call to c and returns that promise. The
	// callback of a is delivered after the callback of b, and both get
	// the result of c.
	trace := f.invoke(t, f.a, &noteMsg{Route: "note/call", Target: f.b, Via: f.c, Next: "note/call", Text: "deep"}, 0)
	assert.Nil(t, trace.Err())
	assert.Equal(t, []string{"a:note/call", "b:note/call", "c:note/write", "b:note/done", "a:note/done"}, f.journal)
	assert.Equal(t, "deep", f.read(t, f.b, "result"))
	assert.Equal(t, "deep", f.read(t, f.a, "result"))

	// Failure of c is reported to both.
	f.journal = nil
	trace = f.invoke(t, f.a, &noteMsg{Route: "note/call", Target: f.b, Via: f.c, Next: "note/call", Text: "fail"}, 0)
	assert.Nil(t, trace.Err())
	assert.Equal(t, []string{"a:note/call", "b:note/call", "c:note/write", "b:note/done", "a:note/done"}, f.journal)
	assert.Equal(t, "error", f.read(t, f.b, "result"))
	assert.Equal(t, "error", f.read(t, f.a, "result"))
}

func TestTransfers(t *testing.T) {
	f := newFixture(t)

	trace := f.invoke(t, f.a, &noteMsg{Route: "note/pay", Target: f.b, Amount: 40}, 0)
	assert.Nil(t, trace.Err())
	assert.Equal(t, []string{"note/pay", "transfer"}, trace.Paths())
	assert.Equal(t, uint64(60), f.balance(t, f.a))
	assert.Equal(t, uint64(140), f.balance(t, f.b))

	// Not enough funds fails the whole call.
	trace = f.invoke(t, f.a, &noteMsg{Route: "note/pay", Target: f.b, Amount: 61}, 0)
	assert.IsErr(t, errors.ErrInsufficientAmount, trace.Err())
	assert.Equal(t, uint64(60), f.balance(t, f.a))

	// A transfer to a deleted account fails separately and the funds are
	// returned.
	assert.Nil(t, f.ledger.DeleteAccount(f.c))
	trace = f.invoke(t, f.a, &noteMsg{Route: "note/pay", Target: f.c, Amount: 10}, 0)
	assert.Nil(t, trace.Err())
	assert.Equal(t, 1, len(trace.Failures()))
	assert.Equal(t, KindTransfer, trace.Failures()[0].Kind)
	assert.Equal(t, uint64(60), f.balance(t, f.a))
}

func TestSetKey(t *testing.T) {
	f := newFixture(t)
	newKey := deedtest.NewKey()

	// Only the account itself can replace its key.
	trace := f.invoke(t, f.a, &noteMsg{Route: "note/rekey", Target: f.alice, Key: newKey.Credential()}, 0)
	assert.Nil(t, trace.Err())
	set, ok := trace.Find(SetKeyPath)
	if !ok {
		t.Fatal("set key not executed")
	}
	assert.IsErr(t, errors.ErrUnauthorized, set.Err)
	assert.Equal(t, "error", f.read(t, f.a, "result"))

	trace = f.invoke(t, f.a, &noteMsg{Route: "note/rekey", Key: newKey.Credential()}, 0)
	assert.Nil(t, trace.Err())
	assert.Equal(t, 0, len(trace.Failures()))
	acc, err := f.ledger.Account(f.a)
	assert.Nil(t, err)
	assert.Equal(t, newKey.Credential(), acc.Key)

	// The account holder can rotate its own key. The old key is revoked.
	trace = f.invoke(t, f.alice, &SetKeyMsg{Credential: newKey.Credential()}, 0)
	assert.Nil(t, trace.Err())
	_, err = f.ledger.Invoke(context.Background(), f.aliceKey, f.alice, f.a, &noteMsg{Route: "note/write", Text: "x"}, 0)
	assert.IsErr(t, errors.ErrUnauthorized, err)
	trace, err = f.ledger.Invoke(context.Background(), newKey, f.alice, f.a, &noteMsg{Route: "note/write", Text: "x"}, 0)
	assert.Nil(t, err)
	assert.Nil(t, trace.Err())
}

func TestFaultInjection(t *testing.T) {
	fault := func(r *Receipt) error {
		if r.Path() == "note/write" {
			return errors.Wrap(errors.ErrDatabase, "disk full")
		}
		return nil
	}
	f := newFixture(t, WithFault(fault))

	trace := f.invoke(t, f.a, &noteMsg{Route: "note/call", Target: f.b, Text: "hello", Amount: 20}, 0)
	assert.Nil(t, trace.Err())
	assert.Equal(t, 1, len(trace.Failures()))
	assert.IsErr(t, errors.ErrDatabase, trace.Failures()[0].Err)
	assert.Equal(t, "error", f.read(t, f.a, "result"))
	assert.Equal(t, uint64(100), f.balance(t, f.a))
	assert.Equal(t, []string{"a:note/call", "a:note/done"}, f.journal)
}

func TestView(t *testing.T) {
	f := newFixture(t)
	f.invoke(t, f.a, &noteMsg{Route: "note/write", Text: "stored"}, 0)

	raw, err := f.ledger.View(f.a, &noteMsg{Route: "note/read"})
	assert.Nil(t, err)
	assert.Equal(t, "stored", string(raw))

	// Writes of a view are discarded.
	_, err = f.ledger.View(f.a, &noteMsg{Route: "note/write", Text: "changed"})
	assert.Nil(t, err)
	assert.Equal(t, "stored", f.read(t, f.a, "note"))

	_, err = f.ledger.View(f.a, &noteMsg{Route: "note/pay", Target: f.b, Amount: 1})
	assert.IsErr(t, errors.ErrHuman, err)

	_, err = f.ledger.View(f.alice, &noteMsg{Route: "note/read"})
	assert.IsErr(t, errors.ErrNotFound, err)
}

func TestAccounts(t *testing.T) {
	l := New(store.MemStore())
	addr, err := l.CreateAccount("bob", nil, 5)
	assert.Nil(t, err)
	assert.Equal(t, deedhouse.AccountAddress("bob"), addr)

	_, err = l.CreateAccount("bob", nil, 5)
	assert.IsErr(t, errors.ErrConflict, err)

	assert.Nil(t, l.DeleteAccount(addr))
	_, err = l.Account(addr)
	assert.IsErr(t, errors.ErrNotFound, err)
	assert.IsErr(t, errors.ErrNotFound, l.DeleteAccount(addr))

	// The name is free again.
	_, err = l.CreateAccount("bob", nil, 0)
	assert.Nil(t, err)
}

// countdown is a ticker that calls the note component of the target once
// the height reaches the deadline.
type countdown struct {
	deedhouse.Handler
	target   deedhouse.Address
	deadline int64
}

func (c *countdown) Tick(ctx deedhouse.Context, db deedhouse.KVStore) (*deedhouse.TickResult, error) {
	h, _ := deedhouse.GetHeight(ctx)
	if h != c.deadline {
		return nil, nil
	}
	return &deedhouse.TickResult{Promises: []deedhouse.Promise{{
		Receiver: c.target,
		Msg:      &noteMsg{Route: "note/write", Text: "tick"},
		Deposit:  1,
	}}}, nil
}

func TestTicker(t *testing.T) {
	f := newFixture(t)
	clock, err := f.ledger.CreateAccount("clock", nil, 10)
	assert.Nil(t, err)
	assert.Nil(t, f.ledger.Deploy(clock, "countdown", &countdown{Handler: app.NewRouter(), target: f.a, deadline: 4}, nil))

	assert.Nil(t, f.ledger.AdvanceHeight(context.Background(), 2))
	assert.Equal(t, int64(3), f.ledger.Height())
	assert.Equal(t, "", f.read(t, f.a, "note"))

	assert.Nil(t, f.ledger.AdvanceHeight(context.Background(), 2))
	assert.Equal(t, "tick", f.read(t, f.a, "note"))
	assert.Equal(t, uint64(9), f.balance(t, clock))
	assert.Equal(t, uint64(101), f.balance(t, f.a))

	o, ok := f.ledger.Outcomes().Find("note/write")
	if !ok {
		t.Fatal("tick promise not executed")
	}
	assert.Equal(t, int64(4), o.Height)
	assert.Equal(t, clock, o.Predecessor)
}

func TestInterleavingKeepsPairOrder(t *testing.T) {
	run := func(seed int64) []string {
		f := newFixture(t, WithInterleaving(seed))
		for i := 0; i < 5; i++ {
			tx, err := NewTx(f.alice, f.a, &noteMsg{Route: "note/call", Target: f.b, Text: "x"}, 0, uint64(2*i+1))
			assert.Nil(t, err)
			assert.Nil(t, tx.Sign(f.aliceKey, f.ledger.ChainID()))
			_, err = f.ledger.Submit(tx)
			assert.Nil(t, err)

			tx, err = NewTx(f.alice, f.c, &noteMsg{Route: "note/write", Text: "y"}, 0, uint64(2*i+2))
			assert.Nil(t, err)
			assert.Nil(t, tx.Sign(f.aliceKey, f.ledger.ChainID()))
			_, err = f.ledger.Submit(tx)
			assert.Nil(t, err)
		}
		assert.Nil(t, f.ledger.Run(context.Background()))

		// Every saga must complete in its causal order.
		for origin := uint64(1); origin <= 10; origin++ {
			paths := f.ledger.Trace(origin).Paths()
			if origin%2 == 1 {
				assert.Equal(t, []string{"note/call", "note/write", "note/done"}, paths)
			} else {
				assert.Equal(t, []string{"note/write"}, paths)
			}
		}
		var order []string
		for _, o := range f.ledger.Outcomes() {
			order = append(order, o.Path)
		}
		return order
	}

	// The same seed always gives the same schedule.
	assert.Equal(t, run(42), run(42))
}

func TestRunLimit(t *testing.T) {
	f := newFixture(t, WithMaxReceipts(2))
	_, err := f.ledger.Invoke(context.Background(), f.aliceKey, f.alice, f.a, &noteMsg{Route: "note/call", Target: f.b, Text: "x"}, 0)
	assert.IsErr(t, errors.ErrHuman, err)
	assert.Equal(t, 1, f.ledger.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.ledger.Run(ctx); err != context.Canceled {
		t.Fatalf("want canceled, got %v", err)
	}
}

package cron

import (
	"context"
	"testing"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/app"
	"github.com/iov-one/deedhouse/deedtest"
	"github.com/iov-one/deedhouse/deedtest/assert"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/ledger"
	"github.com/iov-one/deedhouse/store"
	"github.com/stretchr/testify/require"
)

func TestScheduleAndTick(t *testing.T) {
	db := store.MemStore()
	owner := deedtest.RandomAddr(t)
	receiver := deedtest.RandomAddr(t)
	self := deedhouse.AccountAddress("cron")
	c := New()

	schedule := func(runAt int64, path string, deposit uint64) []byte {
		t.Helper()
		msg, err := NewScheduleMsg(receiver, runAt, &deedtest.Msg{RoutePath: path})
		require.NoError(t, err)
		res, err := c.Deliver(deedtest.CallCtx(10, owner, self, deposit), db, &deedtest.Tx{Msg: msg})
		require.NoError(t, err)
		require.Len(t, res.Data, taskIDLength)
		require.Equal(t, runAt, TaskHeight(res.Data))
		return res.Data
	}

	first := schedule(12, "test/first", 5)
	schedule(11, "test/early", 0)
	schedule(12, "test/second", 0)

	res, err := c.Tick(deedtest.Ctx(10), db)
	require.NoError(t, err)
	require.Nil(t, res)

	res, err = c.Tick(deedtest.Ctx(11), db)
	require.NoError(t, err)
	require.Len(t, res.Promises, 1)
	require.Equal(t, "test/early", res.Promises[0].Msg.Path())

	res, err = c.Tick(deedtest.Ctx(13), db)
	require.NoError(t, err)
	require.Len(t, res.Promises, 2)
	require.Equal(t, "test/first", res.Promises[0].Msg.Path())
	require.Equal(t, receiver, res.Promises[0].Receiver)
	require.Equal(t, uint64(5), res.Promises[0].Deposit)
	require.Equal(t, &taskResultMsg{TaskID: first}, res.Promises[0].Callback)
	require.Equal(t, "test/second", res.Promises[1].Msg.Path())

	// Queue is empty now.
	res, err = c.Tick(deedtest.Ctx(20), db)
	require.NoError(t, err)
	require.Nil(t, res)
	_, err = LoadTask(db, first)
	assert.IsErr(t, errors.ErrNotFound, err)
}

func TestScheduleValidation(t *testing.T) {
	db := store.MemStore()
	owner := deedtest.RandomAddr(t)
	self := deedhouse.AccountAddress("cron")
	c := New()

	cases := map[string]struct {
		msg     deedhouse.Msg
		height  int64
		wantErr *errors.Error
	}{
		"height in the past": {
			msg:     mustScheduleMsg(t, owner, 5),
			height:  10,
			wantErr: errors.ErrInput,
		},
		"current height": {
			msg:     mustScheduleMsg(t, owner, 10),
			height:  10,
			wantErr: errors.ErrInput,
		},
		"missing receiver": {
			msg:     &ScheduleMsg{RunAt: 20, Task: deedhouse.RawMsg{Route: "test/x"}},
			height:  10,
			wantErr: errors.ErrInput,
		},
		"invalid task path": {
			msg:     &ScheduleMsg{Receiver: owner, RunAt: 20, Task: deedhouse.RawMsg{Route: "nopath"}},
			height:  10,
			wantErr: errors.ErrMsg,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Deliver(deedtest.CallCtx(tc.height, owner, self, 0), db, &deedtest.Tx{Msg: tc.msg})
			assert.IsErr(t, tc.wantErr, err)
		})
	}
}

func mustScheduleMsg(t testing.TB, receiver deedhouse.Address, runAt int64) *ScheduleMsg {
	t.Helper()
	msg, err := NewScheduleMsg(receiver, runAt, &deedtest.Msg{RoutePath: "test/x"})
	if err != nil {
		t.Fatalf("cannot create message: %s", err)
	}
	return msg
}

func TestDeleteTask(t *testing.T) {
	db := store.MemStore()
	owner := deedtest.RandomAddr(t)
	stranger := deedtest.RandomAddr(t)
	self := deedhouse.AccountAddress("cron")
	c := New()

	res, err := c.Deliver(deedtest.CallCtx(1, owner, self, 9), db, &deedtest.Tx{Msg: mustScheduleMsg(t, owner, 50)})
	require.NoError(t, err)
	id := res.Data

	_, err = c.Deliver(deedtest.CallCtx(2, stranger, self, 0), db, &deedtest.Tx{Msg: &DeleteTaskMsg{TaskID: id}})
	assert.IsErr(t, errors.ErrUnauthorized, err)

	res, err = c.Deliver(deedtest.CallCtx(2, owner, self, 0), db, &deedtest.Tx{Msg: &DeleteTaskMsg{TaskID: id}})
	require.NoError(t, err)
	require.Equal(t, []deedhouse.Transfer{{Recipient: owner, Amount: 9}}, res.Transfers)

	_, err = c.Deliver(deedtest.CallCtx(3, owner, self, 0), db, &deedtest.Tx{Msg: &DeleteTaskMsg{TaskID: id}})
	assert.IsErr(t, errors.ErrNotFound, err)

	_, err = c.Deliver(deedtest.CallCtx(3, owner, self, 0), db, &deedtest.Tx{Msg: &DeleteTaskMsg{TaskID: []byte("short")}})
	assert.FieldError(t, err, "TaskID", errors.ErrInput)
}

func TestTaskResultCallback(t *testing.T) {
	db := store.MemStore()
	self := deedhouse.AccountAddress("cron")
	c := New()
	id := taskID(4, 1)

	// Only a callback can record a result.
	_, err := c.Deliver(deedtest.CallCtx(5, deedtest.RandomAddr(t), self, 0), db, &deedtest.Tx{Msg: &taskResultMsg{TaskID: id}})
	assert.IsErr(t, errors.ErrUnauthorized, err)

	failure := errors.Wrap(errors.ErrRemote, "boom")
	_, err = c.Deliver(deedtest.CallbackCtx(5, self, deedhouse.PromiseResult{Err: failure}), db, &deedtest.Tx{Msg: &taskResultMsg{TaskID: id}})
	require.NoError(t, err)

	res, err := c.Deliver(deedtest.CallCtx(6, self, self, 0), db, &deedtest.Tx{Msg: &GetResultMsg{TaskID: id}})
	require.NoError(t, err)
	var r TaskResult
	require.NoError(t, r.Unmarshal(res.Data))
	require.False(t, r.Successful)
	require.Equal(t, int64(5), r.ExecHeight)
	require.Contains(t, r.Info, "boom")

	// A failed task returns its deposit to the owner.
	owner := deedtest.RandomAddr(t)
	out, err := c.Deliver(deedtest.CallbackCtx(7, self, deedhouse.PromiseResult{Err: failure}), db, &deedtest.Tx{Msg: &taskResultMsg{TaskID: taskID(7, 2), Owner: owner, Deposit: 5}})
	require.NoError(t, err)
	require.Equal(t, []deedhouse.Transfer{{Recipient: owner, Amount: 5}}, out.Transfers)

	out, err = c.Deliver(deedtest.CallbackCtx(7, self, deedhouse.PromiseResult{}), db, &deedtest.Tx{Msg: &taskResultMsg{TaskID: taskID(7, 3), Owner: owner, Deposit: 5}})
	require.NoError(t, err)
	require.Empty(t, out.Transfers)
}

func TestCronOnLedger(t *testing.T) {
	l := ledger.New(store.MemStore())
	key := deedtest.NewKey()
	alice, err := l.CreateAccount("alice", key.Credential(), 100)
	require.NoError(t, err)
	cronAddr, err := l.CreateAccount("cron", nil, 0)
	require.NoError(t, err)
	require.NoError(t, l.Deploy(cronAddr, "cron", New(), nil))

	target, err := l.CreateAccount("target", nil, 0)
	require.NoError(t, err)
	var calledAt []int64
	r := app.NewRouter()
	r.Handle("test/ping", deedhouse.HandlerFunc(func(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
		h, _ := deedhouse.GetHeight(ctx)
		calledAt = append(calledAt, h)
		return &deedhouse.DeliverResult{}, nil
	}))
	r.Handle("test/fail", deedhouse.HandlerFunc(func(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
		return nil, errors.Wrap(errors.ErrState, "not now")
	}))
	require.NoError(t, l.Deploy(target, "test", r, nil))

	msg, err := NewScheduleMsg(target, 4, &deedtest.Msg{RoutePath: "test/ping"})
	require.NoError(t, err)
	trace, err := l.Invoke(context.Background(), key, alice, cronAddr, msg, 7)
	require.NoError(t, err)
	require.NoError(t, trace.Err())
	okID := trace.Root().Data

	msg, err = NewScheduleMsg(target, 3, &deedtest.Msg{RoutePath: "test/fail"})
	require.NoError(t, err)
	trace, err = l.Invoke(context.Background(), key, alice, cronAddr, msg, 2)
	require.NoError(t, err)
	failID := trace.Root().Data

	require.NoError(t, l.AdvanceHeight(context.Background(), 5))
	require.Equal(t, []int64{4}, calledAt)

	balance, err := l.Balance(target)
	require.NoError(t, err)
	require.Equal(t, uint64(7), balance)
	// The deposit of the failed task is returned to its owner.
	balance, err = l.Balance(cronAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(0), balance)
	balance, err = l.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(100-7), balance)

	raw, err := l.View(cronAddr, &GetResultMsg{TaskID: okID})
	require.NoError(t, err)
	var r1 TaskResult
	require.NoError(t, r1.Unmarshal(raw))
	require.True(t, r1.Successful)
	require.Equal(t, int64(4), r1.ExecHeight)

	raw, err = l.View(cronAddr, &GetResultMsg{TaskID: failID})
	require.NoError(t, err)
	var r2 TaskResult
	require.NoError(t, r2.Unmarshal(raw))
	require.False(t, r2.Successful)
}

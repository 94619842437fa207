package cron

import (
	"bytes"
	"encoding/binary"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/app"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/orm"
)

const (
	// maxTasksPerTick limits the number of tasks started in a single
	// block. Remaining tasks are started in the following blocks.
	maxTasksPerTick = 100

	taskIDLength = 16
)

var (
	queuePrefix = []byte("_crontask:runat:")
	taskSeq     = orm.NewSequence("cron", "task")
)

// Cron is the scheduler component. It handles schedule and delete messages
// and starts due tasks every block.
type Cron struct {
	*app.Router
	results orm.ModelBucket
}

var (
	_ deedhouse.Handler = (*Cron)(nil)
	_ deedhouse.Ticker  = (*Cron)(nil)
)

// New returns a cron component with all routes registered.
func New() *Cron {
	c := &Cron{
		Router:  app.NewRouter(),
		results: NewTaskResultBucket(),
	}
	RegisterRoutes(c.Router, c.results)
	return c
}

// RegisterRoutes registers all cron handlers.
func RegisterRoutes(r deedhouse.Registry, results orm.ModelBucket) {
	r.Handle(pathSchedule, ScheduleHandler{})
	r.Handle(pathDelete, DeleteTaskHandler{})
	r.Handle(pathTaskResult, TaskResultHandler{results: results})
	r.Handle(pathGetTask, deedhouse.HandlerFunc(getTask))
	r.Handle(pathGetResult, QueryResultHandler{results: results})
}

// Schedule stores a task in the queue. Tasks scheduled for the same height
// are executed in the order they were scheduled.
func Schedule(db deedhouse.KVStore, task *Task) ([]byte, error) {
	if err := task.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid task")
	}
	seq, err := taskSeq.NextInt(db)
	if err != nil {
		return nil, errors.Wrap(err, "cannot acquire task ID")
	}
	id := taskID(task.RunAt, seq)
	raw, err := task.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal task")
	}
	if err := db.Set(queueKey(id), raw); err != nil {
		return nil, errors.Wrap(err, "cannot store in queue")
	}
	return id, nil
}

// LoadTask returns a task that is waiting for its execution.
func LoadTask(db deedhouse.ReadOnlyKVStore, id []byte) (*Task, error) {
	raw, err := db.Get(queueKey(id))
	if err != nil {
		return nil, errors.Wrap(err, "cannot read queue")
	}
	if raw == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "no task")
	}
	var t Task
	if err := t.Unmarshal(raw); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal task")
	}
	return &t, nil
}

// Delete removes a task from the queue.
func Delete(db deedhouse.KVStore, id []byte) error {
	if ok, err := db.Has(queueKey(id)); err != nil {
		return errors.Wrap(err, "has")
	} else if !ok {
		return errors.Wrap(errors.ErrNotFound, "no task")
	}
	if err := db.Delete(queueKey(id)); err != nil {
		return errors.Wrap(err, "cannot delete")
	}
	return nil
}

// taskID is the execution height followed by the sequence value, so the
// byte order of IDs is the execution order.
func taskID(runAt int64, seq uint64) []byte {
	id := make([]byte, taskIDLength)
	binary.BigEndian.PutUint64(id, uint64(runAt))
	binary.BigEndian.PutUint64(id[8:], seq)
	return id
}

// TaskHeight returns the execution height encoded in a task ID.
func TaskHeight(id []byte) int64 {
	if len(id) != taskIDLength {
		return 0
	}
	return int64(binary.BigEndian.Uint64(id))
}

func queueKey(id []byte) []byte {
	return append(append([]byte(nil), queuePrefix...), id...)
}

// due returns IDs and tasks that reached their execution height, oldest
// first.
func due(db deedhouse.ReadOnlyKVStore, height int64, limit int) ([][]byte, []*Task, error) {
	until := taskID(height+1, 0)
	it, err := db.Iterator(queueKey(taskID(0, 0)), queueKey(until))
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot create iterator")
	}
	defer it.Release()

	var (
		ids   [][]byte
		tasks []*Task
	)
	for len(ids) < limit {
		key, value, err := it.Next()
		if errors.ErrIteratorDone.Is(err) {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "cannot get next item")
		}
		var t Task
		if err := t.Unmarshal(value); err != nil {
			return nil, nil, errors.Wrapf(err, "cannot unmarshal task %X", key)
		}
		ids = append(ids, bytes.TrimPrefix(key, queuePrefix))
		tasks = append(tasks, &t)
	}
	return ids, tasks, nil
}

// Tick implements deedhouse.Ticker. Every due task is removed from the
// queue and its message is issued as a promise. The outcome is recorded by
// the task result callback.
func (c *Cron) Tick(ctx deedhouse.Context, db deedhouse.KVStore) (*deedhouse.TickResult, error) {
	height, ok := deedhouse.GetHeight(ctx)
	if !ok {
		return nil, errors.Wrap(errors.ErrHuman, "block height not set")
	}
	ids, tasks, err := due(db, height, maxTasksPerTick)
	if err != nil {
		return nil, errors.Wrap(err, "cannot pop queue")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	logger := deedhouse.GetLogger(ctx)
	res := &deedhouse.TickResult{}
	for i, id := range ids {
		if err := db.Delete(queueKey(id)); err != nil {
			return nil, errors.Wrap(err, "cannot remove from queue")
		}
		t := tasks[i]
		msg := t.Msg
		res.Promises = append(res.Promises, deedhouse.Promise{
			Receiver: t.Receiver,
			Msg:      &msg,
			Deposit:  t.Deposit,
			Callback: &taskResultMsg{TaskID: id, Owner: t.Owner, Deposit: t.Deposit},
		})
		logger.Debug("cron task started", "task", id, "path", msg.Route, "receiver", t.Receiver)
	}
	return res, nil
}

// ScheduleHandler creates a new task owned by the predecessor.
type ScheduleHandler struct{}

var _ deedhouse.Handler = ScheduleHandler{}

func (h ScheduleHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg ScheduleMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return nil, err
	}
	height, _ := deedhouse.GetHeight(ctx)
	if msg.RunAt <= height {
		return nil, errors.Wrapf(errors.ErrInput, "execution height %d is not in the future", msg.RunAt)
	}
	id, err := Schedule(db, &Task{
		Owner:    call.Predecessor,
		Receiver: msg.Receiver,
		RunAt:    msg.RunAt,
		Deposit:  call.Deposit,
		Msg:      msg.Task,
	})
	if err != nil {
		return nil, err
	}
	return &deedhouse.DeliverResult{Data: id}, nil
}

// DeleteTaskHandler removes a task of the predecessor and returns its
// deposit.
type DeleteTaskHandler struct{}

var _ deedhouse.Handler = DeleteTaskHandler{}

func (h DeleteTaskHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg DeleteTaskMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	call, err := deedhouse.MustGetCall(ctx)
	if err != nil {
		return nil, err
	}
	task, err := LoadTask(db, msg.TaskID)
	if err != nil {
		return nil, err
	}
	if !task.Owner.Equals(call.Predecessor) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "only the owner can delete a task")
	}
	if err := Delete(db, msg.TaskID); err != nil {
		return nil, err
	}
	res := &deedhouse.DeliverResult{Log: "task deleted"}
	if task.Deposit > 0 {
		res.Transfers = []deedhouse.Transfer{{Recipient: task.Owner, Amount: task.Deposit}}
	}
	return res, nil
}

// TaskResultHandler stores the outcome of an executed task.
type TaskResultHandler struct {
	results orm.ModelBucket
}

var _ deedhouse.Handler = TaskResultHandler{}

func (h TaskResultHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	res, err := deedhouse.RequireCallback(ctx)
	if err != nil {
		return nil, err
	}
	var msg taskResultMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	height, _ := deedhouse.GetHeight(ctx)
	result := TaskResult{
		Successful: res.Err == nil,
		ExecHeight: height,
	}
	if res.Err != nil {
		result.Info = res.Err.Error()
		if len(result.Info) > maxInfoSize {
			result.Info = result.Info[:maxInfoSize]
		}
		deedhouse.GetLogger(ctx).Info("cron task failed", "task", msg.TaskID, "err", res.Err)
	}
	if err := h.results.Put(db, msg.TaskID, &result); err != nil {
		return nil, errors.Wrap(err, "cannot store result")
	}
	out := &deedhouse.DeliverResult{}
	if res.Err != nil && msg.Deposit > 0 {
		// The ledger returned the deposit of the failed task to us.
		out.Transfers = []deedhouse.Transfer{{Recipient: msg.Owner, Amount: msg.Deposit}}
	}
	return out, nil
}

// QueryResultHandler returns the serialized result of an executed task.
type QueryResultHandler struct {
	results orm.ModelBucket
}

var _ deedhouse.Handler = QueryResultHandler{}

func (h QueryResultHandler) Deliver(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg GetResultMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	var r TaskResult
	if err := h.results.One(db, msg.TaskID, &r); err != nil {
		return nil, err
	}
	raw, err := r.Marshal()
	if err != nil {
		return nil, err
	}
	return &deedhouse.DeliverResult{Data: raw}, nil
}

func getTask(ctx deedhouse.Context, db deedhouse.KVStore, tx deedhouse.Tx) (*deedhouse.DeliverResult, error) {
	var msg GetTaskMsg
	if err := deedhouse.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	t, err := LoadTask(db, msg.TaskID)
	if err != nil {
		return nil, err
	}
	raw, err := t.Marshal()
	if err != nil {
		return nil, err
	}
	return &deedhouse.DeliverResult{Data: raw}, nil
}

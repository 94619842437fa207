package cron

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/orm"
)

// Task is a message waiting in the queue for its execution height.
type Task struct {
	Owner    deedhouse.Address
	Receiver deedhouse.Address
	RunAt    int64
	Deposit  uint64
	Msg      deedhouse.RawMsg
}

var _ orm.Model = (*Task)(nil)

func (t *Task) Marshal() ([]byte, error) {
	return deedhouse.Marshal(t)
}

func (t *Task) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, t)
}

func (t *Task) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Owner", t.Owner.Validate())
	errs = errors.AppendField(errs, "Receiver", t.Receiver.Validate())
	if t.RunAt <= 0 {
		errs = errors.AppendField(errs, "RunAt", errors.ErrInput)
	}
	errs = errors.AppendField(errs, "Msg", t.Msg.Validate())
	return errs
}

const maxInfoSize = 10240

// TaskResult is the outcome of an executed task.
type TaskResult struct {
	Successful bool
	// Info contains the error message of a failed task.
	Info       string
	ExecHeight int64
}

var _ orm.Model = (*TaskResult)(nil)

func (r *TaskResult) Marshal() ([]byte, error) {
	return deedhouse.Marshal(r)
}

func (r *TaskResult) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, r)
}

func (r *TaskResult) Validate() error {
	var errs error
	if len(r.Info) > maxInfoSize {
		errs = errors.AppendField(errs, "Info", errors.ErrInput)
	}
	if r.ExecHeight <= 0 {
		errs = errors.AppendField(errs, "ExecHeight", errors.ErrInput)
	}
	return errs
}

// NewTaskResultBucket returns a bucket for storing task results.
func NewTaskResultBucket() orm.ModelBucket {
	return orm.NewModelBucket("trs", &TaskResult{})
}

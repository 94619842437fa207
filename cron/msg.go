package cron

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
)

const (
	pathSchedule   = "cron/schedule"
	pathDelete     = "cron/delete"
	pathTaskResult = "cron/task_result"
	pathGetTask    = "cron/get_task"
	pathGetResult  = "cron/get_result"
)

// ScheduleMsg requests the execution of a message at given height. The
// deposit of the call is forwarded together with the message. Returned data
// is the ID of the created task.
type ScheduleMsg struct {
	Receiver deedhouse.Address
	RunAt    int64
	Task     deedhouse.RawMsg
}

var _ deedhouse.Msg = (*ScheduleMsg)(nil)

// NewScheduleMsg returns a message that schedules delivery of given message
// to the receiver at given height.
func NewScheduleMsg(receiver deedhouse.Address, runAt int64, msg deedhouse.Msg) (*ScheduleMsg, error) {
	raw, err := deedhouse.NewRawMsg(msg)
	if err != nil {
		return nil, err
	}
	return &ScheduleMsg{Receiver: receiver, RunAt: runAt, Task: *raw}, nil
}

func (ScheduleMsg) Path() string {
	return pathSchedule
}

func (m *ScheduleMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *ScheduleMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *ScheduleMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Receiver", m.Receiver.Validate())
	if m.RunAt <= 0 {
		errs = errors.AppendField(errs, "RunAt", errors.ErrInput)
	}
	errs = errors.AppendField(errs, "Task", m.Task.Validate())
	return errs
}

// DeleteTaskMsg removes a task before it was executed. Only the account
// that scheduled the task can delete it. The task deposit is returned.
type DeleteTaskMsg struct {
	TaskID []byte
}

var _ deedhouse.Msg = (*DeleteTaskMsg)(nil)

func (DeleteTaskMsg) Path() string {
	return pathDelete
}

func (m *DeleteTaskMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *DeleteTaskMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *DeleteTaskMsg) Validate() error {
	return validTaskID(m.TaskID)
}

// taskResultMsg is the callback of an executed task. The deposit of a
// failed task is returned to the owner.
type taskResultMsg struct {
	TaskID  []byte
	Owner   deedhouse.Address
	Deposit uint64
}

var _ deedhouse.Msg = (*taskResultMsg)(nil)

func (taskResultMsg) Path() string {
	return pathTaskResult
}

func (m *taskResultMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *taskResultMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *taskResultMsg) Validate() error {
	if err := validTaskID(m.TaskID); err != nil {
		return err
	}
	if m.Deposit > 0 {
		return errors.AppendField(nil, "Owner", m.Owner.Validate())
	}
	return nil
}

// GetTaskMsg is a read only call that returns the serialized Task.
type GetTaskMsg struct {
	TaskID []byte
}

var _ deedhouse.Msg = (*GetTaskMsg)(nil)

func (GetTaskMsg) Path() string {
	return pathGetTask
}

func (m *GetTaskMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *GetTaskMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *GetTaskMsg) Validate() error {
	return validTaskID(m.TaskID)
}

// GetResultMsg is a read only call that returns the serialized TaskResult.
type GetResultMsg struct {
	TaskID []byte
}

var _ deedhouse.Msg = (*GetResultMsg)(nil)

func (GetResultMsg) Path() string {
	return pathGetResult
}

func (m *GetResultMsg) Marshal() ([]byte, error) {
	return deedhouse.Marshal(m)
}

func (m *GetResultMsg) Unmarshal(raw []byte) error {
	return deedhouse.Unmarshal(raw, m)
}

func (m *GetResultMsg) Validate() error {
	return validTaskID(m.TaskID)
}

func validTaskID(id []byte) error {
	if len(id) != taskIDLength {
		return errors.Field("TaskID", errors.ErrInput, "must be %d bytes", taskIDLength)
	}
	return nil
}

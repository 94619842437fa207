/*
Package cron implements a component that executes messages at a future
block height.

A task is created with a ScheduleMsg. The message of the task is delivered
to its receiver as a remote call issued by the cron account, not earlier
than the requested height. The deposit attached to the schedule call is
forwarded with the task. Execution is best effort: the outcome of every
task is stored as a TaskResult and a failed task is never retried.
*/
package cron

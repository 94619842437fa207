package app

import (
	"time"

	"github.com/iov-one/deedhouse"
)

// Logging is a decorator to log messages as they pass through
type Logging struct{}

var _ deedhouse.Decorator = Logging{}

// NewLogging creates a Logging decorator
func NewLogging() Logging {
	return Logging{}
}

// Deliver logs error -> error, success -> info
func (Logging) Deliver(ctx deedhouse.Context, store deedhouse.KVStore, tx deedhouse.Tx, next deedhouse.Handler) (*deedhouse.DeliverResult, error) {
	start := time.Now()
	res, err := next.Deliver(ctx, store, tx)
	var resLog string
	if err == nil && res != nil {
		resLog = res.Log
	}
	logDuration(ctx, start, deedhouse.GetPath(tx), resLog, err)
	return res, err
}

// logDuration writes information about the time and result to the logger
func logDuration(ctx deedhouse.Context, start time.Time, path, msg string, err error) {
	delta := time.Since(start)
	logger := deedhouse.GetLogger(ctx).With("path", path, "duration", delta/time.Microsecond)
	if c, ok := deedhouse.GetCall(ctx); ok {
		logger = logger.With("predecessor", c.Predecessor, "current", c.Current)
	}

	// Although message can be empty, we still want to emit a log entry
	// because it contains other relevant information beside the message.
	if err != nil {
		logger.With("err", err).Error(msg)
	} else {
		logger.Info(msg)
	}
}

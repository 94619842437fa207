package app

import (
	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
)

// Recovery is a decorator to recover from panics in handlers, so we can log
// them as errors and fail only the current call.
type Recovery struct{}

var _ deedhouse.Decorator = Recovery{}

// NewRecovery creates a Recovery decorator
func NewRecovery() Recovery {
	return Recovery{}
}

// Deliver turns panics into normal errors
func (Recovery) Deliver(ctx deedhouse.Context, store deedhouse.KVStore, tx deedhouse.Tx, next deedhouse.Handler) (res *deedhouse.DeliverResult, err error) {
	defer errors.Recover(&err)
	return next.Deliver(ctx, store, tx)
}

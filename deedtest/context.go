package deedtest

import (
	"context"

	"github.com/iov-one/deedhouse"
)

// Ctx returns a context with the block height set.
func Ctx(height int64) deedhouse.Context {
	return deedhouse.WithHeight(context.Background(), height)
}

// CallCtx returns a context of a direct call, signed and issued by the
// predecessor, to the current account.
func CallCtx(height int64, predecessor, current deedhouse.Address, deposit uint64) deedhouse.Context {
	return deedhouse.WithCall(Ctx(height), deedhouse.Call{
		Signer:      predecessor,
		Predecessor: predecessor,
		Current:     current,
		Deposit:     deposit,
	})
}

// CallbackCtx returns a context of a callback delivered to the current
// account with given promise result.
func CallbackCtx(height int64, current deedhouse.Address, res deedhouse.PromiseResult) deedhouse.Context {
	ctx := deedhouse.WithCall(Ctx(height), deedhouse.Call{
		Signer:      current,
		Predecessor: current,
		Current:     current,
	})
	return deedhouse.WithPromiseResult(ctx, res)
}

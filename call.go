package deedhouse

import (
	"context"

	"github.com/iov-one/deedhouse/errors"
)

// Call describes who is executing the current handler invocation.
//
// Signer is the account that signed the transaction that started the whole
// chain of calls. Predecessor is the account that issued this particular call
// and it is the identity that handlers must authorize. Current is the account
// the handler is deployed to. Deposit is the amount of funds attached to the
// call, already credited to the current account.
type Call struct {
	Signer      Address
	SignerKey   Credential
	Predecessor Address
	Current     Address
	Deposit     uint64
}

// IsSelf returns true if the current account issued this call. Callbacks are
// always delivered this way.
func (c Call) IsSelf() bool {
	return c.Predecessor.Equals(c.Current)
}

// WithCall sets the call information for the context.
// It panics if the call was already set.
func WithCall(ctx Context, c Call) Context {
	if _, ok := GetCall(ctx); ok {
		panic("Call already set")
	}
	return context.WithValue(ctx, contextKeyCall, c)
}

// GetCall returns the call information.
// If it was not initialized, returns (Call{}, false)
func GetCall(ctx Context) (Call, bool) {
	val, ok := ctx.Value(contextKeyCall).(Call)
	return val, ok
}

// MustGetCall returns the call information or fails with ErrHuman when the
// handler is executed outside of the ledger runtime.
func MustGetCall(ctx Context) (Call, error) {
	c, ok := GetCall(ctx)
	if !ok {
		return Call{}, errors.Wrap(errors.ErrHuman, "no call information in context")
	}
	return c, nil
}

// PromiseResult is the outcome of a remote call, passed to its callback.
// Err is nil on success. A failed remote call is always reported with an
// error that is an ErrRemote.
type PromiseResult struct {
	Data []byte
	Err  error
}

// WithPromiseResult sets the result of the remote call that the current
// callback continues.
func WithPromiseResult(ctx Context, r PromiseResult) Context {
	return context.WithValue(ctx, contextKeyPromiseResult, r)
}

// GetPromiseResult returns the result of the remote call that the current
// callback continues. ok is false when the handler is not executed as a
// callback.
func GetPromiseResult(ctx Context) (PromiseResult, bool) {
	val, ok := ctx.Value(contextKeyPromiseResult).(PromiseResult)
	return val, ok
}

// RequireCallback returns the promise result if the current invocation is a
// callback issued by the current account. Any other caller is unauthorized.
func RequireCallback(ctx Context) (PromiseResult, error) {
	c, err := MustGetCall(ctx)
	if err != nil {
		return PromiseResult{}, err
	}
	if !c.IsSelf() {
		return PromiseResult{}, errors.Wrap(errors.ErrUnauthorized, "callback must be issued by the current account")
	}
	res, ok := GetPromiseResult(ctx)
	if !ok {
		return PromiseResult{}, errors.Wrap(errors.ErrState, "not a callback invocation")
	}
	return res, nil
}

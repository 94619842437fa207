package deedhouse

import (
	"encoding/json"

	"github.com/iov-one/deedhouse/errors"
)

// Handler is a core engine that can process a few specific messages.
// A component deployed to a ledger account is a Handler, usually a router
// dispatching messages by their path.
type Handler interface {
	Deliver(ctx Context, store KVStore, tx Tx) (*DeliverResult, error)
}

// Decorator wraps a Handler to provide common functionality
// like logging or panic recovery to many Handlers
type Decorator interface {
	Deliver(ctx Context, store KVStore, tx Tx, next Handler) (*DeliverResult, error)
}

// HandlerFunc allows to use a function as a Handler.
type HandlerFunc func(ctx Context, store KVStore, tx Tx) (*DeliverResult, error)

// Deliver implements Handler interface.
func (fn HandlerFunc) Deliver(ctx Context, store KVStore, tx Tx) (*DeliverResult, error) {
	return fn(ctx, store, tx)
}

// Ticker is a method that is called every time the ledger advances its
// height, which can be used to perform periodic or delayed tasks
type Ticker interface {
	Tick(ctx Context, store KVStore) (*TickResult, error)
}

// Registry is an interface to register your handler,
// the setup side of a Router
type Registry interface {
	Handle(path string, h Handler)
}

// Options are the genesis options.
// Each extension can look up it's key and parse the json as desired
type Options map[string]json.RawMessage

// ReadOptions reads the values stored under a given key,
// and parses the json into the given obj.
// Returns an error if it cannot parse.
// Noop and no error if key is missing
func (o Options) ReadOptions(key string, obj interface{}) error {
	msg := o[key]
	if len(msg) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg, obj); err != nil {
		return errors.Wrapf(errors.ErrInput, "cannot parse %q options: %s", key, err)
	}
	return nil
}

// Initializer implementations are used to initialize
// extensions from genesis file contents
type Initializer interface {
	FromGenesis(Options, KVStore) error
}

// ChainInitializers lets you initialize many extensions with one function
func ChainInitializers(inits ...Initializer) Initializer {
	return chainInitializer{inits}
}

type chainInitializer struct {
	inits []Initializer
}

// FromGenesis passes the options to every initializer in order.
func (c chainInitializer) FromGenesis(opts Options, kv KVStore) error {
	for _, i := range c.inits {
		if err := i.FromGenesis(opts, kv); err != nil {
			return err
		}
	}
	return nil
}

// DeliverResult captures any non-error result of a handler.
//
// Promises and Transfers are only issued by the ledger if the handler
// returned no error.
type DeliverResult struct {
	// Data is returned to the caller, or to the callback of the caller
	// if this was a remote call.
	Data []byte
	// Log is a human readable message that is kept with the outcome.
	Log string
	// Promises are remote calls to be executed after this call finished.
	Promises []Promise
	// Transfers are value transfers from the current account. Each
	// transfer is executed and can fail separately.
	Transfers []Transfer
}

// Promise is a remote call scheduled by a handler.
type Promise struct {
	// Receiver is the account the message is delivered to.
	Receiver Address
	// Msg is delivered to the receiver.
	Msg Msg
	// Deposit is moved from the current account balance to the receiver
	// together with the message. It is returned if the call fails.
	Deposit uint64
	// Callback is optional. When set, the message is delivered back to the
	// current account once the remote call finished, with the
	// PromiseResult available in the context.
	Callback Msg
	// Return forwards the result of this promise to whoever is waiting
	// for the result of the current call. The waiting callback is
	// delivered only after the callback of this promise. At most one
	// promise of a result can be returned.
	Return bool
}

// Transfer moves funds from the current account to the recipient.
type Transfer struct {
	Recipient Address
	Amount    uint64
}

// TickResult is returned by a Ticker.
type TickResult struct {
	Promises []Promise
}

// Validate returns an error if the result cannot be executed by the ledger.
func (r *DeliverResult) Validate() error {
	if r == nil {
		return nil
	}
	returned := 0
	for i, p := range r.Promises {
		if err := p.validate(); err != nil {
			return errors.Wrapf(err, "promise %d", i)
		}
		if p.Return {
			returned++
		}
	}
	if returned > 1 {
		return errors.Wrap(errors.ErrHuman, "only one promise can be returned")
	}
	for i, t := range r.Transfers {
		if err := t.Recipient.Validate(); err != nil {
			return errors.Wrapf(err, "transfer %d recipient", i)
		}
		if t.Amount == 0 {
			return errors.Wrapf(errors.ErrAmount, "transfer %d", i)
		}
	}
	return nil
}

func (p Promise) validate() error {
	if err := p.Receiver.Validate(); err != nil {
		return errors.Wrap(err, "receiver")
	}
	if p.Msg == nil {
		return errors.Wrap(errors.ErrEmpty, "message")
	}
	return nil
}

// TotalOut returns the sum of all funds that the result moves out of the
// current account.
func (r *DeliverResult) TotalOut() (uint64, error) {
	if r == nil {
		return 0, nil
	}
	var total uint64
	add := func(v uint64) error {
		if total+v < total {
			return errors.Wrap(errors.ErrOverflow, "total out")
		}
		total += v
		return nil
	}
	for _, p := range r.Promises {
		if err := add(p.Deposit); err != nil {
			return 0, err
		}
	}
	for _, t := range r.Transfers {
		if err := add(t.Amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}

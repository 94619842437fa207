package ledger

import (
	"fmt"

	"github.com/iov-one/deedhouse"
)

// Kind tells how a receipt is executed.
type Kind uint8

const (
	// KindCall delivers a message to the component of the receiver.
	KindCall Kind = iota
	// KindCallback delivers the outcome of a remote call back to its
	// issuer.
	KindCallback
	// KindTransfer credits the deposit to the receiver.
	KindTransfer
	// KindTick is the execution of a component ticker.
	KindTick
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindCallback:
		return "callback"
	case KindTransfer:
		return "transfer"
	case KindTick:
		return "tick"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Receipt is a single, atomically executed step of a saga.
type Receipt struct {
	ID uint64
	// Origin is the ID of the transaction (or tick) that started the
	// saga this receipt belongs to.
	Origin      uint64
	Kind        Kind
	Signer      deedhouse.Address
	SignerKey   deedhouse.Credential
	Predecessor deedhouse.Address
	Receiver    deedhouse.Address
	Msg         *deedhouse.RawMsg
	Deposit     uint64
	// Result is the outcome of the remote call that a callback continues.
	Result *deedhouse.PromiseResult

	// waiting are the callbacks that wait for the outcome of this receipt,
	// innermost first.
	waiting []continuation
}

// Path returns the message path or the kind for receipts that carry no
// message.
func (r *Receipt) Path() string {
	if r.Msg == nil {
		return r.Kind.String()
	}
	return r.Msg.Path()
}

func (r *Receipt) String() string {
	return fmt.Sprintf("%d:%s %s->%s", r.ID, r.Path(), r.Predecessor, r.Receiver)
}

// continuation is a callback registered by the issuer of a promise.
type continuation struct {
	issuer deedhouse.Address
	msg    *deedhouse.RawMsg
}

// Outcome is the recorded result of an executed receipt.
type Outcome struct {
	ID          uint64
	Origin      uint64
	Height      int64
	Kind        Kind
	Predecessor deedhouse.Address
	Receiver    deedhouse.Address
	Path        string
	Deposit     uint64
	Data        []byte
	Log         string
	Err         error
}

// Failed returns true if the receipt was not applied.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

func (o Outcome) String() string {
	status := "ok"
	if o.Err != nil {
		status = o.Err.Error()
	}
	return fmt.Sprintf("#%d %s %s %s->%s: %s", o.ID, o.Kind, o.Path, o.Predecessor, o.Receiver, status)
}

// Trace is the list of outcomes of all receipts of a saga, in execution
// order.
type Trace []Outcome

// Root returns the outcome of the first receipt.
func (t Trace) Root() Outcome {
	if len(t) == 0 {
		return Outcome{}
	}
	return t[0]
}

// Err returns the error of the first receipt.
func (t Trace) Err() error {
	return t.Root().Err
}

// Failures returns outcomes of all receipts that failed.
func (t Trace) Failures() []Outcome {
	var res []Outcome
	for _, o := range t {
		if o.Err != nil {
			res = append(res, o)
		}
	}
	return res
}

// Find returns the first outcome of a receipt with given path.
func (t Trace) Find(path string) (Outcome, bool) {
	for _, o := range t {
		if o.Path == path {
			return o, true
		}
	}
	return Outcome{}, false
}

// Paths returns the paths of all executed receipts.
func (t Trace) Paths() []string {
	res := make([]string, len(t))
	for i, o := range t {
		res[i] = o.Path
	}
	return res
}

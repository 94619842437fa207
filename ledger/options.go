package ledger

import (
	"github.com/tendermint/tendermint/libs/log"
)

// Option configures a Ledger during creation.
type Option func(*Ledger)

// WithLogger sets the logger used by the ledger and passed to the handlers.
func WithLogger(logger log.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithChainID sets the chain ID that every transaction signature is bound
// to.
func WithChainID(chainID string) Option {
	return func(l *Ledger) {
		l.chainID = chainID
	}
}

// WithHeight sets the initial block height.
func WithHeight(height int64) Option {
	return func(l *Ledger) {
		l.height = height
	}
}

// WithInterleaving enables seeded random interleaving of independent
// receipts. The same seed always produces the same execution order.
func WithInterleaving(seed int64) Option {
	return func(l *Ledger) {
		l.queue = newQueue(seed, true)
	}
}

// WithFault installs a fault injection hook. It is called before a receipt
// is executed and if it returns an error, the receipt fails with that error
// without being delivered.
func WithFault(fn func(*Receipt) error) Option {
	return func(l *Ledger) {
		l.fault = fn
	}
}

// WithMaxReceipts limits the number of receipts a single Run can execute.
func WithMaxReceipts(n int) Option {
	return func(l *Ledger) {
		l.maxReceipts = n
	}
}

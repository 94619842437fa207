package orm

import (
	"github.com/iov-one/deedhouse"
)

// Model is implemented by any entity that can be stored using ModelBucket.
type Model interface {
	deedhouse.Persistent
	// Validate returns error if the model is not in a valid
	// state to save to the db (eg. field missing, out of range, ...)
	Validate() error
}

// Indexer calculates the secondary index key for a model. It returns nil
// when the model should not be present in the index.
type Indexer func(Model) ([]byte, error)

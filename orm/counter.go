package orm

import (
	"github.com/iov-one/deedhouse"
)

// Counter is a named statistic stored in the database, for example the
// number of finished auctions.
type Counter struct {
	seq Sequence
}

// NewCounter returns a counter stored using following pattern:
//    _c.<bucket>:<name>
func NewCounter(bucket, name string) Counter {
	return Counter{seq: Sequence{id: []byte("_c." + bucket + ":" + name)}}
}

// Increment adds one to the counter and returns the new value.
func (c *Counter) Increment(db deedhouse.KVStore) (uint64, error) {
	return c.seq.NextInt(db)
}

// Value returns the current counter value.
func (c *Counter) Value(db deedhouse.ReadOnlyKVStore) (uint64, error) {
	return c.seq.Latest(db)
}

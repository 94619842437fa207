package store

import (
	"bytes"

	"github.com/iov-one/deedhouse/errors"
)

// PrefixStore is a view of a KVStore that keeps all keys under a prefix.
// The ledger gives every account a prefixed view of the shared store so that
// a component can only ever touch its own namespace.
type PrefixStore struct {
	parent KVStore
	prefix []byte
}

var _ KVStore = PrefixStore{}

// NewPrefixStore returns a view of the parent store limited to the keys
// starting with given prefix.
func NewPrefixStore(parent KVStore, prefix []byte) PrefixStore {
	return PrefixStore{
		parent: parent,
		prefix: append([]byte(nil), prefix...),
	}
}

func (p PrefixStore) key(k []byte) []byte {
	res := make([]byte, 0, len(p.prefix)+len(k))
	res = append(res, p.prefix...)
	return append(res, k...)
}

// Get returns the value stored under the prefixed key.
func (p PrefixStore) Get(key []byte) ([]byte, error) {
	return p.parent.Get(p.key(key))
}

// Has returns true if the prefixed key exists.
func (p PrefixStore) Has(key []byte) (bool, error) {
	return p.parent.Has(p.key(key))
}

// Set writes under the prefixed key.
func (p PrefixStore) Set(key, value []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrInput, "nil key")
	}
	return p.parent.Set(p.key(key), value)
}

// Delete removes the prefixed key.
func (p PrefixStore) Delete(key []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrInput, "nil key")
	}
	return p.parent.Delete(p.key(key))
}

// NewBatch returns a batch writing prefixed keys to the parent.
func (p PrefixStore) NewBatch() Batch {
	return prefixBatch{parent: p.parent.NewBatch(), store: p}
}

func (p PrefixStore) bounds(start, end []byte) ([]byte, []byte) {
	s := p.key(start)
	var e []byte
	if end == nil {
		e = PrefixEnd(p.prefix)
	} else {
		e = p.key(end)
	}
	return s, e
}

// Iterator over the namespace in ascending order. Returned keys have the
// prefix removed.
func (p PrefixStore) Iterator(start, end []byte) (Iterator, error) {
	s, e := p.bounds(start, end)
	it, err := p.parent.Iterator(s, e)
	if err != nil {
		return nil, err
	}
	return prefixIterator{parent: it, prefix: p.prefix}, nil
}

// ReverseIterator over the namespace in descending order. Returned keys have
// the prefix removed.
func (p PrefixStore) ReverseIterator(start, end []byte) (Iterator, error) {
	s, e := p.bounds(start, end)
	it, err := p.parent.ReverseIterator(s, e)
	if err != nil {
		return nil, err
	}
	return prefixIterator{parent: it, prefix: p.prefix}, nil
}

type prefixIterator struct {
	parent Iterator
	prefix []byte
}

func (i prefixIterator) Next() ([]byte, []byte, error) {
	k, v, err := i.parent.Next()
	if err != nil {
		return nil, nil, err
	}
	if !bytes.HasPrefix(k, i.prefix) {
		return nil, nil, errors.Wrapf(errors.ErrDatabase, "key %X out of namespace", k)
	}
	return k[len(i.prefix):], v, nil
}

func (i prefixIterator) Release() {
	i.parent.Release()
}

type prefixBatch struct {
	parent Batch
	store  PrefixStore
}

func (b prefixBatch) Set(key, value []byte) error {
	return b.parent.Set(b.store.key(key), value)
}

func (b prefixBatch) Delete(key []byte) error {
	return b.parent.Delete(b.store.key(key))
}

func (b prefixBatch) Write() error {
	return b.parent.Write()
}

// PrefixEnd returns the first key that is greater than all keys with given
// prefix. It returns nil if there is no such key (prefix is all 0xFF).
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

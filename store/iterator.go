package store

import (
	"bytes"

	"github.com/google/btree"
	"github.com/iov-one/deedhouse/errors"
)

////////////////////////////////////////////////
// Slice -> Iterator

// SliceIterator wraps an Iterator over a slice of models
type SliceIterator struct {
	data []Model
	idx  int
}

var _ Iterator = (*SliceIterator)(nil)

// NewSliceIterator creates a new Iterator over this slice
func NewSliceIterator(data []Model) *SliceIterator {
	return &SliceIterator{
		data: data,
	}
}

// Next returns the next key value pair or ErrIteratorDone.
func (s *SliceIterator) Next() (key, value []byte, err error) {
	if s.idx >= len(s.data) {
		return nil, nil, errors.ErrIteratorDone
	}
	m := s.data[s.idx]
	s.idx++
	return m.Key, m.Value, nil
}

// Release releases the Iterator.
func (s *SliceIterator) Release() {
	s.data = nil
}

/////////////////////////////////////////////////////
// Empty KVStore

// EmptyKVStore never holds any data, used as a base layer to test caching
type EmptyKVStore struct{}

var _ KVStore = EmptyKVStore{}

// Get always returns nil
func (e EmptyKVStore) Get(key []byte) ([]byte, error) { return nil, nil }

// Has always returns false
func (e EmptyKVStore) Has(key []byte) (bool, error) { return false, nil }

// Set is a noop
func (e EmptyKVStore) Set(key, value []byte) error { return nil }

// Delete is a noop
func (e EmptyKVStore) Delete(key []byte) error { return nil }

// Iterator is always empty
func (e EmptyKVStore) Iterator(start, end []byte) (Iterator, error) {
	return NewSliceIterator(nil), nil
}

// ReverseIterator is always empty
func (e EmptyKVStore) ReverseIterator(start, end []byte) (Iterator, error) {
	return NewSliceIterator(nil), nil
}

// NewBatch returns a batch that can write to this tree later
func (e EmptyKVStore) NewBatch() Batch {
	return NewNonAtomicBatch(e)
}

/////////////////////////////////////////////////////
// Cache layer + parent -> Iterator

// mergeIterator joins the cached items with those of the parent,
// taking into consideration overwrites and deletes.
type mergeIterator struct {
	items   []btree.Item
	idx     int
	parent  Iterator
	reverse bool

	// lookahead of the parent iterator
	pkey, pvalue []byte
	pdone        bool
	ploaded      bool
}

var _ Iterator = (*mergeIterator)(nil)

func newMergeIterator(items []btree.Item, parent Iterator, reverse bool) *mergeIterator {
	return &mergeIterator{
		items:   items,
		parent:  parent,
		reverse: reverse,
	}
}

func (m *mergeIterator) loadParent() error {
	if m.ploaded || m.pdone {
		return nil
	}
	k, v, err := m.parent.Next()
	if err != nil {
		if errors.ErrIteratorDone.Is(err) {
			m.pdone = true
			return nil
		}
		return err
	}
	m.pkey, m.pvalue, m.ploaded = k, v, true
	return nil
}

// first returns true if a comes before b in the iteration order.
func (m *mergeIterator) first(a, b []byte) bool {
	if m.reverse {
		return bytes.Compare(a, b) > 0
	}
	return bytes.Compare(a, b) < 0
}

// Next returns the next key value pair or ErrIteratorDone.
func (m *mergeIterator) Next() (key, value []byte, err error) {
	for {
		if err := m.loadParent(); err != nil {
			return nil, nil, err
		}

		if m.idx >= len(m.items) {
			if !m.ploaded {
				return nil, nil, errors.ErrIteratorDone
			}
			m.ploaded = false
			return m.pkey, m.pvalue, nil
		}

		item := m.items[m.idx]
		ikey := item.(keyer).Key()

		if m.ploaded && m.first(m.pkey, ikey) {
			m.ploaded = false
			return m.pkey, m.pvalue, nil
		}
		// cached item shadows a parent value with the same key
		if m.ploaded && bytes.Equal(m.pkey, ikey) {
			m.ploaded = false
		}
		m.idx++
		switch t := item.(type) {
		case setItem:
			return t.key, t.value, nil
		case deletedItem:
			continue
		default:
			return nil, nil, errors.Wrapf(errors.ErrDatabase, "unknown item in btree: %#v", item)
		}
	}
}

// Release releases the Iterator.
func (m *mergeIterator) Release() {
	m.parent.Release()
	m.items = nil
}

package orm

import (
	"bytes"
	"encoding/binary"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
	"github.com/iov-one/deedhouse/store"
)

// index is a secondary lookup of a model bucket. Every entry is stored
// under its own key using following pattern:
//    _i.<bucket>_<name>:<len(index key)><index key><primary key>
// The value of the entry is the primary key of the referenced model.
type index struct {
	name    string
	prefix  []byte
	indexer Indexer
	unique  bool
}

func newIndex(bucket, name string, indexer Indexer, unique bool) *index {
	return &index{
		name:    name,
		prefix:  []byte("_i." + bucket + "_" + name + ":"),
		indexer: indexer,
		unique:  unique,
	}
}

// keyPrefix returns the prefix of all entries for given index key.
func (i *index) keyPrefix(key []byte) []byte {
	res := make([]byte, 0, len(i.prefix)+2+len(key))
	res = append(res, i.prefix...)
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(key)))
	res = append(res, l[:]...)
	return append(res, key...)
}

func (i *index) entry(key, pk []byte) []byte {
	return append(i.keyPrefix(key), pk...)
}

// keys returns primary keys of all models indexed under given key, sorted
// by the primary key.
func (i *index) keys(db deedhouse.ReadOnlyKVStore, key []byte) ([][]byte, error) {
	start := i.keyPrefix(key)
	it, err := db.Iterator(start, store.PrefixEnd(start))
	if err != nil {
		return nil, errors.Wrap(err, "cannot iterate over the index")
	}
	defer it.Release()

	var res [][]byte
	for {
		_, value, err := it.Next()
		if errors.ErrIteratorDone.Is(err) {
			return res, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "index iterator")
		}
		res = append(res, value)
	}
}

// update replaces the index entry of prev model with one of next. Either
// model can be nil.
func (i *index) update(db deedhouse.KVStore, pk []byte, prev, next Model) error {
	var prevKey, nextKey []byte
	var err error
	if prev != nil {
		if prevKey, err = i.indexer(prev); err != nil {
			return err
		}
	}
	if next != nil {
		if nextKey, err = i.indexer(next); err != nil {
			return err
		}
	}
	if prevKey != nil && nextKey != nil && bytes.Equal(prevKey, nextKey) {
		return nil
	}
	if prevKey != nil {
		if err := db.Delete(i.entry(prevKey, pk)); err != nil {
			return err
		}
	}
	if nextKey == nil {
		return nil
	}
	if i.unique {
		refs, err := i.keys(db, nextKey)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if !bytes.Equal(ref, pk) {
				return errors.Wrapf(errors.ErrConflict, "unique index %s already references %X", i.name, ref)
			}
		}
	}
	return db.Set(i.entry(nextKey, pk), pk)
}

package store

import "github.com/iov-one/deedhouse"

// Move references for all storage types into this package
// for shorter names everywhere

type ReadOnlyKVStore = deedhouse.ReadOnlyKVStore
type SetDeleter = deedhouse.SetDeleter
type KVStore = deedhouse.KVStore
type Batch = deedhouse.Batch
type Iterator = deedhouse.Iterator
type CacheableKVStore = deedhouse.CacheableKVStore
type KVCacheWrap = deedhouse.KVCacheWrap

// Model groups together key and value to return
type Model struct {
	Key   []byte
	Value []byte
}

// Pair constructs a model from a key-value pair
func Pair(key, value []byte) Model {
	return Model{
		Key:   key,
		Value: value,
	}
}

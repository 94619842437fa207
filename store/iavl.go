package store

import (
	"github.com/iov-one/deedhouse/errors"
	"github.com/tendermint/iavl"
	dbm "github.com/tendermint/tendermint/libs/db"
)

// DefaultCacheSize is the number of tree nodes kept in memory.
const DefaultCacheSize = 10000

// CommitID identifies a saved version of the state.
type CommitID struct {
	Version int64
	Hash    []byte
}

// IAVLStore keeps the state in a versioned merkle tree. All writes go to
// the working tree and are persisted as a new version by Commit.
type IAVLStore struct {
	db   dbm.DB
	tree *iavl.MutableTree
}

var _ CacheableKVStore = (*IAVLStore)(nil)

// MemIAVL returns a tree store that keeps all data in memory.
func MemIAVL() *IAVLStore {
	db := dbm.NewMemDB()
	return &IAVLStore{db: db, tree: iavl.NewMutableTree(db, DefaultCacheSize)}
}

// OpenIAVL opens (or creates) a tree store persisted with goleveldb in
// given directory and loads its latest version.
func OpenIAVL(dir string) (*IAVLStore, error) {
	db, err := dbm.NewGoLevelDB("state", dir)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "open %q: %s", dir, err)
	}
	tree := iavl.NewMutableTree(db, DefaultCacheSize)
	if _, err := tree.Load(); err != nil {
		db.Close()
		return nil, errors.Wrapf(errors.ErrDatabase, "load tree: %s", err)
	}
	return &IAVLStore{db: db, tree: tree}, nil
}

// Close releases the database. Uncommitted changes are lost.
func (s *IAVLStore) Close() {
	s.db.Close()
}

// Commit saves the working tree as the next version.
func (s *IAVLStore) Commit() (CommitID, error) {
	hash, version, err := s.tree.SaveVersion()
	if err != nil {
		return CommitID{}, errors.Wrapf(errors.ErrDatabase, "save version: %s", err)
	}
	return CommitID{Version: version, Hash: hash}, nil
}

// LatestVersion returns the last committed version.
func (s *IAVLStore) LatestVersion() CommitID {
	return CommitID{Version: s.tree.Version(), Hash: s.tree.Hash()}
}

// Get returns nil if the key does not exist.
func (s *IAVLStore) Get(key []byte) ([]byte, error) {
	_, v := s.tree.Get(key)
	return v, nil
}

// Has returns true if the key exists.
func (s *IAVLStore) Has(key []byte) (bool, error) {
	return s.tree.Has(key), nil
}

// Set writes to the working tree.
func (s *IAVLStore) Set(key, value []byte) error {
	if value == nil {
		return errors.Wrap(errors.ErrInput, "nil value")
	}
	s.tree.Set(key, value)
	return nil
}

// Delete removes the key from the working tree.
func (s *IAVLStore) Delete(key []byte) error {
	s.tree.Remove(key)
	return nil
}

// NewBatch returns a batch applied to the working tree. Nothing reaches the
// disk before Commit so the batch does not have to be atomic.
func (s *IAVLStore) NewBatch() Batch {
	return NewNonAtomicBatch(s)
}

// CacheWrap returns a btree cache on top of the working tree.
func (s *IAVLStore) CacheWrap() KVCacheWrap {
	return NewBTreeCacheWrap(s, s.NewBatch(), nil)
}

// Iterator over [start, end) in ascending order.
func (s *IAVLStore) Iterator(start, end []byte) (Iterator, error) {
	return s.iterate(start, end, true), nil
}

// ReverseIterator over [start, end) in descending order.
func (s *IAVLStore) ReverseIterator(start, end []byte) (Iterator, error) {
	return s.iterate(start, end, false), nil
}

func (s *IAVLStore) iterate(start, end []byte, ascending bool) Iterator {
	var res []Model
	s.tree.IterateRange(start, end, ascending, func(key, value []byte) bool {
		res = append(res, Model{Key: key, Value: value})
		return false
	})
	return NewSliceIterator(res)
}

package store

import (
	"github.com/iov-one/deedhouse/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore is a persistent store backed by goleveldb.
//
// Cache wraps are written back with a single leveldb batch so a ledger step
// is either persisted completely or not at all.
type LevelDBStore struct {
	db *leveldb.DB
}

var _ CacheableKVStore = (*LevelDBStore)(nil)

// OpenLevelDB opens (or creates) a database in given directory.
func OpenLevelDB(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "open %q: %s", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

// MemLevelDB returns a leveldb store that keeps all data in memory.
func MemLevelDB() (*LevelDBStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "open memory storage: %s", err)
	}
	return &LevelDBStore{db: db}, nil
}

// Close releases the database.
func (s *LevelDBStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

// Get returns nil if the key does not exist.
func (s *LevelDBStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return v, nil
}

// Has returns true if the key exists.
func (s *LevelDBStore) Has(key []byte) (bool, error) {
	ok, err := s.db.Has(key, nil)
	if err != nil {
		return false, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return ok, nil
}

// Set writes the value directly to the database.
func (s *LevelDBStore) Set(key, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

// Delete removes the key directly from the database.
func (s *LevelDBStore) Delete(key []byte) error {
	if err := s.db.Delete(key, nil); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

// NewBatch returns an atomic leveldb batch.
func (s *LevelDBStore) NewBatch() Batch {
	return &levelBatch{db: s.db, batch: new(leveldb.Batch)}
}

// CacheWrap returns a btree cache that is written back atomically.
func (s *LevelDBStore) CacheWrap() KVCacheWrap {
	return NewBTreeCacheWrap(s, s.NewBatch(), nil)
}

// Iterator over [start, end) in ascending order.
func (s *LevelDBStore) Iterator(start, end []byte) (Iterator, error) {
	it := s.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	return &levelIterator{it: it}, nil
}

// ReverseIterator over [start, end) in descending order.
func (s *LevelDBStore) ReverseIterator(start, end []byte) (Iterator, error) {
	it := s.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	return &levelIterator{it: it, reverse: true}, nil
}

type levelIterator struct {
	it      iterator.Iterator
	reverse bool
	started bool
}

func (i *levelIterator) Next() ([]byte, []byte, error) {
	var ok bool
	switch {
	case !i.started && i.reverse:
		ok = i.it.Last()
	case !i.started:
		ok = i.it.First()
	case i.reverse:
		ok = i.it.Prev()
	default:
		ok = i.it.Next()
	}
	i.started = true
	if !ok {
		if err := i.it.Error(); err != nil {
			return nil, nil, errors.Wrap(errors.ErrDatabase, err.Error())
		}
		return nil, nil, errors.ErrIteratorDone
	}
	// leveldb reuses the buffers between moves
	key := append([]byte(nil), i.it.Key()...)
	value := append([]byte(nil), i.it.Value()...)
	return key, value, nil
}

func (i *levelIterator) Release() {
	i.it.Release()
}

type levelBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelBatch) Set(key, value []byte) error {
	b.batch.Put(key, value)
	return nil
}

func (b *levelBatch) Delete(key []byte) error {
	b.batch.Delete(key)
	return nil
}

func (b *levelBatch) Write() error {
	if err := b.db.Write(b.batch, nil); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	b.batch.Reset()
	return nil
}

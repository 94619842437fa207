package orm

import (
	"reflect"
	"regexp"

	"github.com/iov-one/deedhouse"
	"github.com/iov-one/deedhouse/errors"
)

// ModelBucket is a typed collection of models, stored under a common prefix
// and looked up by their primary key or by any declared index.
type ModelBucket interface {
	// One query the database for a single model instance. Lookup is done
	// by the primary index key. Result is loaded into given destination
	// model.
	// This method returns ErrNotFound if the entity does not exist in the
	// database.
	// If given model type cannot be used to contain stored entity, ErrType
	// is returned.
	One(db deedhouse.ReadOnlyKVStore, key []byte, dest Model) error

	// Has returns nil if an entity with given primary key exists and
	// ErrNotFound otherwise.
	Has(db deedhouse.ReadOnlyKVStore, key []byte) error

	// ByIndex returns all models that are referenced by given index under
	// given key. Destination must be a pointer to a slice of models (or
	// model pointers). Primary keys of found models are returned in the
	// same order.
	ByIndex(db deedhouse.ReadOnlyKVStore, indexName string, key []byte, dest interface{}) ([][]byte, error)

	// Put saves given model in the database. Index entries are updated.
	// ErrConflict is returned when a unique index already points to a
	// different entity.
	Put(db deedhouse.KVStore, key []byte, m Model) error

	// Delete removes an entity with given primary key from the database.
	// It returns ErrNotFound if an entity with given key does not exist.
	Delete(db deedhouse.KVStore, key []byte) error
}

var isBucketName = regexp.MustCompile(`^[a-z_]{3,10}$`).MatchString

// NewModelBucket returns a ModelBucket instance storing models of the same
// type as the given example.
func NewModelBucket(name string, example Model, opts ...ModelBucketOption) ModelBucket {
	if !isBucketName(name) {
		panic("invalid bucket name: " + name)
	}
	mb := &modelBucket{
		name:   name,
		prefix: []byte(name + ":"),
		model:  reflect.TypeOf(example),
	}
	for _, fn := range opts {
		fn(mb)
	}
	return mb
}

// ModelBucketOption is implemented by any function that can configure
// ModelBucket during creation.
type ModelBucketOption func(mb *modelBucket)

// WithIndex configures the bucket to build an index with given name. All
// entities stored in the bucket are indexed using value returned by the
// indexer function. If an index is unique, there can be only one entity
// referenced per index value.
func WithIndex(name string, indexer Indexer, unique bool) ModelBucketOption {
	return func(mb *modelBucket) {
		if !isBucketName(name) {
			panic("invalid index name: " + name)
		}
		mb.indexes = append(mb.indexes, newIndex(mb.name, name, indexer, unique))
	}
}

type modelBucket struct {
	name    string
	prefix  []byte
	model   reflect.Type
	indexes []*index
}

func (mb *modelBucket) dbKey(key []byte) []byte {
	return append(append([]byte(nil), mb.prefix...), key...)
}

func (mb *modelBucket) One(db deedhouse.ReadOnlyKVStore, key []byte, dest Model) error {
	if reflect.TypeOf(dest) != mb.model {
		return errors.Wrapf(errors.ErrType, "%T cannot be represented as %s", dest, mb.model)
	}
	raw, err := db.Get(mb.dbKey(key))
	if err != nil {
		return errors.Wrap(err, "cannot load from the database")
	}
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "%s %X", mb.name, key)
	}
	// Reset destination so that no data of a previously loaded entity is
	// left behind.
	v := reflect.ValueOf(dest).Elem()
	v.Set(reflect.Zero(v.Type()))
	if err := dest.Unmarshal(raw); err != nil {
		return errors.Wrapf(err, "cannot unmarshal %s", mb.name)
	}
	return nil
}

func (mb *modelBucket) Has(db deedhouse.ReadOnlyKVStore, key []byte) error {
	ok, err := db.Has(mb.dbKey(key))
	if err != nil {
		return errors.Wrap(err, "cannot query the database")
	}
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "%s %X", mb.name, key)
	}
	return nil
}

func (mb *modelBucket) ByIndex(db deedhouse.ReadOnlyKVStore, indexName string, key []byte, dest interface{}) ([][]byte, error) {
	idx, err := mb.index(indexName)
	if err != nil {
		return nil, err
	}
	dstSlice := reflect.ValueOf(dest)
	if dstSlice.Kind() != reflect.Ptr || dstSlice.Elem().Kind() != reflect.Slice {
		return nil, errors.Wrap(errors.ErrType, "destination must be a pointer to slice of models")
	}
	elemType := dstSlice.Elem().Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr && elemType != mb.model {
		return nil, errors.Wrapf(errors.ErrType, "%s cannot be represented as %s", elemType, mb.model)
	}
	if !isPtr && reflect.PtrTo(elemType) != mb.model {
		return nil, errors.Wrapf(errors.ErrType, "%s cannot be represented as %s", elemType, mb.model)
	}

	refs, err := idx.keys(db, key)
	if err != nil {
		return nil, err
	}
	res := dstSlice.Elem()
	for _, ref := range refs {
		m := reflect.New(mb.model.Elem())
		if err := mb.One(db, ref, m.Interface().(Model)); err != nil {
			return nil, errors.Wrapf(err, "index %s references a missing entity", indexName)
		}
		if isPtr {
			res = reflect.Append(res, m)
		} else {
			res = reflect.Append(res, m.Elem())
		}
	}
	dstSlice.Elem().Set(res)
	return refs, nil
}

func (mb *modelBucket) index(name string) (*index, error) {
	for _, idx := range mb.indexes {
		if idx.name == name {
			return idx, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrInput, "unknown index %q", name)
}

func (mb *modelBucket) Put(db deedhouse.KVStore, key []byte, m Model) error {
	if len(key) == 0 {
		return errors.Wrap(errors.ErrEmpty, "key")
	}
	if reflect.TypeOf(m) != mb.model {
		return errors.Wrapf(errors.ErrType, "cannot store %T in %s bucket", m, mb.name)
	}
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, "invalid model")
	}

	prev, err := mb.load(db, key)
	if err != nil {
		return err
	}
	for _, idx := range mb.indexes {
		if err := idx.update(db, key, prev, m); err != nil {
			return errors.Wrapf(err, "index %s", idx.name)
		}
	}

	raw, err := m.Marshal()
	if err != nil {
		return errors.Wrap(err, "cannot marshal")
	}
	if err := db.Set(mb.dbKey(key), raw); err != nil {
		return errors.Wrap(err, "cannot store in the database")
	}
	return nil
}

func (mb *modelBucket) Delete(db deedhouse.KVStore, key []byte) error {
	prev, err := mb.load(db, key)
	if err != nil {
		return err
	}
	if prev == nil {
		return errors.Wrapf(errors.ErrNotFound, "%s %X", mb.name, key)
	}
	for _, idx := range mb.indexes {
		if err := idx.update(db, key, prev, nil); err != nil {
			return errors.Wrapf(err, "index %s", idx.name)
		}
	}
	if err := db.Delete(mb.dbKey(key)); err != nil {
		return errors.Wrap(err, "cannot delete from the database")
	}
	return nil
}

// load returns the stored model or nil if it does not exist.
func (mb *modelBucket) load(db deedhouse.ReadOnlyKVStore, key []byte) (Model, error) {
	m := reflect.New(mb.model.Elem()).Interface().(Model)
	switch err := mb.One(db, key, m); {
	case err == nil:
		return m, nil
	case errors.ErrNotFound.Is(err):
		return nil, nil
	default:
		return nil, err
	}
}
